package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/steepandstone/teahouse-backend/pkg/config"
	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	"github.com/steepandstone/teahouse-backend/pkg/logger"
	"github.com/steepandstone/teahouse-backend/pkg/outbox"
	"github.com/steepandstone/teahouse-backend/pkg/outbox/registry"
)

type fakeOutboxRepo struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	fetchErr  error
}

func (f *fakeOutboxRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []models.OutboxEvent
	for _, row := range f.rows {
		if row.PublishedAt == nil && row.AttemptCount < maxAttempts {
			out = append(out, row)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutboxRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	for i := range f.rows {
		if f.rows[i].ID == id {
			now := time.Now()
			f.rows[i].PublishedAt = &now
		}
	}
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].AttemptCount++
		}
	}
	return nil
}

func (f *fakeOutboxRepo) MarkFailedTerminal(id uuid.UUID, err error, maxAttempts int) error {
	f.terminal = append(f.terminal, id)
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].AttemptCount = maxAttempts
		}
	}
	return nil
}

type fakeResolver struct {
	err error
}

func (f fakeResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, registry.NewNonRetryableError(err)
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         "orders",
		},
		Envelope: envelope,
	}, nil
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "msg-1", nil
}

type fakePublisher struct {
	err       error
	published []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.published = append(f.published, msg)
	return fakePublishResult{err: f.err}
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubPubSub struct{ stubPinger }

func (stubPubSub) Publisher(string) *gcppubsub.Publisher { return nil }

func testService(t *testing.T, repo *fakeOutboxRepo, resolver registryResolver, pub *fakePublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config: &config.Config{
			Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: 3},
		},
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         stubPinger{},
		PubSub:     stubPubSub{},
		Repository: repo,
		Registry:   resolver,
		PublisherFactory: func(topic string) publisher {
			return pub
		},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func outboxRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"order_id":"` + uuid.NewString() + `"}`),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		AttemptCount:  attempts,
	}
}

func TestProcessBatch(t *testing.T) {
	t.Run("publishes pending rows and marks them", func(t *testing.T) {
		repo := &fakeOutboxRepo{rows: []models.OutboxEvent{outboxRow(t, 0), outboxRow(t, 0)}}
		pub := &fakePublisher{}
		svc := testService(t, repo, fakeResolver{}, pub)

		processed, err := svc.processBatch(context.Background())
		if err != nil {
			t.Fatalf("processBatch: %v", err)
		}
		if !processed {
			t.Fatal("expected batch to report work done")
		}
		if len(pub.published) != 2 {
			t.Fatalf("expected 2 publishes, got %d", len(pub.published))
		}
		if len(repo.published) != 2 {
			t.Fatalf("expected 2 rows marked published, got %d", len(repo.published))
		}
		attrs := pub.published[0].Attributes
		if attrs["event_type"] != string(enums.EventOrderCreated) {
			t.Fatalf("unexpected event_type attribute %q", attrs["event_type"])
		}
		if attrs["event_id"] == "" {
			t.Fatal("expected event_id attribute")
		}
	})

	t.Run("reports no work when queue is empty", func(t *testing.T) {
		repo := &fakeOutboxRepo{}
		svc := testService(t, repo, fakeResolver{}, &fakePublisher{})

		processed, err := svc.processBatch(context.Background())
		if err != nil {
			t.Fatalf("processBatch: %v", err)
		}
		if processed {
			t.Fatal("expected no work")
		}
	})

	t.Run("records retryable publish failures", func(t *testing.T) {
		repo := &fakeOutboxRepo{rows: []models.OutboxEvent{outboxRow(t, 0)}}
		pub := &fakePublisher{err: errors.New("broker unavailable")}
		svc := testService(t, repo, fakeResolver{}, pub)

		if _, err := svc.processBatch(context.Background()); err != nil {
			t.Fatalf("processBatch: %v", err)
		}
		if len(repo.failed) != 1 {
			t.Fatalf("expected 1 failure mark, got %d", len(repo.failed))
		}
		if len(repo.terminal) != 0 {
			t.Fatalf("expected no terminal marks, got %d", len(repo.terminal))
		}
	})

	t.Run("stops retrying at the attempt ceiling", func(t *testing.T) {
		repo := &fakeOutboxRepo{rows: []models.OutboxEvent{outboxRow(t, 2)}}
		pub := &fakePublisher{err: errors.New("broker unavailable")}
		svc := testService(t, repo, fakeResolver{}, pub)

		if _, err := svc.processBatch(context.Background()); err != nil {
			t.Fatalf("processBatch: %v", err)
		}
		if len(repo.terminal) != 1 {
			t.Fatalf("expected 1 terminal mark, got %d", len(repo.terminal))
		}
		if len(repo.failed) != 0 {
			t.Fatalf("expected no retryable marks, got %d", len(repo.failed))
		}
	})

	t.Run("marks undecodable rows terminal without publishing", func(t *testing.T) {
		repo := &fakeOutboxRepo{rows: []models.OutboxEvent{outboxRow(t, 0)}}
		pub := &fakePublisher{}
		resolver := fakeResolver{err: registry.NewNonRetryableError(errors.New("unsupported event type"))}
		svc := testService(t, repo, resolver, pub)

		if _, err := svc.processBatch(context.Background()); err != nil {
			t.Fatalf("processBatch: %v", err)
		}
		if len(pub.published) != 0 {
			t.Fatalf("expected no publishes, got %d", len(pub.published))
		}
		if len(repo.terminal) != 1 {
			t.Fatalf("expected 1 terminal mark, got %d", len(repo.terminal))
		}
	})
}

func TestNextBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	if got := nextBackoff(base, base, time.Second); got != 200*time.Millisecond {
		t.Fatalf("expected doubled backoff, got %v", got)
	}
	if got := nextBackoff(900*time.Millisecond, base, time.Second); got != time.Second {
		t.Fatalf("expected capped backoff, got %v", got)
	}
}
