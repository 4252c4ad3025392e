package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/steepandstone/teahouse-backend/internal/cart"
	"github.com/steepandstone/teahouse-backend/pkg/logger"
)

const (
	defaultCartTTL      = 7 * 24 * time.Hour
	cartExpiryBatchSize = 100
)

// txRunner runs a function inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CartExpiryJobParams configure the abandoned cart sweep.
type CartExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Carts     cart.Repository
	TTL       time.Duration
	BatchSize int
}

// NewCartExpiryJob builds the job that deletes carts untouched past their TTL.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = cartExpiryBatchSize
	}
	return &cartExpiryJob{
		logg:  params.Logger,
		db:    params.DB,
		carts: params.Carts,
		ttl:   ttl,
		batch: batch,
		now:   time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg  *logger.Logger
	db    txRunner
	carts cart.Repository
	ttl   time.Duration
	batch int
	now   func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	var deleted int
	var errs []error
	for {
		stale, err := j.carts.FindStale(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("find stale carts: %w", err)
		}
		for i := range stale {
			cartID := stale[i].ID
			err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
				repo := j.carts.WithTx(tx)
				if err := repo.DeleteItems(ctx, cartID); err != nil {
					return err
				}
				return repo.DeleteCart(ctx, cartID)
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("delete cart %s: %w", cartID, err))
				continue
			}
			deleted++
		}
		if len(stale) < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"carts_deleted": deleted,
		"errors":        len(errs),
	})
	j.logg.Info(logCtx, "cart expiry sweep complete")
	return multierr.Combine(errs...)
}
