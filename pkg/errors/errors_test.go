package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataFor(t *testing.T) {
	t.Run("knownCode", func(t *testing.T) {
		meta := MetadataFor(CodeStateConflict)
		if meta.HTTPStatus != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", meta.HTTPStatus)
		}
		if !meta.DetailsAllowed {
			t.Fatal("expected state conflict to allow details")
		}
	})

	t.Run("unknownCodeFallsBackToInternal", func(t *testing.T) {
		meta := MetadataFor(Code("NOPE"))
		if meta.HTTPStatus != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", meta.HTTPStatus)
		}
		if meta.DetailsAllowed {
			t.Fatal("internal errors must not leak details")
		}
	})
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("stock row missing")
	err := Wrap(CodeNotFound, cause, "product not found")

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be discoverable with errors.Is")
	}
	if err.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsFindsCodedErrorInChain(t *testing.T) {
	inner := New(CodeConflict, "insufficient stock")
	outer := fmt.Errorf("checkout: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected coded error in chain")
	}
	if typed.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestDumpBuildsChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeDependency, cause, "persist order")

	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(dump.Chain))
	}
}
