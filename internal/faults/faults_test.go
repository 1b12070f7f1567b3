package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestMarkersClassifyErrors(t *testing.T) {
	t.Parallel()

	cause := errors.New("kv get timeout")

	lookup := MarkLookup(cause)
	if !IsLookup(lookup) || IsPersist(lookup) {
		t.Fatalf("expected lookup-only marker, got %v", lookup)
	}
	if !errors.Is(lookup, cause) {
		t.Fatalf("expected unwrap to reach the cause, got %v", lookup)
	}

	persist := MarkPersist(cause)
	if !IsPersist(persist) || IsLookup(persist) {
		t.Fatalf("expected persist-only marker, got %v", persist)
	}
}

func TestMarkersSurviveWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("process observation: %w", MarkPersist(errors.New("bucket gone")))
	if !IsPersist(wrapped) {
		t.Fatalf("expected persist marker through %%w chain, got %v", wrapped)
	}
}

func TestMarkersPassNil(t *testing.T) {
	t.Parallel()

	if MarkLookup(nil) != nil || MarkPersist(nil) != nil {
		t.Fatal("expected nil passthrough for nil cause")
	}
	if IsLookup(nil) || IsPersist(nil) {
		t.Fatal("expected nil to carry no marker")
	}
}
