package svcerr

import (
	"errors"
	"testing"
)

func TestErrorMessageFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(KindValidation, "field required"),
			want: "validation: field required",
		},
		{
			name: "with cause",
			err:  Wrap(KindRPC, "rpc failed", errors.New("boom")),
			want: "rpc: rpc failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindConnection, "dial failed", cause)

	if !errors.Is(err, cause) {
		t.Fatal("errors.Is did not find wrapped cause")
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := NewValidationError("bad input", map[string]any{"field": "name"})
	target := New(KindValidation, "")

	if !errors.Is(err, target) {
		t.Fatal("errors.Is should match errors of the same Kind")
	}

	other := New(KindRPC, "")
	if errors.Is(err, other) {
		t.Fatal("errors.Is should not match errors of a different Kind")
	}
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(NewRPCTimeoutError("GetUser"))
	if !ok || kind != KindRPCTimeout {
		t.Fatalf("KindOf() = (%v, %v), want (%v, true)", kind, ok, KindRPCTimeout)
	}

	_, ok = KindOf(errors.New("plain error"))
	if ok {
		t.Fatal("KindOf() should report false for a non-taxonomy error")
	}
}

func TestWithCorrelationIDAndDetailsDoNotMutateOriginal(t *testing.T) {
	base := New(KindHandler, "panic recovered")
	derived := base.WithCorrelationID("cid-1").WithDetails(map[string]any{"k": "v"})

	if base.CorrelationID != "" {
		t.Fatal("WithCorrelationID mutated the receiver")
	}
	if derived.CorrelationID != "cid-1" {
		t.Fatalf("CorrelationID = %q, want %q", derived.CorrelationID, "cid-1")
	}
	if derived.Details["k"] != "v" {
		t.Fatal("WithDetails did not attach details")
	}
}

func TestSagaCompensationErrorNamesSagaAndStep(t *testing.T) {
	err := NewSagaCompensationError("book-trip", "refund-hotel", errors.New("gateway down"))
	want := `saga_compensation: saga "book-trip" compensation failed at step "refund-hotel": gateway down`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
