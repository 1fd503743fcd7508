package errhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ghuser/relay/pkg/correlation"
	"github.com/ghuser/relay/pkg/envelope"
	"github.com/ghuser/relay/pkg/svcerr"
)

func TestWriteError_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation error", svcerr.NewValidationError("bad field", nil), http.StatusBadRequest},
		{"authentication error", svcerr.NewAuthenticationError("bad token"), http.StatusUnauthorized},
		{"authorization error", svcerr.NewAuthorizationError("forbidden"), http.StatusForbidden},
		{"not found error", svcerr.NewNotFoundError("user"), http.StatusNotFound},
		{"rpc timeout error", svcerr.NewRPCTimeoutError("GetUser"), http.StatusRequestTimeout},
		{"connection error", svcerr.NewConnectionError("broker down", errors.New("dial tcp")), http.StatusGatewayTimeout},
		{"handler error", svcerr.NewHandlerError("GetUser", errors.New("panic")), http.StatusInternalServerError},
		{"wrapped validation error", fmt.Errorf("request: %w", svcerr.NewValidationError("bad field", nil)), http.StatusBadRequest},
		{"unknown error", errors.New("something unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), w, tt.err)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestWriteError_JSONBody(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), w, svcerr.NewNotFoundError("user"))

	var body envelope.ErrorReply
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if body.Error != svcerr.KindNotFound {
		t.Fatalf("error kind = %q, want %q", body.Error, svcerr.KindNotFound)
	}
}

func TestWriteError_IncludesCorrelationID(t *testing.T) {
	ctx := correlation.With(context.Background(), "cid-123")
	w := httptest.NewRecorder()
	WriteError(ctx, w, svcerr.NewNotFoundError("user"))

	if got := w.Header().Get(correlation.HeaderName); got != "cid-123" {
		t.Fatalf("response header = %q, want %q", got, "cid-123")
	}

	var body envelope.ErrorReply
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if body.CorrelationID != "cid-123" {
		t.Fatalf("body correlation_id = %q, want %q", body.CorrelationID, "cid-123")
	}
}

func TestWriteError_ContentType(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), w, svcerr.NewNotFoundError("user"))

	ct := w.Header().Get("Content-Type")
	if ct == "" {
		t.Fatal("Content-Type header not set")
	}
}

func TestIs(t *testing.T) {
	err := svcerr.NewValidationError("bad field", nil)
	if !Is(err, svcerr.KindValidation) {
		t.Fatal("Is() should match the error's own kind")
	}
	if Is(err, svcerr.KindRPC) {
		t.Fatal("Is() should not match a different kind")
	}
}
