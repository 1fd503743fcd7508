// Package errhttp maps the framework's error taxonomy (pkg/svcerr) to HTTP
// status codes and writes the standard envelope error shape. Add a case to
// statusFor for each new taxonomy kind.
package errhttp

import (
	"context"
	"net/http"

	"github.com/ghuser/relay/pkg/correlation"
	"github.com/ghuser/relay/pkg/envelope"
	"github.com/ghuser/relay/pkg/httpx"
	"github.com/ghuser/relay/pkg/svcerr"
)

// WriteError maps err to an HTTP status code per the taxonomy (§7: 400 for
// ValidationError, 401 for AuthenticationError, 403 for AuthorizationError,
// 404 for missing entities, 408 for RPCTimeoutError, 500 for HandlerError
// and anything unrecognized) and writes the wire error-reply shape, tagged
// with the request's correlation ID.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	correlation.SetResponseHeader(ctx, w)
	correlationID, _ := correlation.FromContext(ctx)

	body, encErr := envelope.EncodeError(correlationID, err)
	if encErr != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusFor(err))
	_, _ = w.Write(body)
}

// statusFor maps a taxonomy Kind to the HTTP status the spec assigns it.
func statusFor(err error) int {
	kind, ok := svcerr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case svcerr.KindValidation:
		return http.StatusBadRequest
	case svcerr.KindAuthentication:
		return http.StatusUnauthorized
	case svcerr.KindAuthorization:
		return http.StatusForbidden
	case svcerr.KindNotFound:
		return http.StatusNotFound
	case svcerr.KindRPCTimeout:
		return http.StatusRequestTimeout
	case svcerr.KindConnection:
		return http.StatusGatewayTimeout
	case svcerr.KindConfiguration, svcerr.KindHandler, svcerr.KindRPC,
		svcerr.KindTimerExecution, svcerr.KindSagaCompensation:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether err carries the given taxonomy kind, for handlers that
// want to branch without importing pkg/svcerr directly.
func Is(err error, kind svcerr.Kind) bool {
	got, ok := svcerr.KindOf(err)
	return ok && got == kind
}
