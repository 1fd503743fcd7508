// Package envelope defines the wire shape carried on every broker message:
// a correlation ID, a payload, and an optional schema tag, plus the error
// variant returned when a handler fails. JSON is the default encoding; any
// structured encoding identified by a schema tag is acceptable.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ghuser/relay/pkg/svcerr"
)

// Envelope is the outer shape of every request, async call, event, and
// broadcast message on the broker.
type Envelope struct {
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
	Schema        string          `json:"schema,omitempty"`
}

// Reply is the outer shape of every successful RPC/validated-RPC response.
type Reply struct {
	CorrelationID string          `json:"correlation_id"`
	Result        json.RawMessage `json:"result"`
}

// ErrorReply is the outer shape of every failed RPC/validated-RPC response.
type ErrorReply struct {
	CorrelationID string         `json:"correlation_id"`
	Error         svcerr.Kind    `json:"error"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
}

// Encode marshals payload into an Envelope carrying correlationID and an
// optional schema tag.
func Encode(correlationID string, payload any, schema string) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: encode payload: %w", err)
	}
	return Envelope{CorrelationID: correlationID, Payload: raw, Schema: schema}, nil
}

// Marshal encodes an Envelope to its wire bytes.
func Marshal(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes wire bytes into an Envelope. A non-empty correlation ID
// is required by the data model; callers receiving an empty one should mint
// a replacement via pkg/correlation rather than reject the message, per the
// "if inbound lacks an ID, mint one" rule.
func Unmarshal(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("envelope: unmarshal: %w", err)
	}
	return env, nil
}

// DecodePayload unmarshals an Envelope's payload into dst.
func (e Envelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope: empty payload")
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("envelope: decode payload: %w", err)
	}
	return nil
}

// EncodeReply marshals a successful Reply to wire bytes.
func EncodeReply(correlationID string, result any) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("envelope: encode result: %w", err)
	}
	return json.Marshal(Reply{CorrelationID: correlationID, Result: raw})
}

// EncodeError marshals the taxonomy error kind, message, and details of err
// into an ErrorReply's wire bytes. Any error is accepted; non-taxonomy
// errors are reported as KindHandler, matching the "local handler raised
// unexpectedly; wraps the original" rule.
func EncodeError(correlationID string, err error) ([]byte, error) {
	kind := svcerr.KindHandler
	var details map[string]any
	var svcErr *svcerr.Error
	if errors.As(err, &svcErr) {
		kind = svcErr.Kind
		details = svcErr.Details
	}
	return json.Marshal(ErrorReply{
		CorrelationID: correlationID,
		Error:         kind,
		Message:       err.Error(),
		Details:       details,
	})
}
