package kernel

import (
	"encoding/json"

	"github.com/ghuser/relay/pkg/envelope"
)

// looksLikeError attempts to decode reply as an envelope.ErrorReply and
// reports whether it carries a non-empty taxonomy kind.
func looksLikeError(reply []byte, out *envelope.ErrorReply) bool {
	if err := json.Unmarshal(reply, out); err != nil {
		return false
	}
	return out.Error != ""
}

func unmarshalReply(reply []byte, out *envelope.Reply) error {
	return json.Unmarshal(reply, out)
}

func unmarshalInto(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
