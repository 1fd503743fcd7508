// Package calc is the echo-RPC example service (spec §8 scenario 1): a
// minimal service with two request/reply methods (Echo and Add), used to exercise
// the Service Kernel's dispatch algorithm end to end with nothing else in
// the way.
package calc

import (
	"encoding/json"
	"time"

	"github.com/ghuser/relay/pkg/broker"
	"github.com/ghuser/relay/pkg/kernel"
	"github.com/ghuser/relay/pkg/logger"
)

const ServiceName = "calc"

// AddRequest is the payload for the Add method.
type AddRequest struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// AddReply is Add's result.
type AddReply struct {
	Sum float64 `json:"sum"`
}

// EchoRequest is the payload for the Echo method.
type EchoRequest struct {
	Message string `json:"message"`
}

// EchoReply is Echo's result: the same message handed back unchanged.
type EchoReply struct {
	Message string `json:"message"`
}

// New builds the calc service's Kernel, registering its two RPC methods.
func New(br broker.Broker, log logger.Logger, requestTimeout time.Duration) (*kernel.Kernel, error) {
	k := kernel.New(ServiceName, br, log, requestTimeout)

	if err := k.Registry.RPC("Echo", echoHandler); err != nil {
		return nil, err
	}
	if err := k.Registry.RPC("Add", addHandler); err != nil {
		return nil, err
	}
	return k, nil
}

func echoHandler(_ any, payload []byte) (any, error) {
	var req EchoRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return EchoReply{Message: req.Message}, nil
}

func addHandler(_ any, payload []byte) (any, error) {
	var req AddRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return AddReply{Sum: req.A + req.B}, nil
}
