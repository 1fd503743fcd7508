package workflows

import (
	"time"

	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// SagaRecorderTaskQueue is the Temporal task queue the recorder workflow
// and its worker register against.
const SagaRecorderTaskQueue = "relay-saga-recorder"

// SagaRecorderUpdateSignal is the signal name used to push a new saga
// snapshot into a running recorder workflow.
const SagaRecorderUpdateSignal = "saga-update"

// SagaRecorderStateQuery is the query name used to read a recorder
// workflow's latest snapshot.
const SagaRecorderStateQuery = "saga-state"

// SagaSnapshot is the payload recorded and queried by SagaRecorderWorkflow.
// It is kept a plain map so pkg/saga can marshal its own Context type
// into it without this package depending on pkg/saga (which would create
// an import cycle, since pkg/saga depends on this package for its
// Temporal-backed Store).
type SagaSnapshot map[string]any

// SagaRecorderWorkflow is a minimal durable ledger: it starts holding the
// saga's initial snapshot, accepts updated snapshots via signal, answers
// the current snapshot via query, and completes when a snapshot carrying
// a terminal state (Completed, Compensated, or Compensation-Failed) is
// recorded. This is not a saga executor — the forward/compensation logic
// stays in pkg/saga.Coordinator; Temporal only gives that logic a
// crash-proof place to persist its state.
func SagaRecorderWorkflow(ctx workflow.Context, initial SagaSnapshot) error {
	snapshot := initial

	if err := workflow.SetQueryHandler(ctx, SagaRecorderStateQuery, func() (SagaSnapshot, error) {
		return snapshot, nil
	}); err != nil {
		return err
	}

	updates := workflow.GetSignalChannel(ctx, SagaRecorderUpdateSignal)

	for !isTerminal(snapshot) {
		timer := workflow.NewTimer(ctx, 7*24*time.Hour)
		selector := workflow.NewSelector(ctx)

		var next SagaSnapshot
		selector.AddReceive(updates, func(c workflow.ReceiveChannel, more bool) {
			c.Receive(ctx, &next)
			snapshot = next
		})
		selector.AddFuture(timer, func(workflow.Future) {
			// No update arrived within the retention window; loop and
			// keep the workflow open so a late update can still land.
		})
		selector.Select(ctx)
	}
	return nil
}

func isTerminal(s SagaSnapshot) bool {
	state, _ := s["state"].(string)
	switch state {
	case "Completed", "Compensated", "Compensation-Failed":
		return true
	default:
		return false
	}
}

// RegisterSagaRecorder registers SagaRecorderWorkflow on w, so a worker
// process hosting saga persistence can execute it.
func RegisterSagaRecorder(w worker.Worker) {
	w.RegisterWorkflow(SagaRecorderWorkflow)
}
