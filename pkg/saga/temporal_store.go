package saga

import (
	"context"
	"encoding/json"
	"fmt"

	workflowservice "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"github.com/ghuser/relay/pkg/workflows"
)

// TemporalStore is a Store backed by Temporal: every saga gets its own
// long-running SagaRecorderWorkflow instance that durably holds the
// latest snapshot. It is an alternate backend to InMemoryStore for
// deployments that cannot tolerate losing saga state on a process crash.
type TemporalStore struct {
	client *workflows.TemporalClient
}

// NewTemporalStore wraps an already-connected Temporal client as a Store.
func NewTemporalStore(tc *workflows.TemporalClient) *TemporalStore {
	return &TemporalStore{client: tc}
}

func workflowID(sagaID string) string { return "saga-" + sagaID }

// Save starts the saga's recorder workflow on first write, or signals an
// existing one with the updated snapshot on subsequent writes.
func (s *TemporalStore) Save(ctx context.Context, sc *Context) error {
	snapshot, err := toSnapshot(sc)
	if err != nil {
		return err
	}

	wid := workflowID(sc.SagaID)
	_, err = s.client.Client.SignalWithStartWorkflow(ctx, wid, workflows.SagaRecorderUpdateSignal, snapshot,
		client.StartWorkflowOptions{
			ID:        wid,
			TaskQueue: workflows.SagaRecorderTaskQueue,
		},
		workflows.SagaRecorderWorkflow, snapshot,
	)
	if err != nil {
		return fmt.Errorf("saga: temporal signal-with-start %s: %w", wid, err)
	}
	return nil
}

// Load queries the saga's recorder workflow for its latest snapshot.
func (s *TemporalStore) Load(ctx context.Context, sagaID string) (*Context, bool, error) {
	wid := workflowID(sagaID)
	resp, err := s.client.Client.QueryWorkflow(ctx, wid, "", workflows.SagaRecorderStateQuery)
	if err != nil {
		return nil, false, nil //nolint:nilerr // not found is a valid outcome, not a store failure
	}

	var snapshot workflows.SagaSnapshot
	if err := resp.Get(&snapshot); err != nil {
		return nil, false, fmt.Errorf("saga: decode temporal query result: %w", err)
	}
	sc, err := fromSnapshot(snapshot)
	if err != nil {
		return nil, false, err
	}
	return sc, true, nil
}

// ListActive lists saga IDs whose recorder workflow is still open.
func (s *TemporalStore) ListActive(ctx context.Context) ([]string, error) {
	var ids []string
	var nextPageToken []byte
	for {
		resp, err := s.client.Client.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
			Namespace:     s.client.Namespace,
			Query:         "WorkflowType = 'SagaRecorderWorkflow' AND ExecutionStatus = 'Running'",
			NextPageToken: nextPageToken,
		})
		if err != nil {
			return nil, fmt.Errorf("saga: list temporal workflows: %w", err)
		}
		for _, exec := range resp.Executions {
			ids = append(ids, exec.Execution.WorkflowId)
		}
		if len(resp.NextPageToken) == 0 {
			break
		}
		nextPageToken = resp.NextPageToken
	}
	return ids, nil
}

func toSnapshot(sc *Context) (workflows.SagaSnapshot, error) {
	raw, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("saga: encode snapshot: %w", err)
	}
	var snapshot workflows.SagaSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("saga: decode snapshot: %w", err)
	}
	return snapshot, nil
}

func fromSnapshot(snapshot workflows.SagaSnapshot) (*Context, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("saga: encode from snapshot: %w", err)
	}
	var sc Context
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("saga: decode from snapshot: %w", err)
	}
	return &sc, nil
}
