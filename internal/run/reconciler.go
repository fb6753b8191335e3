package run

import (
	"context"

	"github.com/google/uuid"
	workflowservice "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// QueueInspector reports the run ids of all units of work currently live on
// the task queue: scheduled, active, or reserved by a worker.
type QueueInspector interface {
	LiveRunIDs(ctx context.Context) (map[uuid.UUID]struct{}, error)
}

// TemporalInspector lists open workflow executions through the visibility
// API and extracts the run ids embedded in their workflow ids.
type TemporalInspector struct {
	client    client.Client
	namespace string
	logger    *zap.Logger
}

func NewTemporalInspector(c client.Client, namespace string, logger *zap.Logger) *TemporalInspector {
	return &TemporalInspector{
		client:    c,
		namespace: namespace,
		logger:    logger,
	}
}

func (i *TemporalInspector) LiveRunIDs(ctx context.Context) (map[uuid.UUID]struct{}, error) {
	live := make(map[uuid.UUID]struct{})

	var pageToken []byte
	for {
		resp, err := i.client.ListOpenWorkflow(ctx, &workflowservice.ListOpenWorkflowExecutionsRequest{
			Namespace:       i.namespace,
			MaximumPageSize: 100,
			NextPageToken:   pageToken,
		})
		if err != nil {
			return nil, err
		}
		for _, execution := range resp.Executions {
			if runID, ok := RunIDFromWorkflowID(execution.Execution.GetWorkflowId()); ok {
				live[runID] = struct{}{}
			}
		}
		pageToken = resp.NextPageToken
		if len(pageToken) == 0 {
			break
		}
	}

	return live, nil
}

// Reconciler repairs persisted run state against the live task queue at
// process start. A run that is neither terminal nor live on the queue lost
// its worker or its queue entry and is demoted to unknown. One best-effort
// sweep per boot; introspection failure or an empty live set takes no action
// rather than guessing.
type Reconciler struct {
	store     Store
	inspector QueueInspector
	logger    *zap.Logger
}

func NewReconciler(store Store, inspector QueueInspector, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		inspector: inspector,
		logger:    logger,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context) error {
	live, err := r.inspector.LiveRunIDs(ctx)
	if err != nil {
		r.logger.Warn("Task queue introspection failed, skipping reconciliation", zap.Error(err))
		return nil
	}
	if len(live) == 0 {
		r.logger.Info("Task queue reported no live work, skipping reconciliation")
		return nil
	}

	runs, err := r.store.ListNonTerminal(ctx)
	if err != nil {
		r.logger.Warn("Failed to list runs for reconciliation", zap.Error(err))
		return nil
	}

	orphaned := 0
	for _, run := range runs {
		if _, ok := live[run.ID]; ok {
			continue
		}
		if err := r.store.SetStatus(ctx, run.ID, StatusUnknown, run.Progress); err != nil {
			r.logger.Error("Failed to mark orphaned run",
				zap.String("run_id", run.ID.String()),
				zap.Error(err),
			)
			continue
		}
		orphaned++
	}

	r.logger.Info("Run reconciliation completed",
		zap.Int("non_terminal", len(runs)),
		zap.Int("live", len(live)),
		zap.Int("orphaned", orphaned),
	)
	return nil
}
