package run

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

const workflowIDPrefix = "plugin-run-"

// WorkflowIDForRun derives the queue-side identity of a run's unit of work.
// The embedded run id is what reconciliation extracts from live executions.
func WorkflowIDForRun(runID uuid.UUID) string {
	return workflowIDPrefix + runID.String()
}

// RunIDFromWorkflowID recovers the run id embedded in a workflow id.
func RunIDFromWorkflowID(workflowID string) (uuid.UUID, bool) {
	if !strings.HasPrefix(workflowID, workflowIDPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(workflowID, workflowIDPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// TemporalSubmitter dispatches asynchronous runs to the task queue. Submit
// returns as soon as the workflow is accepted; completion is observed by
// polling run status.
type TemporalSubmitter struct {
	client    client.Client
	taskQueue string
	logger    *zap.Logger
}

func NewTemporalSubmitter(c client.Client, taskQueue string, logger *zap.Logger) *TemporalSubmitter {
	return &TemporalSubmitter{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}
}

func (s *TemporalSubmitter) Submit(ctx context.Context, payload RunPayload) error {
	options := client.StartWorkflowOptions{
		ID:        WorkflowIDForRun(payload.PluginRunID),
		TaskQueue: s.taskQueue,
	}

	_, err := s.client.ExecuteWorkflow(ctx, options, PluginRunWorkflow, payload)
	if err != nil {
		return fmt.Errorf("failed to start run workflow: %w", err)
	}

	s.logger.Info("Run submitted to task queue",
		zap.String("plugin", payload.Plugin),
		zap.String("run_id", payload.PluginRunID.String()),
		zap.String("task_queue", s.taskQueue),
	)
	return nil
}

// PluginRunWorkflow wraps one queued plugin run in a single activity. The
// activity is not retried: the in_scheduler guard makes a second delivery a
// no-op, and failed plugins are a terminal ERROR, not a transient fault.
func PluginRunWorkflow(ctx workflow.Context, payload RunPayload) error {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 4 * time.Hour,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	return workflow.ExecuteActivity(ctx, "ExecutePluginActivity", payload).Get(ctx, nil)
}

// Activities holds dependencies for the queue worker.
type Activities struct {
	manager *Manager
	store   Store
	logger  *zap.Logger
}

func NewActivities(manager *Manager, store Store, logger *zap.Logger) *Activities {
	return &Activities{
		manager: manager,
		store:   store,
		logger:  logger,
	}
}

// ExecutePluginActivity is the worker side of the asynchronous path. Before
// any plugin work it claims the run's in_scheduler flag; losing the claim
// means another delivery of the same unit of work is in flight, and this one
// aborts with zero side effects.
func (a *Activities) ExecutePluginActivity(ctx context.Context, payload RunPayload) error {
	if !payload.DryRun {
		won, err := a.store.MarkInScheduler(ctx, payload.PluginRunID)
		if err != nil {
			return fmt.Errorf("failed to claim run %s: %w", payload.PluginRunID, err)
		}
		if !won {
			a.logger.Warn("Duplicate delivery detected, aborting",
				zap.String("plugin", payload.Plugin),
				zap.String("run_id", payload.PluginRunID.String()),
			)
			return nil
		}
	}

	resp, err := a.manager.ExecutePayload(ctx, payload)
	if err != nil {
		return err
	}
	if !resp.Status {
		// The failure is already recorded on the run; the workflow itself
		// completes so the queue does not redeliver.
		a.logger.Warn("Queued run finished with error status",
			zap.String("plugin", payload.Plugin),
			zap.String("run_id", payload.PluginRunID.String()),
		)
	}
	return nil
}

// Worker hosts the task-queue worker for plugin runs.
type Worker struct {
	worker worker.Worker
	logger *zap.Logger
}

func NewWorker(c client.Client, taskQueue string, activities *Activities, logger *zap.Logger) *Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(PluginRunWorkflow)
	w.RegisterActivity(activities.ExecutePluginActivity)
	return &Worker{worker: w, logger: logger}
}

func (w *Worker) Start() error {
	w.logger.Info("Starting run worker")
	return w.worker.Start()
}

func (w *Worker) Stop() {
	if w.worker != nil {
		w.worker.Stop()
	}
}
