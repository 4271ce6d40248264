package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"stagelink/internal/domain"
	"stagelink/internal/engine"
	"stagelink/internal/repo"
)

const (
	defaultWorkerInterval = 2 * time.Second
	defaultWorkerBatch    = 100
	defaultMaxAttempts    = 5
)

// Worker drains the outbox on a ticker. Each pending intent is executed and
// marked sent, or has its attempt counter bumped until it parks as failed.
// Notification intents are delivery hints: once the gateway attempt is made
// the intent is done, whether or not every recipient was reachable.
type Worker struct {
	Engine     engine.Engine
	Dispatcher Dispatcher
	Logger     *log.Logger

	Interval    time.Duration
	Batch       int
	MaxAttempts int
}

func NewWorker(e engine.Engine, gw Gateway) *Worker {
	w := &Worker{
		Engine: e,
		Dispatcher: Dispatcher{
			Repo:    e.Repo,
			Gateway: gw,
			Config:  e.Config,
			Logger:  e.Logger,
		},
		Logger:      e.Logger,
		Interval:    defaultWorkerInterval,
		Batch:       defaultWorkerBatch,
		MaxAttempts: defaultMaxAttempts,
	}
	if e.Config != nil {
		if e.Config.Worker.IntervalSeconds > 0 {
			w.Interval = time.Duration(e.Config.Worker.IntervalSeconds) * time.Second
		}
		if e.Config.Worker.Batch > 0 {
			w.Batch = e.Config.Worker.Batch
		}
		if e.Config.Worker.MaxAttempts > 0 {
			w.MaxAttempts = e.Config.Worker.MaxAttempts
		}
	}
	return w
}

func (w *Worker) logger() *log.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return log.Default()
}

func (w *Worker) now() time.Time {
	if w.Engine.Now != nil {
		return w.Engine.Now()
	}
	return time.Now()
}

// Run drains the outbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		if err := w.ProcessBatch(ctx); err != nil {
			w.logger().Printf("outbox: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessBatch executes one batch of pending intents, oldest first.
func (w *Worker) ProcessBatch(ctx context.Context) error {
	intents, err := w.Engine.Repo.PendingIntents(ctx, w.Batch)
	if err != nil {
		return err
	}
	for _, in := range intents {
		now := w.now().UTC().Format(time.RFC3339)
		if err := w.execute(ctx, in); err != nil {
			w.logger().Printf("outbox intent %d (%s): %v", in.ID, in.Kind, err)
			if merr := w.Engine.Repo.MarkIntentFailed(ctx, in.ID, w.MaxAttempts, now); merr != nil {
				return merr
			}
			continue
		}
		if err := w.Engine.Repo.MarkIntentSent(ctx, in.ID, now); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, in domain.Intent) error {
	switch in.Kind {
	case domain.IntentSyncStatus:
		var payload struct {
			Trigger string `json:"trigger"`
		}
		if in.Payload != "" {
			if err := json.Unmarshal([]byte(in.Payload), &payload); err != nil {
				return err
			}
		}
		err := w.Engine.SyncProjectStatus(ctx, in.ProjectID, payload.Trigger)
		if errors.Is(err, repo.ErrNotFound) {
			// Project deleted since enqueue; nothing left to reconcile.
			return nil
		}
		return err
	case domain.IntentNotification:
		_, _, err := w.Dispatcher.Dispatch(ctx, in)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	case domain.IntentAutoPublish:
		now := w.now().UTC().Format(time.RFC3339)
		return w.Engine.Repo.PublishProject(ctx, in.ProjectID, now)
	default:
		// Unknown kinds park as failed after max attempts.
		return errors.New("unknown intent kind " + in.Kind)
	}
}
