package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-jasa/internal/lock"
)

// Task types handled by the worker.
const (
	TaskMonthlyBilling      = "billing:monthly"
	TaskExpireBankTransfers = "billing:expire_bank_transfers"
	TaskExpireCredits       = "billing:expire_credits"
)

// Entry pairs a cron spec with the task it enqueues.
type Entry struct {
	Spec     string
	TaskType string
}

// DefaultSchedule runs billing at 00:05, credit expiry at 00:10 and bank transfer expiry hourly.
func DefaultSchedule() []Entry {
	return []Entry{
		{Spec: "5 0 * * *", TaskType: TaskMonthlyBilling},
		{Spec: "0 * * * *", TaskType: TaskExpireBankTransfers},
		{Spec: "10 0 * * *", TaskType: TaskExpireCredits},
	}
}

// Register adds the schedule to an asynq scheduler.
func Register(s *asynq.Scheduler, entries []Entry) error {
	for _, e := range entries {
		task := asynq.NewTask(e.TaskType, nil, asynq.MaxRetry(2), asynq.Timeout(15*time.Minute))
		if _, err := s.Register(e.Spec, task); err != nil {
			return fmt.Errorf("register %s: %w", e.TaskType, err)
		}
	}
	return nil
}

// NewMux routes billing tasks to the runner.
func NewMux(r *Runner) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskMonthlyBilling, handler(r.ProcessMonthlyBilling))
	mux.HandleFunc(TaskExpireBankTransfers, handler(r.CancelExpiredBankTransfers))
	mux.HandleFunc(TaskExpireCredits, handler(r.ExpireCredits))
	return mux
}

func handler(job func(context.Context) (Report, error)) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, _ *asynq.Task) error {
		_, err := job(ctx)
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil
		}
		return err
	}
}
