package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jasa/internal/advertising"
	"github.com/noah-isme/backend-jasa/internal/credit"
	"github.com/noah-isme/backend-jasa/internal/lock"
	"github.com/noah-isme/backend-jasa/internal/obs"
)

// Job names, used as lock keys and metric labels.
const (
	JobMonthlyBilling      = "monthly_billing"
	JobExpireBankTransfers = "expire_bank_transfers"
	JobExpireCredits       = "expire_credits"
)

const (
	defaultBatchSize = 500
	defaultLockTTL   = 5 * time.Minute
	lockKeyPrefix    = "billing:"

	resultError           = "error"
	resultExpired         = "expired"
	resultSkipped         = "skipped"
	resultLockNotAcquired = "lock_not_acquired"
)

// Ads is the subset of the advertising service the jobs drive.
type Ads interface {
	DueForBilling(ctx context.Context, now time.Time, limit int) ([]advertising.Subscription, error)
	ChargeMonthly(ctx context.Context, subscriptionID uuid.UUID, now time.Time) (advertising.ChargeOutcome, error)
	ExpiredBankTransfers(ctx context.Context, now time.Time, limit int) ([]advertising.Payment, error)
	ExpireBankTransfer(ctx context.Context, paymentID uuid.UUID, now time.Time) (bool, error)
}

// Credits expires lapsed credit grants.
type Credits interface {
	ExpireDue(ctx context.Context, batch int) ([]credit.Expired, error)
}

// Locker guards a job run so only one worker executes it at a time.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Report summarises one job run.
type Report struct {
	Job       string `json:"job"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Runner executes the scheduled billing jobs.
type Runner struct {
	Ads       Ads
	Credits   Credits
	Locker    Locker
	LockTTL   time.Duration
	BatchSize int
	Now       func() time.Time
	Logger    zerolog.Logger
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) batch() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return defaultBatchSize
}

// run holds the job lock for the duration of fn. A lock held elsewhere is reported as lock.ErrNotAcquired.
func (r *Runner) run(ctx context.Context, job string, fn func(context.Context) error) error {
	if r.Locker == nil {
		return fn(ctx)
	}
	ttl := r.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	err := r.Locker.TryWithLock(ctx, lockKeyPrefix+job, ttl, fn)
	if errors.Is(err, lock.ErrNotAcquired) {
		record(job, resultLockNotAcquired)
		r.Logger.Info().Str("job", job).Msg("billing job already running elsewhere")
	}
	return err
}

// ProcessMonthlyBilling charges every active subscription whose billing date has arrived.
func (r *Runner) ProcessMonthlyBilling(ctx context.Context) (Report, error) {
	rep := Report{Job: JobMonthlyBilling}
	err := r.run(ctx, JobMonthlyBilling, func(ctx context.Context) error {
		now := r.now()
		due, err := r.Ads.DueForBilling(ctx, now, r.batch())
		if err != nil {
			return err
		}
		for _, sub := range due {
			rep.Processed++
			out, err := r.Ads.ChargeMonthly(ctx, sub.ID, now)
			if err != nil {
				rep.Failed++
				record(JobMonthlyBilling, resultError)
				r.Logger.Error().Err(err).Str("subscription_id", sub.ID.String()).Msg("monthly charge failed")
				continue
			}
			record(JobMonthlyBilling, string(out.Result))
			switch out.Result {
			case advertising.ChargeCharged:
				rep.Succeeded++
			case advertising.ChargeFailed:
				rep.Failed++
				r.Logger.Warn().
					Str("subscription_id", sub.ID.String()).
					Int64("shortfall", out.Shortfall).
					Msg("insufficient credit for monthly charge")
			default:
				rep.Skipped++
			}
		}
		return nil
	})
	r.logReport(rep, err)
	return rep, err
}

// CancelExpiredBankTransfers cancels pending bank transfers whose deposit deadline has passed.
func (r *Runner) CancelExpiredBankTransfers(ctx context.Context) (Report, error) {
	rep := Report{Job: JobExpireBankTransfers}
	err := r.run(ctx, JobExpireBankTransfers, func(ctx context.Context) error {
		now := r.now()
		payments, err := r.Ads.ExpiredBankTransfers(ctx, now, r.batch())
		if err != nil {
			return err
		}
		for _, pay := range payments {
			rep.Processed++
			expired, err := r.Ads.ExpireBankTransfer(ctx, pay.ID, now)
			switch {
			case err != nil:
				rep.Failed++
				record(JobExpireBankTransfers, resultError)
				r.Logger.Error().Err(err).Str("payment_id", pay.ID.String()).Msg("expire bank transfer failed")
			case expired:
				rep.Succeeded++
				record(JobExpireBankTransfers, resultExpired)
			default:
				rep.Skipped++
				record(JobExpireBankTransfers, resultSkipped)
			}
		}
		return nil
	})
	r.logReport(rep, err)
	return rep, err
}

// ExpireCredits zeroes credits past their expiry date.
func (r *Runner) ExpireCredits(ctx context.Context) (Report, error) {
	rep := Report{Job: JobExpireCredits}
	err := r.run(ctx, JobExpireCredits, func(ctx context.Context) error {
		expired, err := r.Credits.ExpireDue(ctx, r.batch())
		if err != nil {
			return err
		}
		for range expired {
			record(JobExpireCredits, resultExpired)
		}
		rep.Processed = len(expired)
		rep.Succeeded = len(expired)
		return nil
	})
	r.logReport(rep, err)
	return rep, err
}

func (r *Runner) logReport(rep Report, err error) {
	if err != nil {
		if !errors.Is(err, lock.ErrNotAcquired) {
			r.Logger.Error().Err(err).Str("job", rep.Job).Msg("billing job failed")
		}
		return
	}
	r.Logger.Info().
		Str("job", rep.Job).
		Int("processed", rep.Processed).
		Int("succeeded", rep.Succeeded).
		Int("failed", rep.Failed).
		Int("skipped", rep.Skipped).
		Msg("billing job finished")
}

func record(job, result string) {
	if obs.AdBillingJobTotal != nil {
		obs.AdBillingJobTotal.WithLabelValues(job, result).Inc()
	}
}
