package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by *pgxpool.Pool and anything else that can report
// connectivity with a single round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabasePingCheck reports unhealthy when the database does not answer a
// ping. Intended as a readiness check.
func DatabasePingCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping database")
		}
		return nil
	}
}

// GoroutineCountCheck reports unhealthy when the process has more than
// threshold goroutines. Intended as a liveness check for goroutine leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// UptimeCheck always passes once the service has been up for at least
// warmup. It keeps /readyz red during the first moments after boot.
func UptimeCheck(start time.Time, warmup time.Duration) CheckFunc {
	return func(_ context.Context) error {
		if up := time.Since(start); up < warmup {
			return errors.Errorf("warming up, %s of %s elapsed", up.Round(time.Millisecond), warmup)
		}
		return nil
	}
}
