package shutdown

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

// Stoppable is anything that can drain within a deadline
type Stoppable interface {
	Shutdown(ctx context.Context) error
}

// Graceful blocks until one of signals arrives, then gives s up to timeout
// to stop.
func Graceful(signals []os.Signal, s Stoppable, timeout time.Duration, log *logging.Logger) {
	sigCtx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	Wait(sigCtx, s, timeout, log)
}

// Wait stops s once ctx is done. Graceful is Wait on a signal context.
func Wait(ctx context.Context, s Stoppable, timeout time.Duration, log *logging.Logger) {
	<-ctx.Done()
	log.Info("shutdown signal received", "cause", context.Cause(ctx))

	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(stopCtx); err != nil {
		log.Warn("graceful shutdown completed with error", "err", err)
	} else {
		log.Info("graceful shutdown completed successfully")
	}
}
