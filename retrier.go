package groundctl

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var retrySleep = time.Second

// Retryable is a connection that can be opened, run until it fails and
// reopened.
type Retryable interface {
	Open(ctx context.Context) error
	Close() error
	Start(ctx context.Context) error
	Name() string
}

// retry keeps r running until ctx is done, reopening it after every failure.
func retry(ctx context.Context, r Retryable) error {
	errStarting := errors.New("starting")
	err := errStarting
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			if err != errStarting {
				log.WithField("err", err).Errorf("%s: reconnecting due to error", r.Name())
				if err = r.Close(); err != nil {
					log.WithField("err", err).Warnf("%s: unable to close", r.Name())
				}
				if !sleepCtx(ctx, retrySleep) {
					return ctx.Err()
				}
			}
			err = r.Open(ctx)
			if err != nil {
				continue
			}
		}
		err = r.Start(ctx)
	}
}

// once opens and runs r a single time. A failed open is logged and the
// connection is left down.
func once(ctx context.Context, r Retryable) error {
	if err := r.Open(ctx); err != nil {
		log.WithField("err", err).Errorf("%s: unable to connect, continuing without it", r.Name())
		return nil
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.WithField("err", err).Debugf("%s: unable to close", r.Name())
		}
	}()
	return r.Start(ctx)
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
