package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 5 * time.Second

// InitSentry enables error reporting when dsn is set. The returned flush
// function waits for queued reports and is safe to call when reporting is
// off.
func InitSentry(dsn, environment, release string) (flush func(), err error) {
	noop := func() {}
	if dsn == "" {
		return noop, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	}); err != nil {
		return noop, fmt.Errorf("sentry init: %w", err)
	}
	return func() { sentry.Flush(flushTimeout) }, nil
}

// CaptureFatal reports err with a stage tag and flushes before returning,
// since the caller is about to exit.
func CaptureFatal(stage string, err error) {
	if err == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("stage", stage)
	})
	hub.CaptureException(err)
	hub.Flush(flushTimeout)
}

// Recover reports a panic on the calling goroutine and re-panics.
func Recover(stage string) {
	if r := recover(); r != nil {
		hub := sentry.CurrentHub().Clone()
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("stage", stage)
		})
		hub.Recover(r)
		hub.Flush(flushTimeout)
		panic(r)
	}
}
