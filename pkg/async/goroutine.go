package async

import (
	"context"
	"log"
	"runtime/debug"
	"time"
)

// SafeGo executes fn in a goroutine with context cancellation, panic
// recovery, timeout enforcement, and error logging.
//
// Use this instead of a bare `go func()` so a panicking or hung
// background task cannot crash the process or leak a goroutine.
//
//	SafeGo(context.Background(), 5*time.Second, "audit append", func(ctx context.Context) error {
//	    return logger.Append(ctx, entry)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.Printf("[SafeGo] PANIC in %s: %v\nStack trace:\n%s",
					taskName, r, string(debug.Stack()))
			}
		}()

		if err := fn(ctx); err != nil {
			// Log and swallow; background failures never propagate to
			// the request that scheduled them.
			log.Printf("[SafeGo] Error in %s: %v", taskName, err)
		}
	}()
}

// SafeGoNoError is like SafeGo for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
