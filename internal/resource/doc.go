// Package resource governs shared limits of an index instance.
//
// A [Controller] bounds the number of concurrently running workers with a
// weighted semaphore and throttles index file writes with a token bucket:
//
//	rc := resource.NewController(resource.Config{
//		MaxWorkers:         4,
//		IOLimitBytesPerSec: 64 << 20,
//	})
//	if err := rc.AcquireIO(ctx, len(payload)); err != nil {
//		return err
//	}
//
// All methods accept a nil *Controller, which imposes no limits.
package resource
