// Package async provides goroutine helpers for background work.
//
// SafeGo runs a single fire-and-forget task with panic recovery and a timeout.
//
// WorkerPool runs tasks on a fixed set of workers fed by a bounded queue:
//
//	pool := async.NewWorkerPool(ctx, async.PoolConfig{
//		Name:        "dispatch",
//		Workers:     8,
//		QueueSize:   1024,
//		TaskTimeout: 30 * time.Second,
//	}, logger)
//	defer pool.Shutdown(10 * time.Second)
//
//	if err := pool.TrySubmit(task); errors.Is(err, async.ErrQueueFull) {
//		// shed load
//	}
//
// Panics inside tasks are recovered and logged with a stack trace. Shutdown
// drains queued tasks before returning.
package async
