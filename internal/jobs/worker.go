// Package jobs runs periodic background tasks alongside the HTTP server.
package jobs

import (
	"context"
	"log"
	"time"
)

// Task is one unit of periodic background work.
type Task interface {
	Run(ctx context.Context) error
}

// Worker runs a task on a fixed interval until stopped. Task errors are
// logged and the loop continues; a flaky flush must not kill the worker.
type Worker struct {
	task     Task
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewWorker(task Task, interval time.Duration) *Worker {
	return &Worker{
		task:     task,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start runs the ticker loop. Blocks until the context is cancelled or Stop
// is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("Background worker started with interval: %v", w.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Background worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("Background worker stopped: stop signal received")
			return
		case <-ticker.C:
			if err := w.task.Run(ctx); err != nil {
				log.Printf("Background task error: %v", err)
			}
		}
	}
}

// Stop gracefully stops the worker and waits for the loop to exit.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("Background worker shutdown complete")
}
