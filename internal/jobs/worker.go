package jobs

import (
	"context"
	"log"
	"time"
)

// Sweeper performs one pass of background work.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// Worker runs a Sweeper on a fixed interval until stopped. The first
// sweep runs immediately so work present at startup is not delayed by
// a full interval.
type Worker struct {
	sweeper  Sweeper
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(sweeper Sweeper, interval time.Duration) *Worker {
	return &Worker{
		sweeper:  sweeper,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the worker's sweep loop
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("Worker started with sweep interval: %v", w.interval)

	if err := w.sweeper.Sweep(ctx); err != nil {
		log.Printf("Error running sweep: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("Worker stopped: stop signal received")
			return
		case <-ticker.C:
			if err := w.sweeper.Sweep(ctx); err != nil {
				log.Printf("Error running sweep: %v", err)
			}
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("Worker shutdown complete")
}
