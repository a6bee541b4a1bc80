package manager

import (
	"context"
	"sync"
	"time"
)

// Runner invokes SendSavedEventsBatch at a fixed interval. It stands in for
// the host scheduler: roughly one flush a minute, overlapping runs resolved
// by the queue's reservation.
type Runner struct {
	manager  *Manager
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewRunner(m *Manager, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		manager:  m,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the flush loop.
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop gracefully shuts down, waiting for an in-flight cycle to finish.
func (r *Runner) Stop() {
	close(r.stopChan)
	r.wg.Wait()
}

func (r *Runner) run() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.manager.SendSavedEventsBatch(context.Background())
		}
	}
}
