// Package worker runs tasks on a bounded number of goroutines.
package worker

import (
	"context"
	"sync"
)

// Pool bounds the number of tasks running at once
type Pool struct {
	wg      sync.WaitGroup
	workers chan struct{}
}

// NewPool creates a pool running at most size tasks at a time. Sizes below
// one are treated as one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		workers: make(chan struct{}, size),
	}
}

// Submit blocks until a worker is free, then runs task on it.
func (p *Pool) Submit(task func()) {
	p.wg.Add(1)
	p.workers <- struct{}{}

	go func() {
		defer func() {
			<-p.workers
			p.wg.Done()
		}()

		task()
	}()
}

// Go is Submit that gives up waiting for a worker when ctx is done. It
// reports whether task was scheduled.
func (p *Pool) Go(ctx context.Context, task func()) bool {
	p.wg.Add(1)
	select {
	case p.workers <- struct{}{}:
	case <-ctx.Done():
		p.wg.Done()
		return false
	}

	go func() {
		defer func() {
			<-p.workers
			p.wg.Done()
		}()

		task()
	}()
	return true
}

// Wait waits for all submitted tasks to complete
func (p *Pool) Wait() {
	p.wg.Wait()
}
