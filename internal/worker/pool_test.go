package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsEveryTask(t *testing.T) {
	p := NewPool(3)
	var done int32

	for i := 0; i < 50; i++ {
		p.Submit(func() {
			atomic.AddInt32(&done, 1)
		})
	}
	p.Wait()

	assert.Equal(t, int32(50), atomic.LoadInt32(&done))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak int32

	for i := 0; i < 10; i++ {
		p.Submit(func() {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}
	p.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPoolGoStopsOnCancel(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	assert.True(t, p.Go(context.Background(), func() { <-release }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, p.Go(ctx, func() { t.Error("must not run") }))

	close(release)
	p.Wait()
}

func TestNewPoolMinimumSize(t *testing.T) {
	p := NewPool(0)
	ran := false
	p.Submit(func() { ran = true })
	p.Wait()
	assert.True(t, ran)
}
