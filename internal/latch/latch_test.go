package latch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatch_TriggerSuccessThenWaitReturnsImmediately(t *testing.T) {
	l := New()
	l.TriggerSuccess()

	res, err := l.Wait(context.Background())
	assert.Equal(t, ResultOK, res)
	assert.NoError(t, err)
}

func TestLatch_Idempotency(t *testing.T) {
	l := New()
	l.TriggerSuccess()
	l.TriggerFailure(errors.New("too late"))

	res, err := l.Wait(context.Background())
	assert.Equal(t, ResultOK, res, "second trigger must not override the first")
	assert.NoError(t, err)
}

func TestLatch_TriggerFailure(t *testing.T) {
	l := New()
	want := errors.New("boom")
	l.TriggerFailure(want)

	res, err := l.Wait(context.Background())
	assert.Equal(t, ResultFailed, res)
	assert.Equal(t, want, err)
}

func TestLatch_Timeout(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res, err := l.Wait(ctx)
	assert.Equal(t, ResultTimeout, res)
	assert.Error(t, err)
}

func TestLatch_MultipleWaiters(t *testing.T) {
	l := New()
	started := make(chan struct{})
	done := make(chan Result, 1)

	go func() {
		close(started)
		res, _ := l.Wait(context.Background())
		done <- res
	}()

	<-started
	time.Sleep(10 * time.Millisecond) // let the first Wait register

	res, err := l.Wait(context.Background())
	assert.Equal(t, ResultMultipleWaiters, res)
	assert.ErrorIs(t, err, ErrMultipleWaiters)

	l.TriggerSuccess()
	assert.Equal(t, ResultOK, <-done)
}

func TestLatch_WaiterClearedOnTimeoutAllowsNextWaiter(t *testing.T) {
	l := New()
	ctx1, cancel1 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel1()
	_, _ = l.Wait(ctx1)

	l.TriggerSuccess()
	res, err := l.Wait(context.Background())
	assert.Equal(t, ResultOK, res)
	assert.NoError(t, err)
}

func TestLatch_Reset(t *testing.T) {
	l := New()
	l.TriggerSuccess()
	l.Reset()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res, _ := l.Wait(ctx)
	assert.Equal(t, ResultTimeout, res)
}
