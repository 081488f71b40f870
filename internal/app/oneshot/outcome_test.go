package oneshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOnce(t *testing.T) {
	var released atomic.Int32
	o := New[string](func() { released.Add(1) })

	assert.True(t, o.Resolve("first"))
	assert.False(t, o.Resolve("second"))
	assert.False(t, o.Reject(errors.New("late")))

	v, err := o.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.EqualValues(t, 1, released.Load())
}

func TestRejectOnce(t *testing.T) {
	boom := errors.New("boom")
	o := New[int](nil)

	assert.True(t, o.Reject(boom))
	assert.False(t, o.Resolve(42))

	v, err := o.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, v)
}

func TestWaitContextCanceled(t *testing.T) {
	var released atomic.Int32
	o := New[int](func() { released.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := o.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, o.Resolve(1), "settled by the context")
	assert.EqualValues(t, 1, released.Load())
}

func TestCancel(t *testing.T) {
	o := New[int](nil)
	o.Cancel()
	select {
	case <-o.Done():
	default:
		t.Fatal("Done not closed after Cancel")
	}
	_, err := o.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestConcurrentSettlers(t *testing.T) {
	o := New[int](nil)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var ok bool
			if i%2 == 0 {
				ok = o.Resolve(i)
			} else {
				ok = o.Reject(errors.New("x"))
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}
