package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	g := New()
	require.NoError(t, g.Acquire(context.Background(), "a"))
	assert.Equal(t, "a", g.Holder())

	g.Release("a")
	assert.Equal(t, "", g.Holder())

	require.NoError(t, g.Acquire(context.Background(), "b"))
	assert.Equal(t, "b", g.Holder())
	g.Release("b")
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	g := New()
	require.NoError(t, g.Acquire(context.Background(), "a"))

	g.Release("a")
	g.Release("a") // second release must be a no-op

	require.NoError(t, g.Acquire(context.Background(), "b"))
	g.Release("b")
}

func TestReleaseByNonHolderIsNoOp(t *testing.T) {
	t.Parallel()

	g := New()
	require.NoError(t, g.Acquire(context.Background(), "a"))

	g.Release("b")
	assert.Equal(t, "a", g.Holder())

	// The gate must still be held: a timed acquire should fail.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, g.Acquire(ctx, "b"))

	g.Release("a")
}

func TestAcquireInterruptedByCancel(t *testing.T) {
	t.Parallel()

	g := New()
	require.NoError(t, g.Acquire(context.Background(), "a"))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- g.Acquire(ctx, "b")
	}()

	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after cancel")
	}

	assert.Equal(t, "a", g.Holder())
	g.Release("a")
}

func TestMutualExclusionUnderStress(t *testing.T) {
	t.Parallel()

	g := New()

	const (
		workers = 16
		rounds  = 200
	)

	var inside atomic.Int32
	var violations atomic.Int32
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		owner := string(rune('a' + w))
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if err := g.Acquire(context.Background(), owner); err != nil {
					violations.Add(1)
					return
				}
				if inside.Add(1) > 1 {
					violations.Add(1)
				}
				inside.Add(-1)
				g.Release(owner)
			}
		}()
	}

	wg.Wait()
	assert.Zero(t, violations.Load(), "gate held by two owners simultaneously")
}
