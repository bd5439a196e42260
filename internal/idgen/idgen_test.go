package idgen

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator_WorkerIDRange(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator(maxWorkerID + 1)
	require.ErrorIs(t, err, ErrWorkerIDRange)

	_, err = NewGenerator(-1)
	require.ErrorIs(t, err, ErrWorkerIDRange)

	g, err := NewGenerator(maxWorkerID)
	require.NoError(t, err)
	assert.NotNil(t, g)
}

func TestNext_Monotonic(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(1)
	require.NoError(t, err)

	prev, err := g.Next()
	require.NoError(t, err)

	for range 1000 {
		id, err := g.Next()
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestNext_EncodesWorkerAndTime(t *testing.T) {
	t.Parallel()

	fixed := time.UnixMilli(1725148800000)

	g, err := NewGenerator(42)
	require.NoError(t, err)
	g.now = func() time.Time { return fixed }

	id, err := g.Next()
	require.NoError(t, err)

	assert.Equal(t, int64(42), WorkerID(id))
	assert.Equal(t, fixed.UnixMilli(), Timestamp(id).UnixMilli())
}

func TestNext_ClockWentBack(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(0)
	require.NoError(t, err)

	g.now = func() time.Time { return time.UnixMilli(2000) }
	_, err = g.Next()
	require.NoError(t, err)

	g.now = func() time.Time { return time.UnixMilli(1000) }
	_, err = g.Next()
	require.ErrorIs(t, err, ErrClockWentBack)
}

func TestNext_ConcurrentUnique(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(3)
	require.NoError(t, err)

	const workers = 8
	const perWorker = 500

	var (
		mu  sync.Mutex
		ids = make(map[int64]struct{}, workers*perWorker)
		wg  sync.WaitGroup
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range perWorker {
				id, err := g.Next()
				if err != nil {
					// Sequence overflow is the only acceptable failure under load.
					assert.ErrorIs(t, err, ErrSequenceOverflow)
					continue
				}

				mu.Lock()
				ids[int64(id)] = struct{}{}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.NotEmpty(t, ids)
}
