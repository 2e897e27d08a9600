package syncctx

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DrainRunsInEnqueueOrder(t *testing.T) {
	q := NewQueue()
	var got []int

	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(func() { got = append(got, i) }))
	}

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_EnqueueDuringDrainDefers(t *testing.T) {
	q := NewQueue()
	var got []string

	q.Enqueue(func() {
		got = append(got, "outer")
		q.Enqueue(func() { got = append(got, "inner") })
	})
	q.Enqueue(func() { got = append(got, "second") })

	n := q.Drain()
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"outer", "second"}, got, "inner item must wait for the next drain")
	assert.Equal(t, 1, q.Len())

	n = q.Drain()
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"outer", "second", "inner"}, got)
}

func TestQueue_DrainEmpty(t *testing.T) {
	q := NewQueue()
	assert.Equal(t, 0, q.Drain())
}

func TestQueue_RejectsNil(t *testing.T) {
	q := NewQueue()
	assert.False(t, q.Enqueue(nil))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_CloseRejectsButKeepsPending(t *testing.T) {
	q := NewQueue()
	ran := 0
	q.Enqueue(func() { ran++ })

	q.Close()
	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(func() { ran++ }))

	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, 1, ran)

	q.Close() // idempotent
}

func TestQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := NewQueue()
	q.Enqueue(func() {})

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal after enqueue")
	}
}

func TestQueue_ConcurrentEnqueueAllDrained(t *testing.T) {
	q := NewQueue()
	const goroutines = 32
	const perGoroutine = 100

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				q.Enqueue(func() {
					mu.Lock()
					count++
					mu.Unlock()
				})
			}
		}()
	}

	// Drain concurrently with producers, then once more after they finish.
	total := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			total += q.Drain()
			assert.Equal(t, goroutines*perGoroutine, total)
			assert.Equal(t, goroutines*perGoroutine, count)
			return
		default:
			total += q.Drain()
		}
	}
}

func TestQueue_PerProducerOrderPreserved(t *testing.T) {
	q := NewQueue()
	var got []int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			q.Enqueue(func() { got = append(got, i) })
		}
	}()
	wg.Wait()

	q.Drain()
	require.Len(t, got, 50)
	for i := range got {
		assert.Equal(t, i, got[i])
	}
}
