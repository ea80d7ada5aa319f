package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_SerializesPerKey(t *testing.T) {
	q := NewQueue()

	const n = 100
	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		q.Enqueue("m1", func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Len(t, got, n)
	for i := range got {
		require.Equal(t, i, got[i])
	}
}

func TestQueue_RecoversPanics(t *testing.T) {
	q := NewQueue()
	done := make(chan struct{})
	q.Enqueue("k", func() { panic("boom") })
	q.Enqueue("k", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lane stopped after panic")
	}
}

func TestQueue_IdleLanesExit(t *testing.T) {
	q := NewQueue()
	q.idle = 10 * time.Millisecond

	done := make(chan struct{})
	q.Enqueue("k", func() { close(done) })
	<-done

	require.Eventually(t, func() bool { return q.Lanes() == 0 }, time.Second, 5*time.Millisecond)
}
