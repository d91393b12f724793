package coord

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlagSetOnce(t *testing.T) {
	t.Parallel()

	f := NewFlag()
	require.False(t, f.IsSet())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Set()
		}()
	}
	wg.Wait()

	require.True(t, f.IsSet())
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed after Set")
	}

	// Setting again must not panic on the closed channel.
	f.Set()
	require.True(t, f.IsSet())
}

func TestCounterConcurrentAdds(t *testing.T) {
	t.Parallel()

	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1600), c.Load())
}

func TestCounterCompareAndSwap(t *testing.T) {
	t.Parallel()

	var c Counter
	c.Add(5)
	require.True(t, c.CompareAndSwap(5, 7))
	require.False(t, c.CompareAndSwap(5, 9))
	require.Equal(t, int64(7), c.Load())
}
