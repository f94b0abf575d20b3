package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferPool_Basic(t *testing.T) {
	pool := NewBufferPool(1024)

	// Get a buffer
	buf := pool.Get()
	require.NotNil(t, buf)
	require.Equal(t, 0, buf.Len())
	require.GreaterOrEqual(t, buf.Cap(), 1024)

	// Write to it
	buf.WriteString("hello world")
	require.Equal(t, 11, buf.Len())

	// Put it back
	pool.Put(buf)

	// Get another buffer - may or may not be the same one
	buf2 := pool.Get()
	require.NotNil(t, buf2)
	require.Equal(t, 0, buf2.Len()) // Should be reset
}

func TestBufferPool_NilPut(t *testing.T) {
	pool := NewBufferPool(1024)
	pool.Put(nil) // Should not panic
}

func TestBufferPool_DefaultSize(t *testing.T) {
	// Zero or negative size should use default
	pool := NewBufferPool(0)
	buf := pool.Get()
	require.GreaterOrEqual(t, buf.Cap(), SmallBufferSize)
	pool.Put(buf)

	pool2 := NewBufferPool(-100)
	buf2 := pool2.Get()
	require.GreaterOrEqual(t, buf2.Cap(), SmallBufferSize)
	pool2.Put(buf2)
}

func TestBufferPool_LargeBufferNotReturned(t *testing.T) {
	pool := NewBufferPool(1024)

	buf := pool.Get()
	// Grow buffer significantly beyond pool size
	largeData := make([]byte, 1024*1024)
	buf.Write(largeData)

	// Put it back - should not actually go to pool
	pool.Put(buf)

	// Get a new buffer - should be fresh, not the large one
	buf2 := pool.Get()
	require.LessOrEqual(t, buf2.Cap(), 1024*4) // Allow some growth
}

func TestGlobalPools(t *testing.T) {
	buf := SmallBufferPool.Get()
	require.NotNil(t, buf)
	SmallBufferPool.Put(buf)

	buf = MediumBufferPool.Get()
	require.NotNil(t, buf)
	MediumBufferPool.Put(buf)

	buf = LargeBufferPool.Get()
	require.NotNil(t, buf)
	LargeBufferPool.Put(buf)
}

func TestGetBuffer(t *testing.T) {
	// Small hint
	buf := GetBuffer(1000)
	require.NotNil(t, buf)
	PutBuffer(buf)

	// Medium hint
	buf = GetBuffer(10000)
	require.NotNil(t, buf)
	PutBuffer(buf)

	// Large hint
	buf = GetBuffer(500000)
	require.NotNil(t, buf)
	PutBuffer(buf)
}

func TestPutBuffer_Nil(t *testing.T) {
	PutBuffer(nil) // Should not panic
}

func TestBufferPool_Concurrent(t *testing.T) {
	pool := NewBufferPool(1024)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := pool.Get()
			buf.WriteString("test data")
			pool.Put(buf)
		}()
	}

	wg.Wait()
}

func BenchmarkBufferPool_GetPut(b *testing.B) {
	pool := NewBufferPool(4096)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := pool.Get()
		buf.WriteString("benchmark test data")
		pool.Put(buf)
	}
}
