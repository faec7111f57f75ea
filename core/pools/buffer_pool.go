package pools

import (
	"sync"
	"sync/atomic"
)

// Buffer pool sizes
const (
	SmallBufferSize  = 512      // status lines and short bodies
	MediumBufferSize = 4 * 1024 // typical handler output
	LargeBufferSize  = 32 * 1024
)

// BufferPool manages response buffers with three size tiers
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool

	// Statistics
	smallGets  atomic.Uint64
	mediumGets atomic.Uint64
	largeGets  atomic.Uint64
	discarded  atomic.Uint64
}

func newTier(size int) sync.Pool {
	return sync.Pool{
		New: func() any {
			buf := make([]byte, 0, size)
			return &buf
		},
	}
}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small:  newTier(SmallBufferSize),
		medium: newTier(MediumBufferSize),
		large:  newTier(LargeBufferSize),
	}
}

// Get acquires an empty buffer with room for at least estimatedSize bytes
// when estimatedSize fits a tier
func (bp *BufferPool) Get(estimatedSize int) *[]byte {
	switch {
	case estimatedSize <= SmallBufferSize:
		bp.smallGets.Add(1)
		return bp.small.Get().(*[]byte)
	case estimatedSize <= MediumBufferSize:
		bp.mediumGets.Add(1)
		return bp.medium.Get().(*[]byte)
	default:
		bp.largeGets.Add(1)
		return bp.large.Get().(*[]byte)
	}
}

// Put returns a buffer to the pool
func (bp *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}

	// Reset buffer but keep capacity
	*buf = (*buf)[:0]

	// Return to the tier its capacity still satisfies
	switch c := cap(*buf); {
	case c > LargeBufferSize:
		// Oversized buffers are left to the GC
		bp.discarded.Add(1)
	case c >= LargeBufferSize:
		bp.large.Put(buf)
	case c >= MediumBufferSize:
		bp.medium.Put(buf)
	case c >= SmallBufferSize:
		bp.small.Put(buf)
	default:
		bp.discarded.Add(1)
	}
}

// Stats returns buffer pool statistics
func (bp *BufferPool) Stats() BufferStats {
	return BufferStats{
		SmallGets:  bp.smallGets.Load(),
		MediumGets: bp.mediumGets.Load(),
		LargeGets:  bp.largeGets.Load(),
		Discarded:  bp.discarded.Load(),
	}
}

// BufferStats contains buffer pool statistics
type BufferStats struct {
	SmallGets  uint64
	MediumGets uint64
	LargeGets  uint64
	Discarded  uint64
}

// Global buffer pool
var globalBufferPool = NewBufferPool()

// AcquireBuffer gets a buffer from the global pool
func AcquireBuffer(estimatedSize int) *[]byte {
	return globalBufferPool.Get(estimatedSize)
}

// ReleaseBuffer returns a buffer to the global pool
func ReleaseBuffer(buf *[]byte) {
	globalBufferPool.Put(buf)
}

// GetBufferStats returns statistics for the global buffer pool
func GetBufferStats() BufferStats {
	return globalBufferPool.Stats()
}
