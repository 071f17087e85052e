package crypto

import (
	"sync"
	"sync/atomic"
)

// BufferPool provides thread-safe pooling of byte buffers sized around
// the chunker's target sizes (avg 128KiB, max 256KiB). Buffers are
// zeroized before returning to the pool so plaintext chunk bytes never
// linger in a pooled buffer between uses.
type BufferPool struct {
	poolNonce *sync.Pool // 24-byte buffers (XChaCha20-Poly1305 nonces)
	poolChunk *sync.Pool // chunk-sized buffers (up to MaxSize + AEAD overhead)

	hitsNonce, missesNonce int64
	hitsChunk, missesChunk int64
}

const chunkBufCap = 256*1024 + 64 // MaxSize + room for the AEAD tag

var globalBufferPool = &BufferPool{
	poolNonce: &sync.Pool{},
	poolChunk: &sync.Pool{},
}

// GetGlobalBufferPool returns the process-wide buffer pool instance.
func GetGlobalBufferPool() *BufferPool { return globalBufferPool }

// GetNonce returns a nonceSize buffer from the pool.
func (p *BufferPool) GetNonce() []byte {
	if buf := p.poolNonce.Get(); buf != nil {
		atomic.AddInt64(&p.hitsNonce, 1)
		return buf.([]byte)
	}
	atomic.AddInt64(&p.missesNonce, 1)
	return make([]byte, nonceSize)
}

// PutNonce returns a nonce buffer to the pool after zeroizing it.
func (p *BufferPool) PutNonce(buf []byte) {
	if cap(buf) != nonceSize {
		return
	}
	zero(buf)
	p.poolNonce.Put(buf) //nolint:staticcheck // buf is the pool's own element type
}

// GetChunk returns a buffer able to hold at least size bytes, preferring
// the shared chunk-sized pool when size fits.
func (p *BufferPool) GetChunk(size int) []byte {
	if size <= chunkBufCap {
		if buf := p.getChunkRaw(); buf != nil && cap(buf) >= size {
			atomic.AddInt64(&p.hitsChunk, 1)
			return buf[:size]
		}
	}
	atomic.AddInt64(&p.missesChunk, 1)
	return make([]byte, size)
}

// getChunkRaw returns a pooled chunk buffer, or nil when the pool is empty.
func (p *BufferPool) getChunkRaw() []byte {
	if buf := p.poolChunk.Get(); buf != nil {
		return buf.([]byte)
	}
	return nil
}

// PutChunk returns a chunk buffer to the pool after zeroizing it.
func (p *BufferPool) PutChunk(buf []byte) {
	if cap(buf) < chunkBufCap {
		return
	}
	zero(buf[:cap(buf)])
	p.poolChunk.Put(buf[:cap(buf)])
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// Metrics reports pool hit/miss counters for the /metrics exporter.
func (p *BufferPool) Metrics() BufferPoolMetrics {
	return BufferPoolMetrics{
		HitsNonce:   atomic.LoadInt64(&p.hitsNonce),
		MissesNonce: atomic.LoadInt64(&p.missesNonce),
		HitsChunk:   atomic.LoadInt64(&p.hitsChunk),
		MissesChunk: atomic.LoadInt64(&p.missesChunk),
	}
}

// BufferPoolMetrics is a point-in-time snapshot of pool performance.
type BufferPoolMetrics struct {
	HitsNonce, MissesNonce int64
	HitsChunk, MissesChunk int64
}

// ChunkHitRate returns the fraction of chunk-buffer requests served from
// the pool rather than freshly allocated.
func (m BufferPoolMetrics) ChunkHitRate() float64 {
	total := m.HitsChunk + m.MissesChunk
	if total == 0 {
		return 0
	}
	return float64(m.HitsChunk) / float64(total)
}
