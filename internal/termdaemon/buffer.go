package termdaemon

import "sync"

// maxBufferBytes and maxBufferChunks bound a terminal's replay buffer:
// whichever limit is hit first evicts the oldest chunk.
const (
	maxBufferBytes  = 100 * 1024
	maxBufferChunks = 1000
)

// ringBuffer records a PTY's output for post-hoc replay by a
// reconnecting subscriber, bounded by both total bytes and chunk count.
type ringBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	bytes  int
}

func (b *ringBuffer) append(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	b.chunks = append(b.chunks, cp)
	b.bytes += len(cp)

	for (len(b.chunks) > maxBufferChunks || b.bytes > maxBufferBytes) && len(b.chunks) > 0 {
		b.bytes -= len(b.chunks[0])
		b.chunks = b.chunks[1:]
	}
}

func (b *ringBuffer) snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, 0, b.bytes)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}
