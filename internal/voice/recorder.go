package voice

import (
	"context"
	"encoding/binary"
	"io"
)

// Recorder is a microphone device. Implementations own platform capture;
// the pipeline only orchestrates acquisition, buffering and release.
type Recorder interface {
	// Start acquires the device and returns a channel of captured PCM
	// chunks. A refused acquisition wraps ErrPermissionDenied.
	Start(ctx context.Context) (<-chan []int16, error)
	// Stop releases the device and closes the chunk channel. The device
	// must be released even when Stop fails.
	Stop() error
}

const fileChunkSamples = 3200 // 100ms at 16kHz

// FileRecorder replays raw 16-bit little-endian PCM from a reader as if
// it were a live microphone. It stands in for platform capture in the
// CLI. A blocking underlying reader can hold the delivery goroutine
// until its current Read returns.
type FileRecorder struct {
	r       io.Reader
	ch      chan []int16
	done    chan struct{}
	drained chan struct{}
}

// NewFileRecorder creates a recorder reading raw PCM from r.
func NewFileRecorder(r io.Reader) *FileRecorder {
	return &FileRecorder{r: r}
}

func (f *FileRecorder) Start(ctx context.Context) (<-chan []int16, error) {
	f.ch = make(chan []int16)
	f.done = make(chan struct{})
	f.drained = make(chan struct{})

	go func() {
		defer close(f.drained)
		defer close(f.ch)
		buf := make([]byte, fileChunkSamples*2)
		for {
			n, err := io.ReadFull(f.r, buf)
			if n > 0 {
				samples := make([]int16, n/2)
				for i := range samples {
					samples[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
				}
				select {
				case f.ch <- samples:
				case <-f.done:
					return
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return f.ch, nil
}

func (f *FileRecorder) Stop() error {
	close(f.done)
	return nil
}

// Drained is closed once the reader is exhausted and every chunk has been
// delivered. Callers replaying a complete capture wait on it before
// stopping, otherwise Stop can cut the replay short.
func (f *FileRecorder) Drained() <-chan struct{} {
	return f.drained
}
