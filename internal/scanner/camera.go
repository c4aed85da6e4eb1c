// internal/scanner/camera.go
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrCameraClosed      = errors.New("camera scanner is closed")
	ErrDecodeBacklog     = errors.New("camera decode backlog full")
)

// Decoder is a camera feed plus barcode decoder. Open starts decoding and
// returns the stream of decoded strings; Close releases the device.
type Decoder interface {
	Open(ctx context.Context) (<-chan string, error)
	Close() error
}

// CameraBridge feeds decoded camera codes into the same sink as the
// keyboard path. It is opened and closed under explicit user control.
type CameraBridge struct {
	decoder Decoder
	sink    Sink
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCameraBridge(decoder Decoder, sink Sink, logger *zap.Logger) *CameraBridge {
	return &CameraBridge{
		decoder: decoder,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// Open starts the decode loop. The loop outlives ctx and runs until Close.
func (b *CameraBridge) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runningLocked() {
		return nil
	}
	if b.cancel != nil {
		// The decoder ended the stream on its own; release it before reopening.
		b.cancel()
		b.cancel = nil
		b.done = nil
		if err := b.decoder.Close(); err != nil {
			b.logger.Warn("failed to release stopped camera", zap.Error(err))
		}
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	codes, err := b.decoder.Open(loopCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	b.cancel = cancel
	b.done = make(chan struct{})
	go b.loop(loopCtx, codes, b.done)

	b.logger.Info("camera scanner opened")
	return nil
}

// Close stops the decode loop, waits for it to exit and releases the
// device. Closing a closed bridge is a no-op.
func (b *CameraBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel == nil {
		return nil
	}

	b.cancel()
	<-b.done
	b.cancel = nil
	b.done = nil

	if err := b.decoder.Close(); err != nil {
		return fmt.Errorf("failed to release camera: %w", err)
	}
	b.logger.Info("camera scanner closed")
	return nil
}

// IsOpen reports whether the decode loop is running.
func (b *CameraBridge) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runningLocked()
}

func (b *CameraBridge) runningLocked() bool {
	if b.cancel == nil {
		return false
	}
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

func (b *CameraBridge) loop(ctx context.Context, codes <-chan string, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case code, ok := <-codes:
			if !ok {
				b.logger.Warn("camera decoder stopped producing codes")
				return
			}
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			b.sink.HandleScan(ScanEvent{Code: code, Source: SourceCamera, At: b.now()})
		}
	}
}

// PushDecoder is a Decoder fed by a remote client that does the actual
// image decoding and pushes the results.
type PushDecoder struct {
	mu     sync.Mutex
	ch     chan string
	buffer int
}

func NewPushDecoder(buffer int) *PushDecoder {
	if buffer <= 0 {
		buffer = 16
	}
	return &PushDecoder{buffer: buffer}
}

func (d *PushDecoder) Open(ctx context.Context) (<-chan string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ch != nil {
		return nil, errors.New("decoder already open")
	}
	d.ch = make(chan string, d.buffer)
	return d.ch, nil
}

func (d *PushDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ch != nil {
		close(d.ch)
		d.ch = nil
	}
	return nil
}

// Push hands one decoded code to the bridge without blocking.
func (d *PushDecoder) Push(code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ch == nil {
		return ErrCameraClosed
	}
	select {
	case d.ch <- code:
		return nil
	default:
		return ErrDecodeBacklog
	}
}
