package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type safeRecorder struct {
	mu     sync.Mutex
	events []ScanEvent
}

func (r *safeRecorder) HandleScan(ev ScanEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *safeRecorder) snapshot() []ScanEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ScanEvent, len(r.events))
	copy(out, r.events)
	return out
}

type brokenDecoder struct{}

func (brokenDecoder) Open(ctx context.Context) (<-chan string, error) {
	return nil, errors.New("permission denied")
}
func (brokenDecoder) Close() error { return nil }

func TestCameraBridge_ForwardsDecodedCodes(t *testing.T) {
	rec := &safeRecorder{}
	dec := NewPushDecoder(4)
	bridge := NewCameraBridge(dec, rec, zap.NewNop())

	require.NoError(t, bridge.Open(context.Background()))
	require.NoError(t, bridge.Open(context.Background()))
	assert.True(t, bridge.IsOpen())

	require.NoError(t, dec.Push("5901234123457"))
	require.NoError(t, dec.Push("   "))
	require.NoError(t, dec.Push("ABC-9"))

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	events := rec.snapshot()
	assert.Equal(t, "5901234123457", events[0].Code)
	assert.Equal(t, SourceCamera, events[0].Source)
	assert.Equal(t, "ABC-9", events[1].Code)

	require.NoError(t, bridge.Close())
	assert.False(t, bridge.IsOpen())
	assert.ErrorIs(t, dec.Push("late"), ErrCameraClosed)
	require.NoError(t, bridge.Close())
}

func TestCameraBridge_UnavailableDevice(t *testing.T) {
	bridge := NewCameraBridge(brokenDecoder{}, &safeRecorder{}, zap.NewNop())

	err := bridge.Open(context.Background())
	assert.ErrorIs(t, err, ErrCameraUnavailable)
	assert.False(t, bridge.IsOpen())
	assert.NoError(t, bridge.Close())
}

func TestCameraBridge_ReopensAfterDecoderStops(t *testing.T) {
	rec := &safeRecorder{}
	dec := NewPushDecoder(4)
	bridge := NewCameraBridge(dec, rec, zap.NewNop())

	require.NoError(t, bridge.Open(context.Background()))
	require.NoError(t, dec.Close())
	assert.Eventually(t, func() bool { return !bridge.IsOpen() }, time.Second, 5*time.Millisecond)

	require.NoError(t, bridge.Open(context.Background()))
	assert.True(t, bridge.IsOpen())
	require.NoError(t, dec.Push("4006381333931"))
	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bridge.Close())
	assert.False(t, bridge.IsOpen())
}

func TestCameraBridge_OutlivesOpenContext(t *testing.T) {
	rec := &safeRecorder{}
	dec := NewPushDecoder(1)
	bridge := NewCameraBridge(dec, rec, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bridge.Open(ctx))
	cancel()

	require.NoError(t, dec.Push("7777"))
	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, bridge.Close())
}

func TestPushDecoder_Backlog(t *testing.T) {
	dec := NewPushDecoder(1)
	_, err := dec.Open(context.Background())
	require.NoError(t, err)
	defer dec.Close()

	require.NoError(t, dec.Push("1"))
	assert.ErrorIs(t, dec.Push("2"), ErrDecodeBacklog)

	_, err = dec.Open(context.Background())
	assert.Error(t, err)
}
