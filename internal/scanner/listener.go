// internal/scanner/listener.go
package scanner

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrListenerBusy = errors.New("keyboard listener already attached")
	ErrNoListener   = errors.New("no keyboard listener attached")
)

// Listener is the process-wide key capture point. At most one
// Disambiguator owns it at a time; the owner acquires it when its view
// mounts and must release it when the view goes away.
type Listener struct {
	mu    sync.Mutex
	owner *Disambiguator
	epoch uint64
}

func NewListener() *Listener {
	return &Listener{}
}

// Acquire attaches d. The returned release is idempotent and also runs
// when ctx is done.
func (l *Listener) Acquire(ctx context.Context, d *Disambiguator) (release func(), err error) {
	l.mu.Lock()
	if l.owner != nil {
		l.mu.Unlock()
		return nil, ErrListenerBusy
	}
	l.epoch++
	epoch := l.epoch
	l.owner = d
	l.mu.Unlock()

	var once sync.Once
	detach := func() {
		once.Do(func() {
			l.mu.Lock()
			if l.epoch == epoch {
				l.owner = nil
			}
			l.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, detach)
	release = func() {
		stop()
		detach()
	}
	return release, nil
}

// Hold attaches d for the duration of fn. The listener is released on
// every exit path, panics included.
func (l *Listener) Hold(ctx context.Context, d *Disambiguator, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx, d)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Dispatch routes a key event to the current owner and reports whether
// it completed a scan.
func (l *Listener) Dispatch(ev KeyEvent) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == nil {
		return false, ErrNoListener
	}
	return l.owner.HandleKey(ev), nil
}

// Attached reports whether some view currently owns the listener.
func (l *Listener) Attached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner != nil
}
