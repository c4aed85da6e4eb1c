// internal/scanner/keyboard.go
package scanner

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultBurstGap is the longest pause between two scanner keystrokes.
	DefaultBurstGap = 100 * time.Millisecond
	// DefaultMinCodeLength is exclusive: codes must be longer than this.
	DefaultMinCodeLength = 3

	KeyEnter = "Enter"
)

// Target names the element that had focus when a key was pressed.
type Target string

const (
	TargetBody            Target = "body"
	TargetInput           Target = "input"
	TargetTextarea        Target = "textarea"
	TargetSelect          Target = "select"
	TargetContentEditable Target = "contenteditable"
)

// Editable reports whether typing into the target is form input.
func (t Target) Editable() bool {
	switch Target(strings.ToLower(string(t))) {
	case TargetInput, TargetTextarea, TargetContentEditable:
		return true
	}
	return false
}

// KeyEvent is one keydown as reported by the client.
type KeyEvent struct {
	Key    string    `json:"key"`
	Ctrl   bool      `json:"ctrl,omitempty"`
	Alt    bool      `json:"alt,omitempty"`
	Meta   bool      `json:"meta,omitempty"`
	Target Target    `json:"target,omitempty"`
	At     time.Time `json:"at"`
}

func (e KeyEvent) printable() (rune, bool) {
	if e.Ctrl || e.Alt || e.Meta {
		return 0, false
	}
	if utf8.RuneCountInString(e.Key) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(e.Key)
	return r, unicode.IsPrint(r)
}

// Disambiguator separates USB scanner bursts from human typing. Scanners
// type faster than BurstGap per key and finish with Enter.
type Disambiguator struct {
	sink    Sink
	gap     time.Duration
	minLen  int
	buf     []rune
	lastKey time.Time
}

// Option configures a Disambiguator.
type Option func(*Disambiguator)

func WithBurstGap(d time.Duration) Option {
	return func(k *Disambiguator) {
		if d > 0 {
			k.gap = d
		}
	}
}

func WithMinCodeLength(n int) Option {
	return func(k *Disambiguator) {
		if n >= 0 {
			k.minLen = n
		}
	}
}

func NewDisambiguator(sink Sink, opts ...Option) *Disambiguator {
	d := &Disambiguator{
		sink:   sink,
		gap:    DefaultBurstGap,
		minLen: DefaultMinCodeLength,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleKey feeds one key event and reports whether a scan was emitted.
func (d *Disambiguator) HandleKey(ev KeyEvent) bool {
	if ev.Target.Editable() {
		return false
	}

	if ev.Key == KeyEnter {
		code := string(d.buf)
		d.reset()
		if utf8.RuneCountInString(code) > d.minLen {
			d.sink.HandleScan(ScanEvent{Code: code, Source: SourceKeyboard, At: ev.At})
			return true
		}
		return false
	}

	r, ok := ev.printable()
	if !ok {
		return false
	}
	if !d.lastKey.IsZero() && ev.At.Sub(d.lastKey) > d.gap {
		d.buf = d.buf[:0]
	}
	d.buf = append(d.buf, r)
	d.lastKey = ev.At
	return false
}

// Buffered returns the characters captured so far.
func (d *Disambiguator) Buffered() string {
	return string(d.buf)
}

func (d *Disambiguator) reset() {
	d.buf = d.buf[:0]
	d.lastKey = time.Time{}
}
