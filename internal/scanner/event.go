// internal/scanner/event.go
package scanner

import "time"

// Source identifies where a scanned code came from.
type Source string

const (
	SourceKeyboard Source = "keyboard"
	SourceCamera   Source = "camera"
)

// ScanEvent is a decoded code ready for the commit policy.
type ScanEvent struct {
	Code   string    `json:"code"`
	Source Source    `json:"source"`
	At     time.Time `json:"at"`
}

// Sink consumes scan events. Keyboard and camera paths share one sink.
type Sink interface {
	HandleScan(ev ScanEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev ScanEvent)

func (f SinkFunc) HandleScan(ev ScanEvent) { f(ev) }
