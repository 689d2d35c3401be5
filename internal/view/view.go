// Package view holds the display side of the widget: the Panel projection
// and the surfaces that show it (HTML page, terminal, websocket stream).
package view

import "sync"

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	default:
		return "idle"
	}
}

// ButtonLabel is the submit button text for s.
func (s Status) ButtonLabel() string {
	if s == StatusLoading {
		return "Loading..."
	}
	return "Submit"
}

type Level string

const (
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
	LevelSuccess Level = "success"
)

type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type View interface {
	SetStatus(Status)
	Render(Panel)
	Notify(Notification)
	ResetInput()
}

// Multi fans every call out to each view in order.
type Multi []View

func (m Multi) SetStatus(s Status) {
	for _, v := range m {
		v.SetStatus(s)
	}
}

func (m Multi) Render(p Panel) {
	for _, v := range m {
		v.Render(p)
	}
}

func (m Multi) Notify(n Notification) {
	for _, v := range m {
		v.Notify(n)
	}
}

func (m Multi) ResetInput() {
	for _, v := range m {
		v.ResetInput()
	}
}

// Collector keeps the last notification raised by one submission. It
// ignores everything else.
type Collector struct {
	mu sync.Mutex
	n  *Notification
}

func (c *Collector) SetStatus(Status) {}
func (c *Collector) Render(Panel)     {}
func (c *Collector) ResetInput()      {}

func (c *Collector) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = &n
}

func (c *Collector) Notification() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		return Notification{}, false
	}
	return *c.n, true
}
