package view

import (
	"embed"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

//go:embed templates/page.html
var templatesFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templatesFS, "templates/page.html"))

// flashTTL bounds how long a notification waits for the redirected GET.
const flashTTL = 30 * time.Second

// Page is the HTML surface: one form and one output region. It keeps the
// last rendered panel so every GET shows the current state.
//
// A notification raised through Notify is page state: it is shown on every
// GET until the next submission starts or a forecast renders. Notifications
// that belong to one form submission travel as flashes instead.
type Page struct {
	mu     sync.RWMutex
	status Status
	panel  Panel
	input  string
	notice *Notification

	flashes *cache.Cache
	now     func() time.Time
}

func NewPage() *Page {
	return &Page{
		flashes: cache.New(flashTTL, time.Minute),
		now:     time.Now,
	}
}

func (p *Page) SetStatus(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
	if s == StatusLoading {
		p.notice = nil
	}
}

// Render replaces the output region. An empty panel leaves it untouched.
func (p *Page) Render(panel Panel) {
	if panel.Empty() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panel = panel
	p.notice = nil
}

func (p *Page) Notify(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = &n
}

func (p *Page) ResetInput() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = ""
}

func (p *Page) SetInput(v string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = v
}

// AddFlash stores n for a single later read and returns its id. If n is
// the current page notice it is taken off the page.
func (p *Page) AddFlash(n Notification) string {
	id := uuid.NewString()
	p.flashes.Set(id, n, cache.DefaultExpiration)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notice != nil && *p.notice == n {
		p.notice = nil
	}
	return id
}

// Flash consumes a stored notification.
func (p *Page) Flash(id string) (Notification, bool) {
	if id == "" {
		return Notification{}, false
	}
	v, ok := p.flashes.Get(id)
	if !ok {
		return Notification{}, false
	}
	p.flashes.Delete(id)
	n, ok := v.(Notification)
	return n, ok
}

type Snapshot struct {
	Status Status        `json:"-"`
	State  string        `json:"status"`
	Panel  Panel         `json:"panel"`
	Notice *Notification `json:"notification,omitempty"`
	Input  string        `json:"-"`
}

func (p *Page) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{Status: p.status, State: p.status.String(), Panel: p.panel, Notice: p.notice, Input: p.input}
}

type pageData struct {
	Snapshot
	Today        time.Time
	Button       string
	Notification *Notification
}

// Write renders the full page. flash, when set, replaces the page notice.
func (p *Page) Write(w io.Writer, flash *Notification) error {
	snap := p.Snapshot()
	n := snap.Notice
	if flash != nil {
		n = flash
	}
	return pageTmpl.Execute(w, pageData{
		Snapshot:     snap,
		Today:        p.now(),
		Button:       snap.Status.ButtonLabel(),
		Notification: n,
	})
}
