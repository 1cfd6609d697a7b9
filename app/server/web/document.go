package web

import (
	"net/http"
	"strings"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/viktokle/folio/app/enum"
)

// colorSchemeHint is the client hint carrying the browser color-scheme preference.
const colorSchemeHint = "Sec-CH-Prefers-Color-Scheme"

// ClientHints asks browsers to send the color-scheme preference with every request,
// so the first response already renders with the right theme.
func ClientHints(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-CH", colorSchemeHint)
		w.Header().Set("Critical-CH", colorSchemeHint)
		w.Header().Add("Vary", colorSchemeHint)
		next.ServeHTTP(w, r)
	})
}

// prefersDark reports whether the request carries a dark color-scheme hint.
func prefersDark(r *http.Request) bool {
	v := strings.Trim(r.Header.Get(colorSchemeHint), `" `)
	return strings.EqualFold(v, "dark")
}

// pageDocument records what the controller applies to a page being rendered on the server.
type pageDocument struct {
	prefersDark bool

	mu         sync.Mutex
	theme      enum.Theme
	suppressed bool
	applied    int
}

func newPageDocument(r *http.Request) *pageDocument {
	return &pageDocument{prefersDark: prefersDark(r)}
}

func (d *pageDocument) PrefersDark() bool { return d.prefersDark }

func (d *pageDocument) SuppressTransitions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suppressed = true
}

func (d *pageDocument) SetTheme(t enum.Theme) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.theme = t
	d.applied++
}

func (d *pageDocument) RestoreTransitions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suppressed = false
}

// Theme returns the last applied theme.
func (d *pageDocument) Theme() enum.Theme {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.theme
}

// streamEvent is a single server-sent event.
type streamEvent struct {
	name string
	data string
}

// streamSink turns theme applications into events for a live tab.
// Sends never block, the controller calls the sink under its lock.
type streamSink struct {
	prefersDark bool
	events      chan streamEvent
}

func newStreamSink(r *http.Request, size int) *streamSink {
	return &streamSink{prefersDark: prefersDark(r), events: make(chan streamEvent, size)}
}

func (s *streamSink) PrefersDark() bool { return s.prefersDark }

func (s *streamSink) SuppressTransitions() { s.send(streamEvent{name: "transition", data: "suppress"}) }

func (s *streamSink) SetTheme(t enum.Theme) { s.send(streamEvent{name: "theme", data: t.String()}) }

func (s *streamSink) RestoreTransitions() { s.send(streamEvent{name: "transition", data: "restore"}) }

func (s *streamSink) send(ev streamEvent) {
	select {
	case s.events <- ev:
	default:
		log.Printf("[WARN] drop %s event %q, stream is not keeping up", ev.name, ev.data)
	}
}
