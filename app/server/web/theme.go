package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/viktokle/folio/app/enum"
	"github.com/viktokle/folio/app/theme"
)

const streamBuffer = 16

func (h *Handler) themeConfig() theme.Config {
	return theme.Config{TransitionWindow: h.cfg.TransitionWindow}
}

// pageTheme resolves the theme a page is rendered with, before any byte of the page is sent.
// A missing or malformed preference is seeded from the color-scheme hint.
func (h *Handler) pageTheme(w http.ResponseWriter, r *http.Request) theme.State {
	visitor := h.visitorID(w, r)
	ctrl := theme.New(h.preferenceStore(w, r, visitor, tabID(r)), newPageDocument(r), nil, h.themeConfig())
	defer ctrl.Close()
	ctrl.EarlyInitialize()
	return ctrl.State()
}

// handleThemeSwitch hydrates the theme and returns the interactive toggle replacing the placeholder.
func (h *Handler) handleThemeSwitch(w http.ResponseWriter, r *http.Request) {
	visitor := h.visitorID(w, r)
	ctrl := theme.New(h.preferenceStore(w, r, visitor, tabID(r)), newPageDocument(r), nil, h.themeConfig())
	defer ctrl.Close()

	t := ctrl.Hydrate()
	h.triggerThemeChanged(w, t)
	h.render(w, http.StatusOK, "theme-switch", h.pageData(ctrl.State(), ""))
}

// handleThemeToggle flips the theme, persists it and notifies the other tabs of the visitor.
func (h *Handler) handleThemeToggle(w http.ResponseWriter, r *http.Request) {
	visitor := h.visitorID(w, r)
	// hydration may seed a missing preference, the toggle overrides it before anything is saved
	st := &pendingStore{Store: h.preferenceStore(w, r, visitor, tabID(r))}
	ctrl := theme.New(st, newPageDocument(r), nil, h.themeConfig())
	defer ctrl.Close()

	ctrl.Hydrate()
	t, err := ctrl.Toggle()
	if err != nil {
		log.Printf("[ERROR] failed to toggle theme: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := st.flush(); err != nil {
		log.Printf("[WARN] theme of visitor %s is not saved: %v", visitor, err)
	}
	log.Printf("[DEBUG] visitor %s switched theme to %s", visitor, t)
	h.triggerThemeChanged(w, t)
	h.render(w, http.StatusOK, "theme-switch", h.pageData(ctrl.State(), ""))
}

// triggerThemeChanged tells htmx to fire the themeChanged event, the page script applies it.
func (h *Handler) triggerThemeChanged(w http.ResponseWriter, t enum.Theme) {
	trigger, err := json.Marshal(map[string]any{"themeChanged": map[string]string{"theme": t.String()}})
	if err != nil {
		log.Printf("[WARN] failed to encode theme trigger: %v", err)
		return
	}
	w.Header().Set("HX-Trigger", string(trigger))
}

// handleThemeEvents streams theme changes made in other tabs of the visitor as server-sent events.
// Every stream runs its own controller, fed by the hub and writing events instead of DOM changes.
func (h *Handler) handleThemeEvents(w http.ResponseWriter, r *http.Request) {
	tab := tabID(r)
	if tab == "" {
		http.Error(w, "tab id is required", http.StatusBadRequest)
		return
	}
	visitor := h.visitorID(w, r)

	sink := newStreamSink(r, streamBuffer)
	var nt theme.Notifier
	if h.hub != nil {
		nt = h.hub.Channel(visitor, tab)
	}
	ctrl := theme.New(h.preferenceStore(w, r, visitor, tab), sink, nt, h.themeConfig())
	defer ctrl.Close()

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Printf("[DEBUG] can't reset write deadline for theme stream: %v", err)
	}

	// hydrate before the headers are sent, seeding may set a cookie
	ctrl.Hydrate()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, "retry: 3000\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Printf("[WARN] theme stream is not supported by the response writer: %v", err)
		return
	}
	log.Printf("[DEBUG] theme stream opened for visitor %s, tab %s", visitor, tab)

	keepAlive := time.NewTicker(h.cfg.KeepAlive)
	defer keepAlive.Stop()

	for {
		var err error
		select {
		case <-r.Context().Done():
			log.Printf("[DEBUG] theme stream closed for visitor %s, tab %s", visitor, tab)
			return
		case ev := <-sink.events:
			_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
		case <-keepAlive.C:
			_, err = fmt.Fprint(w, ": ping\n\n")
		}
		if err == nil {
			err = rc.Flush()
		}
		if err != nil {
			log.Printf("[DEBUG] theme stream write failed for tab %s: %v", tab, err)
			return
		}
	}
}
