package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/viktokle/folio/app/store"
	"github.com/viktokle/folio/app/theme"
)

const (
	visitorCookie = "folio-visitor"
	tabHeader     = "X-Tab-ID"
	tabParam      = "tab"
)

var tabIDRe = regexp.MustCompile(`^[\w\-]{1,64}$`)

// visitorID returns the anonymous visitor id from the cookie, issuing a new one if missing or invalid.
func (h *Handler) visitorID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(visitorCookie); err == nil {
		if id, parseErr := uuid.Parse(c.Value); parseErr == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     h.cookiePath(),
		MaxAge:   int(h.cfg.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// tabID returns the id of the browser tab making the request, empty if not provided or invalid.
func tabID(r *http.Request) string {
	id := r.Header.Get(tabHeader)
	if id == "" {
		id = r.URL.Query().Get(tabParam)
	}
	if !tabIDRe.MatchString(id) {
		return ""
	}
	return id
}

// preferenceStore returns the persisted store for the visitor, and publishes writes to the
// visitor's other tabs.
func (h *Handler) preferenceStore(w http.ResponseWriter, r *http.Request, visitor, tab string) theme.Store {
	var st theme.Store
	if h.prefs != nil {
		st = &visitorStore{ctx: r.Context(), prefs: h.prefs, visitor: visitor}
	} else {
		st = &cookieStore{w: w, r: r, path: h.cookiePath(), ttl: h.cfg.CookieTTL, secure: h.cfg.SecureCookies}
	}
	if h.hub == nil {
		return st
	}
	return &publishingStore{Store: st, hub: h.hub, visitor: visitor, tab: tab}
}

// cookieStore keeps preferences in cookies named after the key.
// Values set during the request are visible to later reads of the same request.
type cookieStore struct {
	w      http.ResponseWriter
	r      *http.Request
	path   string
	ttl    time.Duration
	secure bool
	set    map[string]string
}

func (s *cookieStore) Get(key string) (string, error) {
	if v, ok := s.set[key]; ok {
		return v, nil
	}
	c, err := s.r.Cookie(key)
	if errors.Is(err, http.ErrNoCookie) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

func (s *cookieStore) Set(key, value string) error {
	if s.set == nil {
		s.set = map[string]string{}
	}
	s.set[key] = value
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     s.path,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// visitorStore keeps preferences in the database, keyed by visitor id.
type visitorStore struct {
	ctx     context.Context
	prefs   Preferences
	visitor string
}

func (s *visitorStore) Get(key string) (string, error) {
	v, err := s.prefs.Get(s.ctx, s.visitor, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (s *visitorStore) Set(key, value string) error {
	return s.prefs.Set(s.ctx, s.visitor, key, value)
}

// publishingStore broadcasts successful writes to the other tabs of the visitor.
type publishingStore struct {
	theme.Store
	hub     Broadcaster
	visitor string
	tab     string
}

func (s *publishingStore) Set(key, value string) error {
	if err := s.Store.Set(key, value); err != nil {
		return err
	}
	if n := s.hub.Publish(s.visitor, s.tab, key, value); n > 0 {
		log.Printf("[DEBUG] %s=%s sent to %d other tabs of visitor %s", key, value, n, s.visitor)
	}
	return nil
}

// pendingStore keeps the writes of one request in memory and persists only the last value of each
// key on flush, so seeding and toggling in the same request result in a single write.
type pendingStore struct {
	theme.Store
	pending map[string]string
	keys    []string
}

func (s *pendingStore) Get(key string) (string, error) {
	if v, ok := s.pending[key]; ok {
		return v, nil
	}
	return s.Store.Get(key)
}

func (s *pendingStore) Set(key, value string) error {
	if s.pending == nil {
		s.pending = map[string]string{}
	}
	if _, ok := s.pending[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.pending[key] = value
	return nil
}

// flush writes the pending values to the wrapped store.
func (s *pendingStore) flush() error {
	defer func() { s.pending, s.keys = nil, nil }()
	for _, k := range s.keys {
		if err := s.Store.Set(k, s.pending[k]); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	return nil
}
