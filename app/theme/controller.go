// Package theme keeps the dark/light preference of a single page consistent between the persisted
// store, the rendered document and other open tabs of the same visitor.
//
// A Controller is created per page (or per live stream) by the composition root and goes through
// EarlyInitialize, Hydrate and then event-driven updates from Toggle and OnExternalChange.
package theme

import (
	"errors"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/viktokle/folio/app/enum"
)

const (
	// StorageKey is the default persisted store key for the preference.
	StorageKey = "color-scheme-preference"
	// TransitionClass is the document marker class suppressing animated transitions.
	TransitionClass = "theme-transitioning"

	defaultTransitionWindow = 500 * time.Millisecond
	defaultSuppressDelay    = time.Millisecond
)

// ErrNotHydrated is returned by Toggle when called before Hydrate.
var ErrNotHydrated = errors.New("theme controller is not hydrated")

// Store is a persisted key-value store scoped to a single visitor.
// Get returns an empty string with nil error when the key is absent.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Sink is the document the theme is applied to, plus the environment's color-scheme query.
type Sink interface {
	PrefersDark() bool
	SuppressTransitions()
	SetTheme(t enum.Theme)
	RestoreTransitions()
}

// Notifier delivers persisted-store changes of the visitor. own is true for a change written by
// the subscribing page itself, which already shows it.
type Notifier interface {
	Subscribe(fn func(key, value string, own bool)) (unsubscribe func())
}

// Config holds controller configuration, zero values use defaults.
type Config struct {
	Key              string        // persisted store key, StorageKey if empty
	TransitionWindow time.Duration // how long Transitioning stays true after Toggle
	SuppressDelay    time.Duration // delay before transition suppression is lifted
}

// State is a snapshot of the controller state.
type State struct {
	Theme         enum.Theme
	Hydrated      bool
	Transitioning bool
}

type stopper interface {
	Stop() bool
}

// Controller owns the canonical theme value of one page.
type Controller struct {
	store    Store
	sink     Sink
	notifier Notifier

	key              string
	transitionWindow time.Duration
	suppressDelay    time.Duration
	afterFunc        func(d time.Duration, f func()) stopper

	mu            sync.Mutex
	current       enum.Theme
	applied       enum.Theme
	hydrated      bool
	transitioning bool
	memoryOnly    bool // persisted store failed, keep the value for this session only
	subscribed    bool
	unsubscribe   func()
	closed        bool

	restoreTimer    stopper
	restoreGen      uint64
	transitionTimer stopper
	transitionGen   uint64
}

// New makes a controller. nt is optional, pass nil to disable cross-tab updates.
func New(st Store, sink Sink, nt Notifier, cfg Config) *Controller {
	c := &Controller{
		store:            st,
		sink:             sink,
		notifier:         nt,
		key:              cfg.Key,
		transitionWindow: cfg.TransitionWindow,
		suppressDelay:    cfg.SuppressDelay,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
	if c.key == "" {
		c.key = StorageKey
	}
	if c.transitionWindow <= 0 {
		c.transitionWindow = defaultTransitionWindow
	}
	if c.suppressDelay <= 0 {
		c.suppressDelay = defaultSuppressDelay
	}
	return c
}

// EarlyInitialize resolves the theme from the persisted store, falling back to the environment
// preference (which is persisted right away), and applies it to the sink synchronously.
// Calling it again with the same persisted state changes nothing.
func (c *Controller) EarlyInitialize() enum.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.resolve()
	if c.applied != c.current {
		c.apply(c.current)
	}
	return c.current
}

// Hydrate re-resolves the theme with the same rule as EarlyInitialize, marks the controller
// hydrated and subscribes to cross-tab changes once.
func (c *Controller) Hydrate() enum.Theme {
	c.mu.Lock()
	c.current = c.resolve()
	if c.applied != c.current {
		c.apply(c.current)
	}
	c.hydrated = true
	resolved := c.current
	subscribe := c.notifier != nil && !c.subscribed && !c.closed
	c.subscribed = c.subscribed || subscribe
	c.mu.Unlock()

	if !subscribe {
		return resolved
	}

	// subscribe outside the lock, the notifier may deliver right away
	unsubscribe := c.notifier.Subscribe(func(key, value string, own bool) {
		if own {
			c.OnOwnChange(key, value)
			return
		}
		c.OnExternalChange(key, value)
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return resolved
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	return resolved
}

// Toggle flips the theme, persists and applies it, and starts the transition window.
// The persisted write happens together with the application, never after a deferred step.
func (c *Controller) Toggle() (enum.Theme, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hydrated {
		return c.current, ErrNotHydrated
	}

	next := c.current.Toggle()
	c.current = next
	c.write(next)
	c.apply(next)

	c.transitionGen++
	gen := c.transitionGen
	if c.transitionTimer != nil {
		c.transitionTimer.Stop()
	}
	c.transitionTimer = c.schedule(c.transitionWindow, func() { c.endTransition(gen) })
	c.transitioning = c.transitionTimer != nil
	return next, nil
}

// OnExternalChange handles a persisted-store change made in another tab. It reacts only to the
// controller key with a recognized value different from the current one, and never writes back
// to the store. Returns true if the theme was changed.
func (c *Controller) OnExternalChange(key, value string) bool {
	if key != c.key {
		return false
	}
	t, err := enum.ParseTheme(value)
	if err != nil {
		log.Printf("[DEBUG] ignore unrecognized theme %q from another tab", value)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || t == c.current {
		return false
	}
	c.current = t
	c.apply(t)
	return true
}

// OnOwnChange records a persisted change the page made itself, e.g. a toggle handled by another
// controller of the same page. The page already shows the value, so the sink is not touched.
// Returns true if the recorded theme was changed.
func (c *Controller) OnOwnChange(key, value string) bool {
	if key != c.key {
		return false
	}
	t, err := enum.ParseTheme(value)
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || t == c.current {
		return false
	}
	c.current = t
	c.applied = t
	return true
}

// Apply applies the theme to the sink without touching the persisted store.
func (c *Controller) Apply(t enum.Theme) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(t)
}

// State returns a snapshot of the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Theme: c.current, Hydrated: c.hydrated, Transitioning: c.transitioning}
}

// Current returns the current theme, unset before EarlyInitialize or Hydrate.
func (c *Controller) Current() enum.Theme { return c.State().Theme }

// Hydrated reports whether Hydrate has completed.
func (c *Controller) Hydrated() bool { return c.State().Hydrated }

// Transitioning reports whether the toggle transition window is active.
func (c *Controller) Transitioning() bool { return c.State().Transitioning }

// Close unsubscribes from cross-tab changes and discards pending timed effects.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.restoreTimer != nil {
		c.restoreTimer.Stop()
	}
	if c.transitionTimer != nil {
		c.transitionTimer.Stop()
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	// unsubscribe may wait for an in-flight notification, which needs the lock
	if unsubscribe != nil {
		unsubscribe()
	}
}

// resolve returns the persisted theme, or seeds the store from the environment preference.
// must be called under lock.
func (c *Controller) resolve() enum.Theme {
	if stored, ok := c.read(); ok {
		return stored
	}
	resolved := enum.ThemeLight
	if c.sink.PrefersDark() {
		resolved = enum.ThemeDark
	}
	c.write(resolved)
	return resolved
}

func (c *Controller) read() (enum.Theme, bool) {
	if c.memoryOnly {
		return c.current, c.current.IsValid()
	}
	val, err := c.store.Get(c.key)
	if err != nil {
		c.degrade("read", err)
		return c.current, c.current.IsValid()
	}
	if val == "" {
		return enum.Theme{}, false
	}
	t, err := enum.ParseTheme(val)
	if err != nil {
		log.Printf("[DEBUG] stored theme %q is not recognized, re-seeding", val)
		return enum.Theme{}, false
	}
	return t, true
}

func (c *Controller) write(t enum.Theme) {
	if c.memoryOnly {
		return
	}
	if err := c.store.Set(c.key, t.String()); err != nil {
		c.degrade("write", err)
	}
}

func (c *Controller) degrade(op string, err error) {
	c.memoryOnly = true
	log.Printf("[WARN] theme preference %s failed, keeping it in memory for this session: %v", op, err)
}

// apply marks transitions suppressed, sets the theme and lifts the suppression on the next tick.
// must be called under lock.
func (c *Controller) apply(t enum.Theme) {
	c.sink.SuppressTransitions()
	c.sink.SetTheme(t)
	c.applied = t

	c.restoreGen++
	gen := c.restoreGen
	if c.restoreTimer != nil {
		c.restoreTimer.Stop()
	}
	c.restoreTimer = c.schedule(c.suppressDelay, func() { c.restoreTransitions(gen) })
}

func (c *Controller) restoreTransitions(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.restoreGen {
		return
	}
	c.sink.RestoreTransitions()
}

func (c *Controller) endTransition(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.transitionGen {
		return
	}
	c.transitioning = false
}

// schedule runs f after d unless the controller is closed. Returns nil if closed.
func (c *Controller) schedule(d time.Duration, f func()) stopper {
	if c.closed {
		return nil
	}
	return c.afterFunc(d, f)
}
