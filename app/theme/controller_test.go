package theme

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/viktokle/folio/app/enum"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestController_EarlyInitialize(t *testing.T) {
	t.Run("persisted value wins over system preference", func(t *testing.T) {
		for _, stored := range enum.ThemeValues() {
			for _, prefersDark := range []bool{true, false} {
				st := newMemStore(map[string]string{StorageKey: stored.String()})
				sink := &recordingSink{prefersDark: prefersDark}
				c := newTestController(st, sink, nil)

				assert.Equal(t, stored, c.EarlyInitialize())
				assert.Equal(t, 0, sink.preferCalls, "system preference must not be consulted")
				assert.Equal(t, 0, st.setCount())
				assert.Equal(t, stored, sink.theme)
			}
		}
	})

	t.Run("absent value seeded from system preference", func(t *testing.T) {
		tests := []struct {
			name        string
			prefersDark bool
			want        enum.Theme
		}{
			{"prefers dark", true, enum.ThemeDark},
			{"prefers light", false, enum.ThemeLight},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				st := newMemStore(nil)
				sink := &recordingSink{prefersDark: tc.prefersDark}
				c := newTestController(st, sink, nil)

				assert.Equal(t, tc.want, c.EarlyInitialize())
				assert.Equal(t, tc.want.String(), st.get(StorageKey))
				assert.Equal(t, 1, st.setCount())
				assert.Equal(t, tc.want, sink.theme)
			})
		}
	})

	t.Run("applies synchronously with suppression", func(t *testing.T) {
		sink := &recordingSink{}
		c, clk := newTestControllerWithClock(newMemStore(nil), sink, nil)

		c.EarlyInitialize()
		assert.Equal(t, []string{"suppress", "set:light"}, sink.events)
		assert.True(t, sink.suppressed)

		clk.fireAll()
		assert.Equal(t, []string{"suppress", "set:light", "restore"}, sink.events)
		assert.False(t, sink.suppressed)
	})

	t.Run("idempotent for the same persisted state", func(t *testing.T) {
		st := newMemStore(nil)
		sink := &recordingSink{prefersDark: true}
		c := newTestController(st, sink, nil)

		first := c.EarlyInitialize()
		second := c.EarlyInitialize()
		assert.Equal(t, first, second)
		assert.Equal(t, 1, st.setCount())
		assert.Equal(t, 1, sink.setCount())
	})

	t.Run("malformed value is re-seeded", func(t *testing.T) {
		st := newMemStore(map[string]string{StorageKey: "blue"})
		sink := &recordingSink{prefersDark: true}
		c := newTestController(st, sink, nil)

		assert.Equal(t, enum.ThemeDark, c.EarlyInitialize())
		assert.Equal(t, "dark", st.get(StorageKey))
	})

	t.Run("custom key", func(t *testing.T) {
		st := newMemStore(map[string]string{"my-key": "dark"})
		c := New(st, &recordingSink{}, nil, Config{Key: "my-key"})
		defer c.Close()
		assert.Equal(t, enum.ThemeDark, c.EarlyInitialize())
	})
}

func TestController_Hydrate(t *testing.T) {
	t.Run("confirms early value without reapplying", func(t *testing.T) {
		st := newMemStore(nil)
		sink := &recordingSink{prefersDark: true}
		c := newTestController(st, sink, nil)

		c.EarlyInitialize()
		assert.False(t, c.Hydrated())
		assert.Equal(t, enum.ThemeDark, c.Hydrate())
		assert.True(t, c.Hydrated())
		assert.Equal(t, 1, sink.setCount())
		assert.Equal(t, 1, st.setCount())
	})

	t.Run("applies when early initialize was skipped", func(t *testing.T) {
		st := newMemStore(map[string]string{StorageKey: "dark"})
		sink := &recordingSink{}
		c := newTestController(st, sink, nil)

		assert.Equal(t, enum.ThemeDark, c.Hydrate())
		assert.Equal(t, enum.ThemeDark, sink.theme)
	})

	t.Run("subscribes once", func(t *testing.T) {
		nt := newFakeNotifier()
		c := newTestController(newMemStore(nil), &recordingSink{}, nt)

		c.Hydrate()
		c.Hydrate()
		assert.Equal(t, 1, nt.count())

		c.Close()
		assert.Equal(t, 0, nt.count(), "close unsubscribes")
	})

	t.Run("hydrate after close does not subscribe", func(t *testing.T) {
		nt := newFakeNotifier()
		c := newTestController(newMemStore(nil), &recordingSink{}, nt)
		c.Close()
		c.Hydrate()
		assert.Equal(t, 0, nt.count())
	})
}

func TestController_Toggle(t *testing.T) {
	t.Run("requires hydration", func(t *testing.T) {
		st := newMemStore(nil)
		c := newTestController(st, &recordingSink{}, nil)
		c.EarlyInitialize()

		th, err := c.Toggle()
		require.ErrorIs(t, err, ErrNotHydrated)
		assert.Equal(t, enum.ThemeLight, th)
		assert.Equal(t, "light", st.get(StorageKey))
	})

	t.Run("one write and one application per toggle", func(t *testing.T) {
		st := newMemStore(map[string]string{StorageKey: "light"})
		sink := &recordingSink{}
		c := newTestController(st, sink, nil)
		c.Hydrate()
		writes, sets := st.setCount(), sink.setCount()

		th, err := c.Toggle()
		require.NoError(t, err)
		assert.Equal(t, enum.ThemeDark, th)
		assert.Equal(t, writes+1, st.setCount())
		assert.Equal(t, sets+1, sink.setCount())
		assert.Equal(t, map[string]string{StorageKey: "dark"}, st.snapshot(), "store holds exactly the new value")
		assert.Equal(t, enum.ThemeDark, sink.theme)
	})

	t.Run("involutive", func(t *testing.T) {
		for _, start := range enum.ThemeValues() {
			st := newMemStore(map[string]string{StorageKey: start.String()})
			c := newTestController(st, &recordingSink{}, nil)
			c.Hydrate()

			_, err := c.Toggle()
			require.NoError(t, err)
			th, err := c.Toggle()
			require.NoError(t, err)
			assert.Equal(t, start, th)
			assert.Equal(t, start.String(), st.get(StorageKey))
		}
	})

	t.Run("transition window", func(t *testing.T) {
		c, clk := newTestControllerWithClock(newMemStore(nil), &recordingSink{}, nil)
		c.Hydrate()
		clk.fireAll()

		_, err := c.Toggle()
		require.NoError(t, err)
		assert.True(t, c.Transitioning())
		assert.Contains(t, clk.durations(), defaultTransitionWindow)

		clk.fireAll()
		assert.False(t, c.Transitioning())
	})

	t.Run("second toggle restarts the window", func(t *testing.T) {
		c, clk := newTestControllerWithClock(newMemStore(nil), &recordingSink{}, nil)
		c.Hydrate()

		_, err := c.Toggle()
		require.NoError(t, err)
		first := clk.pending()
		_, err = c.Toggle()
		require.NoError(t, err)

		// stale callbacks from the first toggle do nothing
		for _, tm := range first {
			tm.f()
		}
		assert.True(t, c.Transitioning())

		clk.fireAll()
		assert.False(t, c.Transitioning())
	})

	t.Run("real timers reset transitioning", func(t *testing.T) {
		c := New(newMemStore(nil), &recordingSink{}, nil, Config{TransitionWindow: 10 * time.Millisecond})
		defer c.Close()
		c.Hydrate()
		_, err := c.Toggle()
		require.NoError(t, err)
		assert.True(t, c.Transitioning())
		assert.Eventually(t, func() bool { return !c.Transitioning() }, time.Second, 5*time.Millisecond)
	})
}

func TestController_OnExternalChange(t *testing.T) {
	t.Run("updates without writing the store", func(t *testing.T) {
		st := newMemStore(map[string]string{StorageKey: "light"})
		sink := &recordingSink{}
		c := newTestController(st, sink, nil)
		c.Hydrate()
		writes := st.setCount()

		assert.True(t, c.OnExternalChange(StorageKey, "dark"))
		assert.Equal(t, enum.ThemeDark, c.Current())
		assert.Equal(t, enum.ThemeDark, sink.theme)
		assert.Equal(t, writes, st.setCount())
	})

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unrecognized value", StorageKey, "blue"},
		{"empty value", StorageKey, ""},
		{"other key", "font-size", "dark"},
		{"same value", StorageKey, "light"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := newMemStore(map[string]string{StorageKey: "light"})
			sink := &recordingSink{}
			c := newTestController(st, sink, nil)
			c.Hydrate()
			applied := sink.setCount()

			assert.False(t, c.OnExternalChange(tc.key, tc.value))
			assert.Equal(t, enum.ThemeLight, c.Current())
			assert.Equal(t, applied, sink.setCount())
		})
	}

	t.Run("delivered through notifier", func(t *testing.T) {
		nt := newFakeNotifier()
		sink := &recordingSink{}
		c := newTestController(newMemStore(map[string]string{StorageKey: "light"}), sink, nt)
		c.Hydrate()

		nt.publish(StorageKey, "dark")
		assert.Equal(t, enum.ThemeDark, c.Current())

		c.Close()
		nt.publish(StorageKey, "light")
		assert.Equal(t, enum.ThemeDark, c.Current(), "closed controller ignores notifications")
	})

	t.Run("own change is recorded without applying", func(t *testing.T) {
		nt := newFakeNotifier()
		st := newMemStore(map[string]string{StorageKey: "light"})
		sink := &recordingSink{}
		c := newTestController(st, sink, nt)
		c.Hydrate()
		applied := sink.setCount()

		nt.publishOwn(StorageKey, "dark")
		assert.Equal(t, enum.ThemeDark, c.Current())
		assert.Equal(t, applied, sink.setCount(), "the page shows its own change already")

		// a later change back from another tab is applied
		nt.publish(StorageKey, "light")
		assert.Equal(t, enum.ThemeLight, c.Current())
		assert.Equal(t, applied+1, sink.setCount())
		assert.Equal(t, enum.ThemeLight, sink.theme)
		assert.Equal(t, "light", st.get(StorageKey), "notifications never write")
		assert.Equal(t, 0, st.setCount())
		c.Close()
	})

	t.Run("own change ignores foreign keys and bad values", func(t *testing.T) {
		c := newTestController(newMemStore(map[string]string{StorageKey: "light"}), &recordingSink{}, nil)
		c.Hydrate()
		assert.False(t, c.OnOwnChange("other", "dark"))
		assert.False(t, c.OnOwnChange(StorageKey, "blue"))
		assert.False(t, c.OnOwnChange(StorageKey, "light"))
		assert.Equal(t, enum.ThemeLight, c.Current())
	})

	t.Run("commutes with toggle, last write wins", func(t *testing.T) {
		st := newMemStore(map[string]string{StorageKey: "light"})
		c := newTestController(st, &recordingSink{}, nil)
		c.Hydrate()

		c.OnExternalChange(StorageKey, "dark")
		th, err := c.Toggle()
		require.NoError(t, err)
		assert.Equal(t, enum.ThemeLight, th)
		assert.Equal(t, "light", st.get(StorageKey))
	})
}

func TestController_StoreFailures(t *testing.T) {
	t.Run("read failure falls back to system and memory", func(t *testing.T) {
		st := newMemStore(nil)
		st.getErr = errors.New("storage disabled")
		sink := &recordingSink{prefersDark: true}
		c := newTestController(st, sink, nil)

		assert.Equal(t, enum.ThemeDark, c.EarlyInitialize())
		assert.Equal(t, 0, st.setCount(), "writes become no-ops")

		c.Hydrate()
		th, err := c.Toggle()
		require.NoError(t, err)
		assert.Equal(t, enum.ThemeLight, th)
		assert.Equal(t, enum.ThemeLight, sink.theme)
		assert.Equal(t, 0, st.setCount())

		assert.Equal(t, enum.ThemeLight, c.Hydrate(), "memory value survives re-resolution")
	})

	t.Run("write failure keeps value in memory", func(t *testing.T) {
		st := newMemStore(nil)
		st.setErr = errors.New("quota exceeded")
		c := newTestController(st, &recordingSink{}, nil)

		assert.Equal(t, enum.ThemeLight, c.EarlyInitialize())
		c.Hydrate()
		th, err := c.Toggle()
		require.NoError(t, err)
		assert.Equal(t, enum.ThemeDark, th)
		assert.Equal(t, 1, st.setCount(), "no more writes after the first failure")
	})
}

func TestController_Close(t *testing.T) {
	c, clk := newTestControllerWithClock(newMemStore(nil), &recordingSink{}, nil)
	c.Hydrate()
	_, err := c.Toggle()
	require.NoError(t, err)

	c.Close()
	c.Close()
	for _, tm := range clk.pending() {
		assert.True(t, tm.stopped)
	}
}

func TestController_Scenario(t *testing.T) {
	st := newMemStore(nil)
	sink := &recordingSink{prefersDark: true}
	c := newTestController(st, sink, nil)

	assert.Equal(t, enum.ThemeDark, c.EarlyInitialize())
	assert.Equal(t, "dark", st.get(StorageKey))
	assert.Equal(t, enum.ThemeDark, sink.theme)

	assert.Equal(t, enum.ThemeDark, c.Hydrate())

	th, err := c.Toggle()
	require.NoError(t, err)
	assert.Equal(t, enum.ThemeLight, th)
	assert.Equal(t, "light", st.get(StorageKey))
	assert.Equal(t, enum.ThemeLight, sink.theme)
	assert.Equal(t, State{Theme: enum.ThemeLight, Hydrated: true, Transitioning: true}, c.State())
}

func newTestController(st Store, sink Sink, nt Notifier) *Controller {
	c, _ := newTestControllerWithClock(st, sink, nt)
	return c
}

func newTestControllerWithClock(st Store, sink Sink, nt Notifier) (*Controller, *fakeClock) {
	clk := &fakeClock{}
	c := New(st, sink, nt, Config{})
	c.afterFunc = clk.afterFunc
	return c, clk
}

type memStore struct {
	mu     sync.Mutex
	data   map[string]string
	sets   int
	getErr error
	setErr error
}

func newMemStore(data map[string]string) *memStore {
	if data == nil {
		data = map[string]string{}
	}
	return &memStore{data: data}
}

func (m *memStore) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.data[key], nil
}

func (m *memStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memStore) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

func (m *memStore) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

func (m *memStore) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make(map[string]string, len(m.data))
	for k, v := range m.data {
		res[k] = v
	}
	return res
}

type recordingSink struct {
	prefersDark bool
	preferCalls int
	events      []string
	theme       enum.Theme
	suppressed  bool
}

func (s *recordingSink) PrefersDark() bool {
	s.preferCalls++
	return s.prefersDark
}

func (s *recordingSink) SuppressTransitions() {
	s.suppressed = true
	s.events = append(s.events, "suppress")
}

func (s *recordingSink) SetTheme(t enum.Theme) {
	s.theme = t
	s.events = append(s.events, "set:"+t.String())
}

func (s *recordingSink) RestoreTransitions() {
	s.suppressed = false
	s.events = append(s.events, "restore")
}

func (s *recordingSink) setCount() int {
	res := 0
	for _, e := range s.events {
		if len(e) > 4 && e[:4] == "set:" {
			res++
		}
	}
	return res
}

type fakeNotifier struct {
	mu   sync.Mutex
	seq  int
	subs map[int]func(key, value string, own bool)
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{subs: map[int]func(key, value string, own bool){}}
}

func (n *fakeNotifier) Subscribe(fn func(key, value string, own bool)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	id := n.seq
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *fakeNotifier) publish(key, value string) { n.deliver(key, value, false) }

func (n *fakeNotifier) publishOwn(key, value string) { n.deliver(key, value, true) }

func (n *fakeNotifier) deliver(key, value string, own bool) {
	n.mu.Lock()
	fns := make([]func(key, value string, own bool), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(key, value, own)
	}
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) stopper {
	tm := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, tm)
	return tm
}

// fireAll runs every timer that is neither stopped nor fired yet.
func (c *fakeClock) fireAll() {
	for _, tm := range c.timers {
		if tm.stopped || tm.fired {
			continue
		}
		tm.fired = true
		tm.f()
	}
}

func (c *fakeClock) pending() []*fakeTimer {
	res := make([]*fakeTimer, 0, len(c.timers))
	for _, tm := range c.timers {
		if !tm.fired {
			res = append(res, tm)
		}
	}
	return res
}

func (c *fakeClock) durations() []time.Duration {
	res := make([]time.Duration, 0, len(c.timers))
	for _, tm := range c.timers {
		res = append(res, tm.d)
	}
	return res
}
