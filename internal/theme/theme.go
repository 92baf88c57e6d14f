// Package theme holds the light/dark flag shared by every view. The stored choice is
// persisted under PrefKey; a route may force a mode, in which case toggles are ignored
// until the force is lifted.
package theme

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// PrefKey is the preferences key holding the last chosen mode.
const PrefKey = "map-theme"

// ParseMode accepts "light" or "dark" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, nil
	case Dark:
		return Dark, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

func (m Mode) Other() Mode {
	if m == Dark {
		return Light
	}
	return Dark
}

func (m Mode) String() string { return string(m) }

type Controller struct {
	prefs *Prefs
	log   logrus.FieldLogger

	mu        sync.Mutex
	stored    Mode
	forced    Mode
	applied   Mode
	listeners map[int]func(Mode)
	nextID    int
}

// NewController reads the stored mode from prefs, defaulting to Light.
func NewController(prefs *Prefs, log logrus.FieldLogger) *Controller {
	if prefs == nil {
		prefs = MemoryPrefs()
	}
	c := &Controller{
		prefs:     prefs,
		log:       log.WithField("component", "theme"),
		stored:    Light,
		listeners: make(map[int]func(Mode)),
	}
	if v, ok := prefs.Get(PrefKey); ok {
		if m, err := ParseMode(v); err == nil {
			c.stored = m
		} else {
			c.log.WithError(err).Warn("ignoring stored theme")
		}
	}
	c.applied = c.stored
	return c
}

// Current is the mode in effect: the forced mode if any, else the stored one.
func (c *Controller) Current() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current()
}

func (c *Controller) current() Mode {
	if c.forced != "" {
		return c.forced
	}
	return c.stored
}

// Stored is the persisted choice, regardless of any force.
func (c *Controller) Stored() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored
}

// Forced reports the forced mode, if any.
func (c *Controller) Forced() (Mode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forced, c.forced != ""
}

// Attribute is the mode last applied to the screen.
func (c *Controller) Attribute() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied
}

// Toggle flips and persists the stored mode. It does nothing while a mode is forced.
func (c *Controller) Toggle() Mode {
	c.mu.Lock()
	if c.forced != "" {
		m := c.forced
		c.mu.Unlock()
		return m
	}
	c.stored = c.stored.Other()
	m := c.stored
	if err := c.prefs.Set(PrefKey, string(m)); err != nil {
		c.log.WithError(err).Warn("failed to save theme")
	}
	fns := c.apply()
	c.mu.Unlock()

	notify(fns, m)
	return m
}

// Force pins the mode for the current route. An empty mode lifts the force.
func (c *Controller) Force(m Mode) {
	c.mu.Lock()
	c.forced = m
	cur := c.current()
	var fns []func(Mode)
	if cur != c.applied {
		fns = c.apply()
	}
	c.mu.Unlock()
	notify(fns, cur)
}

// apply records the current mode as applied and returns the listeners to notify.
// Must be called with c.mu held.
func (c *Controller) apply() []func(Mode) {
	c.applied = c.current()
	fns := make([]func(Mode), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(Mode), m Mode) {
	for _, fn := range fns {
		fn(m)
	}
}

// Subscribe calls fn after every change of the applied mode until cancel is called.
func (c *Controller) Subscribe(fn func(Mode)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Listeners returns the number of live subscriptions.
func (c *Controller) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

func (c *Controller) Palette() *Palette { return PaletteFor(c.Current()) }

type ctxKey struct{}

func WithController(ctx context.Context, c *Controller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func FromContext(ctx context.Context) (*Controller, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Controller)
	return c, ok && c != nil
}

// MustFromContext panics when ctx carries no controller; that is a wiring bug.
func MustFromContext(ctx context.Context) *Controller {
	c, ok := FromContext(ctx)
	if !ok {
		panic("theme: no Controller in context")
	}
	return c
}
