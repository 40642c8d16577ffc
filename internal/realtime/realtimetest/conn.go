// Package realtimetest provides a recording realtime.Conn for tests.
package realtimetest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/friendsforever/server-go/internal/realtime"
)

var seq atomic.Int64

// Conn records every event sent to it.
type Conn struct {
	id     string
	userID int64
	mu     sync.Mutex
	events []realtime.Event
	alive  atomic.Bool
	notify chan struct{}
}

func NewConn(userID int64) *Conn {
	c := &Conn{
		id:     fmt.Sprintf("test-%d", seq.Add(1)),
		userID: userID,
		notify: make(chan struct{}, 1),
	}
	c.alive.Store(true)
	return c
}

func (c *Conn) ID() string    { return c.id }
func (c *Conn) UserID() int64 { return c.userID }
func (c *Conn) Alive() bool   { return c.alive.Load() }
func (c *Conn) Close()        { c.alive.Store(false) }

func (c *Conn) Send(ev realtime.Event) bool {
	if !c.Alive() {
		return false
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

func (c *Conn) Events() []realtime.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]realtime.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Types lists the received event types in order.
func (c *Conn) Types() []string {
	events := c.Events()
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// Find returns the most recent event of the given type.
func (c *Conn) Find(eventType string) (realtime.Event, bool) {
	events := c.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return events[i], true
		}
	}
	return realtime.Event{}, false
}

func (c *Conn) Count(eventType string) int {
	n := 0
	for _, ev := range c.Events() {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

// WaitFor blocks until an event of the given type arrives or timeout passes.
func (c *Conn) WaitFor(eventType string, timeout time.Duration) (realtime.Event, bool) {
	deadline := time.After(timeout)
	for {
		if ev, ok := c.Find(eventType); ok {
			return ev, true
		}
		select {
		case <-c.notify:
		case <-deadline:
			return realtime.Event{}, false
		}
	}
}

func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
