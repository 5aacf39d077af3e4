package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Kind identifies which embedded widget a handle belongs to.
type Kind string

const (
	KindCalendar Kind = "calendar"
	KindAddons   Kind = "addons"
)

// ParseKind validates a widget name from a URL.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCalendar, KindAddons:
		return Kind(s), nil
	}
	return "", fmt.Errorf("widget: unknown widget %q", s)
}

// ErrClosed is returned by Post after the handle has been closed.
var ErrClosed = errors.New("widget: handle closed")

// Handle is the capability to talk to one mounted widget.
type Handle interface {
	// Post sends a message to the widget.
	Post(msg Message) error
	// Listen delivers inbound messages to fn in arrival order until the
	// widget goes away or ctx ends.
	Listen(ctx context.Context, fn func(Message)) error
	Close() error
}

// Slot holds the handle of a widget that may or may not be mounted. Every
// operation on an empty slot is a no-op.
type Slot struct {
	mu sync.RWMutex
	h  Handle
}

// Set mounts h, returning the handle it replaced, if any.
func (s *Slot) Set(h Handle) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.h
	s.h = h
	return prev
}

// Clear unmounts h if it is still the mounted handle.
func (s *Slot) Clear(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h != h {
		return false
	}
	s.h = nil
	return true
}

// Get returns the mounted handle and whether one is present.
func (s *Slot) Get() (Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h, s.h != nil
}

// Present reports whether a widget is mounted.
func (s *Slot) Present() bool {
	_, ok := s.Get()
	return ok
}

// Post sends msg when a widget is mounted. It reports whether the message
// was handed to a widget.
func (s *Slot) Post(msg Message) (bool, error) {
	h, ok := s.Get()
	if !ok {
		return false, nil
	}
	if err := h.Post(msg); err != nil {
		return false, err
	}
	return true, nil
}

// Loopback is an in-process Handle. The page side sees it like any other
// widget; the other side injects messages with Send and reads what the page
// posted from Outbox.
type Loopback struct {
	inbound chan Message
	outbox  chan Message

	mu     sync.Mutex
	posted []Message
	closed chan struct{}
	once   sync.Once
}

// NewLoopback creates a loopback handle with room for buffer messages each way.
func NewLoopback(buffer int) *Loopback {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loopback{
		inbound: make(chan Message, buffer),
		outbox:  make(chan Message, buffer),
		closed:  make(chan struct{}),
	}
}

func (l *Loopback) Post(msg Message) error {
	select {
	case <-l.closed:
		return ErrClosed
	default:
	}
	l.mu.Lock()
	l.posted = append(l.posted, msg)
	l.mu.Unlock()
	select {
	case l.outbox <- msg:
	default:
	}
	return nil
}

func (l *Loopback) Listen(ctx context.Context, fn func(Message)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return nil
		case msg := <-l.inbound:
			fn(msg)
		}
	}
}

func (l *Loopback) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

// Send injects a message as if the widget had posted it.
func (l *Loopback) Send(msg Message) {
	l.inbound <- msg
}

// Outbox streams messages posted to the widget.
func (l *Loopback) Outbox() <-chan Message {
	return l.outbox
}

// Posted returns every message posted so far.
func (l *Loopback) Posted() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.posted...)
}
