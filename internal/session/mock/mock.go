// Package mock provides scripted test doubles for the session ports.
//
// Each mock replays a fixed script and records its calls. All types are safe
// for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/ordervox/internal/session"
)

// Compile-time interface assertions.
var (
	_ session.Listener  = (*Listener)(nil)
	_ session.Speaker   = (*Speaker)(nil)
	_ session.Confirmer = (*Confirmer)(nil)
)

// Response is one scripted Listen result.
type Response struct {
	Texts []string
	Err   error
}

// Listener replays Responses in order. Once the script is exhausted it
// returns Default, or blocks until the context is done when Block is set.
type Listener struct {
	mu sync.Mutex

	// Responses is consumed front to back, one per Listen call.
	Responses []Response

	// Default is returned after Responses is exhausted.
	Default Response

	// Block makes calls past the script wait for ctx.Done.
	Block bool

	// Calls counts Listen invocations.
	Calls int
}

// Listen implements [session.Listener].
func (l *Listener) Listen(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	l.Calls++
	if len(l.Responses) > 0 {
		r := l.Responses[0]
		l.Responses = l.Responses[1:]
		l.mu.Unlock()
		return r.Texts, r.Err
	}
	block, def := l.Block, l.Default
	l.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return def.Texts, def.Err
}

// CallCount returns the number of Listen calls.
func (l *Listener) CallCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Calls
}

// Speaker records everything spoken.
type Speaker struct {
	mu sync.Mutex

	// Err is returned from every Speak call.
	Err error

	// Said records the text of each Speak call.
	Said []string
}

// Speak implements [session.Speaker].
func (s *Speaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Said = append(s.Said, text)
	return s.Err
}

// Lines returns a copy of everything spoken so far.
func (s *Speaker) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Said))
	copy(out, s.Said)
	return out
}

// Confirmer replays Answers in order and answers false once they run out.
type Confirmer struct {
	mu sync.Mutex

	// Answers is consumed front to back.
	Answers []bool

	// Err, when non-nil, is returned instead of an answer.
	Err error

	// Orders records the order passed to each call.
	Orders [][]string
}

// Continue implements [session.Confirmer].
func (c *Confirmer) Continue(_ context.Context, order []string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Orders = append(c.Orders, append([]string(nil), order...))
	if c.Err != nil {
		return false, c.Err
	}
	if len(c.Answers) == 0 {
		return false, nil
	}
	a := c.Answers[0]
	c.Answers = c.Answers[1:]
	return a, nil
}
