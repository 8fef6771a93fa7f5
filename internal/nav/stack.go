// Package nav is the view stack an application moves through. The stack
// always holds at least its root view.
package nav

import "sync"

// Op names a stack mutation.
type Op string

const (
	OpPush    Op = "push"
	OpPop     Op = "pop"
	OpReplace Op = "replace"
)

// Change describes a completed mutation.
type Change[V any] struct {
	Op      Op
	Current V   // top of the stack after the mutation
	Depth   int // stack length after the mutation
}

type subscriber[V any] struct {
	id int
	fn func(Change[V])
}

// Stack is a last-in first-out sequence of views. It is safe for concurrent
// use. Listeners run synchronously after each mutation, outside the lock,
// in subscription order.
type Stack[V any] struct {
	mu      sync.Mutex
	entries []V // entries[len-1] is current
	subs    []subscriber[V]
	nextSub int
}

// New returns a stack holding only root.
func New[V any](root V) *Stack[V] {
	return &Stack[V]{entries: []V{root}}
}

// Push makes v the current view.
func (s *Stack[V]) Push(v V) {
	s.mu.Lock()
	s.entries = append(s.entries, v)
	c, subs := s.changeLocked(OpPush)
	s.mu.Unlock()
	notify(subs, c)
}

// Pop removes the current view and returns it. With only the root left it
// does nothing and returns ok == false; the host decides whether to exit.
func (s *Stack[V]) Pop() (popped V, ok bool) {
	s.mu.Lock()
	if len(s.entries) <= 1 {
		s.mu.Unlock()
		return popped, false
	}
	last := len(s.entries) - 1
	popped = s.entries[last]
	var zero V
	s.entries[last] = zero
	s.entries = s.entries[:last]
	c, subs := s.changeLocked(OpPop)
	s.mu.Unlock()
	notify(subs, c)
	return popped, true
}

// Replace clears the stack and makes v its only entry.
func (s *Stack[V]) Replace(v V) {
	s.mu.Lock()
	s.entries = []V{v}
	c, subs := s.changeLocked(OpReplace)
	s.mu.Unlock()
	notify(subs, c)
}

// Current returns the top view.
func (s *Stack[V]) Current() V {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[len(s.entries)-1]
}

// CanGoBack reports whether Pop would change the stack.
func (s *Stack[V]) CanGoBack() bool {
	return s.Len() > 1
}

// Len returns the number of views on the stack.
func (s *Stack[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns a copy of the stack, current view first.
func (s *Stack[V]) Entries() []V {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]V, len(s.entries))
	for i, v := range s.entries {
		out[len(s.entries)-1-i] = v
	}
	return out
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Stack[V]) Subscribe(fn func(Change[V])) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber[V]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// changeLocked snapshots the change and current listeners. The caller must
// hold s.mu.
func (s *Stack[V]) changeLocked(op Op) (Change[V], []subscriber[V]) {
	c := Change[V]{Op: op, Current: s.entries[len(s.entries)-1], Depth: len(s.entries)}
	if len(s.subs) == 0 {
		return c, nil
	}
	subs := make([]subscriber[V], len(s.subs))
	copy(subs, s.subs)
	return c, subs
}

func notify[V any](subs []subscriber[V], c Change[V]) {
	for _, sub := range subs {
		sub.fn(c)
	}
}
