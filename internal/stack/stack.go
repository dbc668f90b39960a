// Package stack provides an ordered stack of unique elements.
package stack

import (
	"container/list"
	"log/slog"
)

// Unique is a stack whose elements are distinct. Besides push and pop it
// supports moving, erasing and locating any member in O(1) using a linked
// order plus an element index.
//
// Unique is not safe for concurrent use.
type Unique[T comparable] struct {
	order  *list.List // front = bottom, back = top
	index  map[T]*list.Element
	logger *slog.Logger
}

// NewUnique creates an empty stack.
func NewUnique[T comparable](logger *slog.Logger) *Unique[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Unique[T]{
		order:  list.New(),
		index:  make(map[T]*list.Element),
		logger: logger,
	}
}

// Push places v on top. Pushing a member moves it to the top.
func (s *Unique[T]) Push(v T) {
	if e, ok := s.index[v]; ok {
		s.order.MoveToBack(e)
		return
	}
	s.index[v] = s.order.PushBack(v)
}

// Pop removes and returns the top element.
func (s *Unique[T]) Pop() (T, bool) {
	e := s.order.Back()
	if e == nil {
		var zero T
		s.logger.Debug("pop on empty stack")
		return zero, false
	}
	v := s.order.Remove(e).(T)
	delete(s.index, v)
	return v, true
}

// Top returns the top element without removing it.
func (s *Unique[T]) Top() (T, bool) {
	e := s.order.Back()
	if e == nil {
		var zero T
		return zero, false
	}
	return e.Value.(T), true
}

// Erase removes v wherever it is. It reports whether v was a member.
func (s *Unique[T]) Erase(v T) bool {
	e, ok := s.index[v]
	if !ok {
		s.logger.Debug("erase of element not in stack")
		return false
	}
	s.order.Remove(e)
	delete(s.index, v)
	return true
}

// MoveToTop moves a member to the top. It reports whether v was a member.
func (s *Unique[T]) MoveToTop(v T) bool {
	e, ok := s.index[v]
	if !ok {
		s.logger.Debug("move to top of element not in stack")
		return false
	}
	s.order.MoveToBack(e)
	return true
}

// Contains reports whether v is a member.
func (s *Unique[T]) Contains(v T) bool {
	_, ok := s.index[v]
	return ok
}

// Above returns the element directly above v. It returns false when v is
// the top, is not a member, or the stack is empty.
func (s *Unique[T]) Above(v T) (T, bool) {
	var zero T
	e, ok := s.index[v]
	if !ok {
		s.logger.Debug("above of element not in stack")
		return zero, false
	}
	next := e.Next()
	if next == nil {
		return zero, false
	}
	return next.Value.(T), true
}

// Clear removes every element.
func (s *Unique[T]) Clear() {
	s.order.Init()
	clear(s.index)
}

// Size returns the number of elements.
func (s *Unique[T]) Size() int {
	return s.order.Len()
}

// Items returns the elements from bottom to top.
func (s *Unique[T]) Items() []T {
	items := make([]T, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		items = append(items, e.Value.(T))
	}
	return items
}
