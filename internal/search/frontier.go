package search

// fifo is an unbounded FIFO queue.
//
// Popped slots are zeroed so the backing array does not retain states the
// search has finished with, and the slice resets when it drains.
type fifo[T any] struct {
	items []T
}

func newFIFO[T any]() *fifo[T] {
	return &fifo[T]{items: make([]T, 0, 64)}
}

func (q *fifo[T]) Push(v T) {
	q.items = append(q.items, v)
}

func (q *fifo[T]) Pop() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return v, true
}

func (q *fifo[T]) Len() int {
	return len(q.items)
}

// lifo is an unbounded stack.
type lifo[T any] struct {
	items []T
}

func (s *lifo[T]) Push(v T) {
	s.items = append(s.items, v)
}

func (s *lifo[T]) Pop() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	v := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = zero
	s.items = s.items[:len(s.items)-1]
	return v, true
}
