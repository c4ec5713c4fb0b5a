package queue

import "errors"

// Queue is a FIFO queue that holds each element at most once. Pushing an
// element that is already pending is a no-op.
type Queue[E comparable] struct {
	elements []E
	pending  map[E]struct{}
}

// Push enqueues e and reports whether it was not already pending.
func (q *Queue[E]) Push(e E) bool {
	if _, ok := q.pending[e]; ok {
		return false
	}
	if q.pending == nil {
		q.pending = make(map[E]struct{})
	}
	q.pending[e] = struct{}{}
	q.elements = append(q.elements, e)
	return true
}

func (q *Queue[E]) Empty() bool {
	return len(q.elements) == 0
}

func (q *Queue[E]) Len() int {
	return len(q.elements)
}

var ErrEmpty = errors.New("Queue is empty")

func (q *Queue[E]) Pop() E {
	if q.Empty() {
		panic(ErrEmpty)
	}

	e := q.elements[0]
	q.elements = q.elements[1:]
	delete(q.pending, e)
	return e
}
