package containers

// DeletionQueue is an ordered undo-log. Records are appended with Push and
// executed newest-first by Flush, so teardown mirrors creation order.
type DeletionQueue[T any] struct {
	records []T
}

func NewDeletionQueue[T any]() *DeletionQueue[T] {
	return &DeletionQueue[T]{}
}

// Push appends a record to the tail of the queue.
func (dq *DeletionQueue[T]) Push(record T) {
	dq.records = append(dq.records, record)
}

// Flush hands every record to fn from tail to head and then empties the queue.
// It returns the number of records executed; a drained queue executes nothing.
func (dq *DeletionQueue[T]) Flush(fn func(T)) int {
	n := len(dq.records)
	for i := n - 1; i >= 0; i-- {
		fn(dq.records[i])
	}
	clear(dq.records)
	dq.records = dq.records[:0]
	return n
}

func (dq *DeletionQueue[T]) Len() int {
	return len(dq.records)
}

// Records returns a copy of the pending records in insertion order.
func (dq *DeletionQueue[T]) Records() []T {
	out := make([]T, len(dq.records))
	copy(out, dq.records)
	return out
}
