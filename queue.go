package gelf

import (
	"golang.org/x/time/rate"
)

// messageQueue is the bounded FIFO holding messages pending delivery. It is
// not safe for concurrent use on its own: the Transport owns it and guards
// every call with its own mutex, and nothing else may alias it.
type messageQueue struct {
	items   []Message
	head    int
	max     int
	policy  OverflowPolicy
	dropped uint64

	// gate keeps sustained overflow from flooding the error channel: the
	// first drop notifies immediately, then every Nth
	gate   rate.Sometimes
	onDrop func(dropped uint64)
}

func newMessageQueue(max int, policy OverflowPolicy, notifyEvery int, onDrop func(uint64)) *messageQueue {
	return &messageQueue{
		max:    max,
		policy: policy,
		gate:   rate.Sometimes{First: 1, Every: notifyEvery},
		onDrop: onDrop,
	}
}

// enqueue appends m, applying the overflow policy at capacity. It reports
// whether m was accepted: under DropNewest a full queue rejects m, under
// DropOldest the head is evicted first and m always gets in. Every drop
// increments the dropped count exactly once, before the incoming message is
// placed.
func (q *messageQueue) enqueue(m Message) bool {
	if q.size() >= q.max {
		if q.policy == DropNewest {
			q.drop()
			return false
		}
		q.evictHead()
	}
	q.items = append(q.items, m)
	return true
}

// dequeue pops the head. Ownership of the returned message transfers to the
// caller.
func (q *messageQueue) dequeue() (Message, bool) {
	if q.size() == 0 {
		return nil, false
	}
	m := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return m, true
}

// requeue puts a message back at the head after a failed in-flight write, so
// a disconnect does not lose it. If the queue is at capacity the newest
// entry is evicted and counted dropped, keeping the size bound intact.
func (q *messageQueue) requeue(m Message) {
	if q.size() >= q.max {
		q.items = q.items[:len(q.items)-1]
		q.drop()
	}
	if q.head == 0 {
		q.items = append([]Message{m}, q.items...)
		return
	}
	q.head--
	q.items[q.head] = m
}

// drainAll empties the queue and returns the remaining messages in FIFO
// order.
func (q *messageQueue) drainAll() []Message {
	out := make([]Message, q.size())
	copy(out, q.items[q.head:])
	// release the vacated slots so the backing array does not pin the
	// drained messages
	for i := range q.items {
		q.items[i] = nil
	}
	q.items = q.items[:0]
	q.head = 0
	return out
}

func (q *messageQueue) size() int    { return len(q.items) - q.head }
func (q *messageQueue) maxSize() int { return q.max }

// droppedCount is monotonically non-decreasing, incremented exactly once per
// message removed due to overflow.
func (q *messageQueue) droppedCount() uint64 { return q.dropped }

func (q *messageQueue) evictHead() {
	q.items[q.head] = nil
	q.head++
	q.drop()

	// compact so sustained overflow cannot grow the backing array without
	// bound while disconnected
	if q.head >= q.max {
		n := copy(q.items, q.items[q.head:])
		for i := n; i < len(q.items); i++ {
			q.items[i] = nil
		}
		q.items = q.items[:n]
		q.head = 0
	}
}

func (q *messageQueue) drop() {
	q.dropped++
	if q.onDrop == nil {
		return
	}
	q.gate.Do(func() {
		q.onDrop(q.dropped)
	})
}
