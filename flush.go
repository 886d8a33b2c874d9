package gelf

// flushCoordinator tracks in-flight writes and the waiters registered by
// concurrent Flush callers. It holds no lock of its own: the Transport owns
// it and every method is called with the Transport's mutex held. Flush
// itself (the orchestration: awaiting the connection attempt, arming the
// timer) lives on the Transport, which is the only place the queue, the
// connection state, and this bookkeeping can be observed consistently.
type flushCoordinator struct {
	// outstanding counts Flush calls currently in progress. Write tracking
	// is only paid for while it is non-zero; outside an active flush,
	// writes stay fire-and-forget.
	outstanding int

	// pending counts writes issued but not yet completed, among those that
	// were tracked.
	pending int

	waiters []chan struct{}
}

// trackWrite records a write about to be issued. It returns true only while
// at least one flush is outstanding; the caller must pair a true return
// with exactly one writeComplete.
func (f *flushCoordinator) trackWrite() bool {
	if f.outstanding == 0 {
		return false
	}
	f.pending++
	return true
}

// writeComplete pairs with a tracked write.
func (f *flushCoordinator) writeComplete() {
	if f.pending > 0 {
		f.pending--
	}
}

// drained reports the drain condition: no tracked writes in flight and an
// empty queue.
func (f *flushCoordinator) drained(queueSize int) bool {
	return f.pending == 0 && queueSize == 0
}

// addWaiter registers one Flush caller's resolver. The returned channel is
// closed by broadcast when the drain condition holds.
func (f *flushCoordinator) addWaiter() chan struct{} {
	ch := make(chan struct{})
	f.waiters = append(f.waiters, ch)
	return ch
}

// removeWaiter unregisters a resolver whose timer fired, so a later drain
// cannot resolve into a channel nobody reads. Removing an already-resolved
// waiter is a no-op.
func (f *flushCoordinator) removeWaiter(ch chan struct{}) {
	for i, w := range f.waiters {
		if w == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

// broadcast resolves every registered waiter together. Waiters share the
// drain condition, so once it holds they all fulfill; each caller's timer
// remains its own.
func (f *flushCoordinator) broadcast() {
	for _, w := range f.waiters {
		close(w)
	}
	f.waiters = f.waiters[:0]
}
