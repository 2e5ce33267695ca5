package reconcile

import "sync"

// seenOrders keeps duplicate
// order updates must not double-count fills. When the broker supplies an
// exec sequence number, a given (order_id, exec_seq) pair is accepted at
// most once. When it does not, only forward progress in unfilled_qty is
// accepted (a retransmit of the same or a stale unfilled_qty is dropped).
type seenOrders struct {
	mu           sync.Mutex
	bySeq        map[string]map[int64]bool
	lastUnfilled map[string]int64
	sawUnfilled  map[string]bool
}

func newSeenOrders() seenOrders {
	return seenOrders{
		bySeq:        make(map[string]map[int64]bool),
		lastUnfilled: make(map[string]int64),
		sawUnfilled:  make(map[string]bool),
	}
}

// accept reports whether u should be applied (true) or dropped as a
// duplicate/stale retransmit (false).
func (s *seenOrders) accept(u OrderUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.HasExecSeq {
		seqs, ok := s.bySeq[u.OrderID]
		if !ok {
			seqs = make(map[int64]bool)
			s.bySeq[u.OrderID] = seqs
		}
		if seqs[u.ExecSeq] {
			return false
		}
		seqs[u.ExecSeq] = true
		return true
	}

	if s.sawUnfilled[u.OrderID] && u.UnfilledQty >= s.lastUnfilled[u.OrderID] && u.Status != StatusCancelled && u.Status != StatusRejected {
		return false
	}
	s.lastUnfilled[u.OrderID] = u.UnfilledQty
	s.sawUnfilled[u.OrderID] = true
	return true
}
