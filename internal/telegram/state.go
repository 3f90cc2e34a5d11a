package telegram

import (
	"sync"
)

// ReasonState tracks chats that were asked for a rejection reason.
type ReasonState struct {
	mu      sync.Mutex
	pending map[int64]int64
}

func NewReasonState() *ReasonState {
	return &ReasonState{
		pending: make(map[int64]int64),
	}
}

// Await remembers that the next text in chatID is the reason for paymentID.
// A newer request replaces an older one.
func (s *ReasonState) Await(chatID, paymentID int64) {
	s.mu.Lock()
	s.pending[chatID] = paymentID
	s.mu.Unlock()
}

// Take returns and forgets the payment awaiting a reason in chatID.
func (s *ReasonState) Take(chatID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pending[chatID]
	if ok {
		delete(s.pending, chatID)
	}
	return id, ok
}

func (s *ReasonState) Clear(chatID int64) {
	s.mu.Lock()
	delete(s.pending, chatID)
	s.mu.Unlock()
}
