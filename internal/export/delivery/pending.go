package delivery

import (
	"sync"

	"github.com/google/uuid"
)

// PendingSaves correlates asynchronous bridge outcomes with the export
// goroutine waiting for them. Each save registers its own token, so
// concurrent exports never share a completion slot. A token resolves
// exactly once: whichever of the synchronous reply and the callback
// arrives first wins, the loser is rejected.
type PendingSaves struct {
	mu      sync.Mutex
	waiters map[string]chan Outcome
}

// NewPendingSaves creates an empty correlation registry
func NewPendingSaves() *PendingSaves {
	return &PendingSaves{waiters: make(map[string]chan Outcome)}
}

// Register allocates a correlation token and the channel its outcome
// will arrive on. The channel is buffered; Complete never blocks.
func (p *PendingSaves) Register() (string, <-chan Outcome) {
	token := uuid.New().String()
	ch := make(chan Outcome, 1)

	p.mu.Lock()
	p.waiters[token] = ch
	p.mu.Unlock()

	return token, ch
}

// Complete resolves a pending save. It reports false when the token is
// unknown or was already resolved.
func (p *PendingSaves) Complete(token string, outcome Outcome) bool {
	p.mu.Lock()
	ch, ok := p.waiters[token]
	if ok {
		delete(p.waiters, token)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}

	ch <- outcome
	return true
}

// Cancel discards a pending save without resolving it, releasing the
// token. Used when the bridge call itself fails.
func (p *PendingSaves) Cancel(token string) {
	p.mu.Lock()
	delete(p.waiters, token)
	p.mu.Unlock()
}

// Len returns the number of unresolved saves
func (p *PendingSaves) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
