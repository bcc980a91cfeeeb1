package lookup

import (
	"sync"

	"globalblock/internal/domain"
	"globalblock/internal/identity"
)

// Request carries one inbound requester plus the memoized resolution for
// it. It is scoped to a single web request and must never be shared across
// requests: the cached result is a point-in-time classification that writes
// elsewhere can invalidate.
type Request struct {
	identity.Requester

	mu     sync.Mutex
	result *domain.ResolutionResult
	done   bool
}

func NewRequest(requester identity.Requester) *Request {
	return &Request{Requester: requester}
}

func (r *Request) cachedResult() (*domain.ResolutionResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.done
}

func (r *Request) storeResult(result *domain.ResolutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = result
	r.done = true
}
