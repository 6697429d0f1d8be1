package oauthstate

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps pending sessions in process memory, keyed by state.
// Suited to single-instance deployments or fronting proxies that strip
// cookies. Expired sessions are purged by the underlying cache.
//
// Because state is the lookup key, a forged state is indistinguishable
// from an expired session and surfaces as ErrNotFound; only the cookie
// backing, which carries the expected state alongside the session, can
// report ErrStateMismatch. Either error aborts the flow before any code
// exchange.
type MemoryStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewMemoryStore creates an in-process store with the package TTL.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: gocache.New(TTL, 2*TTL)}
}

func (s *MemoryStore) Save(_ *gin.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	s.cache.Set(sess.State, sess, TTL)
	return nil
}

func (s *MemoryStore) Consume(_ *gin.Context, state string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(state)
	if !ok {
		return nil, ErrNotFound
	}
	s.cache.Delete(state)
	return v.(*Session), nil
}
