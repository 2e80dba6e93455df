package rate

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per api key.
type Limiter struct {
	keys map[string]*rate.Limiter
	mu   *sync.RWMutex
	r    rate.Limit
	b    int
}

// NewLimiter allows r requests per second with burst b for every key.
func NewLimiter(r float64, b int) *Limiter {
	if b < 1 {
		b = 1
	}
	return &Limiter{
		keys: make(map[string]*rate.Limiter),
		mu:   &sync.RWMutex{},
		r:    rate.Limit(r),
		b:    b,
	}
}

// Wait blocks until a request for key is allowed or ctx is done.
func (i *Limiter) Wait(ctx context.Context, key string) error {
	return i.GetLimiter(key).Wait(ctx)
}

// Add creates a new rate limiter and adds it to the keys map,
// using the key
func (i *Limiter) Add(key string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limiter, exists := i.keys[key]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(i.r, i.b)
	i.keys[key] = limiter
	return limiter
}

// GetLimiter returns the rate limiter for the provided key if it exists.
// Otherwise, calls Add to add key to the map
func (i *Limiter) GetLimiter(key string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.keys[key]
	i.mu.RUnlock()

	if !exists {
		return i.Add(key)
	}
	return limiter
}

// Len returns the number of keys seen so far.
func (i *Limiter) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.keys)
}
