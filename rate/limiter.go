package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per client key. Buckets idle for longer
// than ttl are dropped by a background sweep.
type Limiter struct {
	burst int
	rps   float64
	ttl   time.Duration

	mu      sync.Mutex
	clients map[string]*clientLimiter

	quit chan struct{}
	once sync.Once
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewLimiter(burst int, ttl time.Duration, rps float64) *Limiter {
	l := &Limiter{
		burst:   burst,
		rps:     rps,
		ttl:     ttl,
		clients: make(map[string]*clientLimiter),
		quit:    make(chan struct{}),
	}
	go l.refresh(sweepInterval(ttl))
	return l
}

// Check reports whether the client may proceed now.
func (l *Limiter) Check(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[id]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.clients[id] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter.Allow()
}

// Len is the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.quit) })
}

func (l *Limiter) refresh(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.quit:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, v := range l.clients {
		if time.Since(v.lastAccess) > l.ttl {
			delete(l.clients, id)
		}
	}
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

func Every(interval time.Duration) float64 {
	return float64(rate.Every(interval))
}
