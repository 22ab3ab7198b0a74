package ratelimiting

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// Idle buckets are forgotten after this long. A forgotten bucket starts full.
const bucketIdleTTL = 30 * time.Minute

type RateLimiter interface {
	Consume(key string) bool
}

type RefillPerSecond float64
type BurstSize int

// keyedTokenBucket holds one token bucket per key
type keyedTokenBucket struct {
	buckets *ttlcache.Cache[string, *rate.Limiter]
	refill  rate.Limit
	burst   int
}

func (k *keyedTokenBucket) Consume(key string) bool {
	item, _ := k.buckets.GetOrSet(key, rate.NewLimiter(k.refill, k.burst))
	return item.Value().Allow()
}

// NewTokenBucketRateLimiter returns a keyed limiter and a function stopping its cleanup loop
func NewTokenBucketRateLimiter(refillPerSecond RefillPerSecond, burstSize BurstSize) (RateLimiter, func()) {
	buckets := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](bucketIdleTTL),
	)
	go buckets.Start()

	return &keyedTokenBucket{
		buckets: buckets,
		refill:  rate.Limit(refillPerSecond),
		burst:   int(burstSize),
	}, buckets.Stop
}

type RequestRateLimiter interface {
	Consume(r *http.Request) bool
}

type requestRateLimiter struct {
	limiter RateLimiter
	keyFunc func(r *http.Request) string
}

func (l *requestRateLimiter) Consume(r *http.Request) bool {
	return l.limiter.Consume(l.keyFunc(r))
}

func NewRequestBasedRateLimiter(limiter RateLimiter, keyFunc func(r *http.Request) string) RequestRateLimiter {
	return &requestRateLimiter{
		limiter: limiter,
		keyFunc: keyFunc,
	}
}

// IPKeyFunc keys requests by the remote host, ignoring the port
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	return fmt.Sprintf("ip: %s", host)
}
