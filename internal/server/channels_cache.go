package server

import (
	"sync"
	"time"

	paymentdomain "github.com/kelaspay/kelaspay/internal/payment/domain"
)

// paymentChannelsCache keeps the gateway channel catalog in-process for a
// short TTL so the public listing does not hit the gateway on every request.
type paymentChannelsCache struct {
	ttl time.Duration

	mu        sync.RWMutex
	expiresAt time.Time
	channels  []paymentdomain.Channel
}

func newPaymentChannelsCache(ttl time.Duration) *paymentChannelsCache {
	return &paymentChannelsCache{ttl: ttl}
}

func (c *paymentChannelsCache) Get() ([]paymentdomain.Channel, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channels == nil || time.Now().UTC().After(c.expiresAt) {
		return nil, false
	}
	channels := append([]paymentdomain.Channel(nil), c.channels...)
	return channels, true
}

func (c *paymentChannelsCache) Set(channels []paymentdomain.Channel) {
	if c == nil {
		return
	}
	cloned := append([]paymentdomain.Channel(nil), channels...)
	c.mu.Lock()
	c.channels = cloned
	c.expiresAt = time.Now().UTC().Add(c.ttl)
	c.mu.Unlock()
}
