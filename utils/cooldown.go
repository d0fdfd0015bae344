package utils

import (
	"context"
	"sync"
	"time"
)

var (
	cooldowns   = map[string]time.Time{}
	cooldownsMu sync.Mutex
)

// EmailCooldownTrySet sets a per-address cooldown for password-reset mail.
// Returns true when the caller may send, false while cooling down. Prefers
// Redis; falls back to process memory.
func EmailCooldownTrySet(email string, cooldown time.Duration) bool {
	key := "cooldown:reset:" + email
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ok, err := rc.SetNX(ctx, key, "1", cooldown).Result(); err == nil {
			return ok
		}
	}
	cooldownsMu.Lock()
	defer cooldownsMu.Unlock()
	if until, ok := cooldowns[key]; ok && time.Now().Before(until) {
		return false
	}
	cooldowns[key] = time.Now().Add(cooldown)
	return true
}
