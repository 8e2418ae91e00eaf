package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// NewMemory returns an in-process cache used when Redis is disabled.
func NewMemory(defaultTTL time.Duration) *gocache.Cache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return gocache.New(defaultTTL, defaultTTL+defaultTTL/2)
}
