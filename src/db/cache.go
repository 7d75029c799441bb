package db

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"plaid-mcp-server/src/models"
)

// AccountCache holds the most recently fetched account list per user.
type AccountCache struct {
	cache *ristretto.Cache[string, []models.Account]
	ttl   time.Duration
}

func NewAccountCache(ttl time.Duration) (*AccountCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []models.Account]{
		NumCounters: 10000, // number of keys to track frequency of
		MaxCost:     10000,
		BufferItems: 64, // number of keys per Get buffer
		// one unit of cost per user
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize account cache: %w", err)
	}
	return &AccountCache{cache: cache, ttl: ttl}, nil
}

func accountCacheKey(userID string) string {
	return "accounts:" + userID
}

func (c *AccountCache) Get(userID string) ([]models.Account, bool) {
	return c.cache.Get(accountCacheKey(userID))
}

// Set stores the list and waits for the write to become visible, so a
// following Get observes it.
func (c *AccountCache) Set(userID string, accounts []models.Account) {
	if c.ttl > 0 {
		c.cache.SetWithTTL(accountCacheKey(userID), accounts, 1, c.ttl)
	} else {
		c.cache.Set(accountCacheKey(userID), accounts, 1)
	}
	c.cache.Wait()
}

func (c *AccountCache) Del(userID string) {
	c.cache.Del(accountCacheKey(userID))
}

func (c *AccountCache) Clear() {
	c.cache.Clear()
}

func (c *AccountCache) Close() {
	c.cache.Close()
}
