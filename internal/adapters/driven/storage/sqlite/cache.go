package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
)

// answerCache implements driven.AnswerCache on the shared store.
type answerCache struct {
	store *Store
}

var _ driven.AnswerCache = (*answerCache)(nil)

// Get returns the cached answer or domain.ErrNotFound on miss or expiry.
// Expired rows are evicted on read.
func (c *answerCache) Get(ctx context.Context, question, providerID string) (*domain.Answer, error) {
	key := domain.CacheKey(question, providerID)

	var payload string
	var expiresAt time.Time
	row := c.store.db.QueryRowContext(ctx,
		"SELECT payload, expires_at FROM answers WHERE cache_key = ?", key)
	if err := row.Scan(&payload, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: reading cache entry: %v", domain.ErrCacheUnavailable, err)
	}

	if time.Now().After(expiresAt) {
		// Lazy expiry: best effort, a failed delete only delays eviction.
		_, _ = c.store.db.ExecContext(ctx, "DELETE FROM answers WHERE cache_key = ?", key)
		return nil, domain.ErrNotFound
	}

	var answer domain.Answer
	if err := json.Unmarshal([]byte(payload), &answer); err != nil {
		return nil, fmt.Errorf("%w: decoding cache entry: %v", domain.ErrCacheUnavailable, err)
	}
	return &answer, nil
}

// Put stores an answer, replacing any previous entry for the same key.
func (c *answerCache) Put(
	ctx context.Context, question, providerID string, answer *domain.Answer, ttl time.Duration,
) error {
	key := domain.CacheKey(question, providerID)

	payload, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("%w: encoding cache entry: %v", domain.ErrCacheUnavailable, err)
	}

	now := time.Now().UTC()
	_, err = c.store.db.ExecContext(ctx, `
		INSERT INTO answers (cache_key, provider_id, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			provider_id = excluded.provider_id,
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key, providerID, string(payload), now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("%w: writing cache entry: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Close is a no-op; the shared store owns the connection.
func (c *answerCache) Close() error {
	return nil
}
