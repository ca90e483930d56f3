package memory

import (
	"context"
	"strings"
	"time"
)

// NewStore creates a postgres-backed store when configured, otherwise
// in-memory.
func NewStore(ctx context.Context, databaseURL string, expiry time.Duration) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(expiry), nil
	}
	return NewPostgresStore(ctx, strings.TrimSpace(databaseURL), expiry)
}
