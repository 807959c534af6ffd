package slack

import (
	"context"
	"log/slog"
	"sync"
)

// UserResolver resolves user ids to display names with an in-process cache.
// users.info is among the most aggressively rate-limited Slack methods, so
// every id is fetched at most once per process.
type UserResolver struct {
	client *Client
	retry  *RetryPolicy
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

func NewUserResolver(client *Client, retry *RetryPolicy, logger *slog.Logger) *UserResolver {
	return &UserResolver{
		client: client,
		retry:  retry,
		logger: logger,
		cache:  make(map[string]string),
	}
}

// DisplayName returns the user's display name, falling back to the raw id
// when the lookup fails. Failures are cached too; a broken id should not be
// retried for every message that mentions it.
func (r *UserResolver) DisplayName(ctx context.Context, userID string) string {
	r.mu.Lock()
	if name, ok := r.cache[userID]; ok {
		r.mu.Unlock()
		return name
	}
	r.mu.Unlock()

	name := userID
	var user User
	err := r.retry.Do(ctx, "users.info", func() error {
		var err error
		user, err = r.client.UserInfo(ctx, userID)
		return err
	})
	if err != nil {
		r.logger.Warn("user lookup failed", "user_id", userID, "error", err)
	} else if n := user.DisplayName(); n != "" {
		name = n
	}

	r.mu.Lock()
	r.cache[userID] = name
	r.mu.Unlock()
	return name
}
