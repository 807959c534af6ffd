// Package collector walks Slack conversation history through the paginated
// Web API, returning complete chronological message sequences.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loreworks/chanlore/internal/slack"
)

// API is the subset of the Slack client the collector consumes.
type API interface {
	AuthTest(ctx context.Context) (slack.AuthInfo, error)
	ListChannels(ctx context.Context, cursor string, limit int) (slack.ChannelPage, error)
	ChannelInfo(ctx context.Context, channelID string) (slack.Channel, error)
	History(ctx context.Context, channelID, cursor, oldest string, limit int) (slack.MessagePage, error)
	Replies(ctx context.Context, channelID, threadTS, cursor string, limit int) (slack.MessagePage, error)
}

type Collector struct {
	api      API
	retry    *slack.RetryPolicy
	pageSize int
	logger   *slog.Logger
}

func New(api API, retry *slack.RetryPolicy, pageSize int, logger *slog.Logger) *Collector {
	return &Collector{api: api, retry: retry, pageSize: pageSize, logger: logger}
}

// TeamID returns the workspace id for the configured token.
func (c *Collector) TeamID(ctx context.Context) (string, error) {
	var auth slack.AuthInfo
	err := c.retry.Do(ctx, "auth.test", func() error {
		var err error
		auth, err = c.api.AuthTest(ctx)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("auth.test: %w", err)
	}
	return auth.TeamID, nil
}

// ListChannels returns every public channel the bot is a member of,
// following cursor pagination until the server returns no continuation.
func (c *Collector) ListChannels(ctx context.Context) ([]slack.Channel, error) {
	var channels []slack.Channel
	cursor := ""
	for {
		var page slack.ChannelPage
		err := c.retry.Do(ctx, "conversations.list", func() error {
			var err error
			page, err = c.api.ListChannels(ctx, cursor, c.pageSize)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
		for _, ch := range page.Channels {
			if ch.IsMember {
				channels = append(channels, ch)
			}
		}
		cursor = page.NextCursor
		if cursor == "" {
			return channels, nil
		}
	}
}

// ResolveChannel resolves a channel by id or human name. Ids start with "C";
// anything else is matched against the member channel listing.
func (c *Collector) ResolveChannel(ctx context.Context, ref string) (slack.Channel, error) {
	if strings.HasPrefix(ref, "C") {
		var ch slack.Channel
		err := c.retry.Do(ctx, "conversations.info", func() error {
			var err error
			ch, err = c.api.ChannelInfo(ctx, ref)
			return err
		})
		if err != nil {
			return slack.Channel{}, fmt.Errorf("channel %s: %w", ref, err)
		}
		return ch, nil
	}

	channels, err := c.ListChannels(ctx)
	if err != nil {
		return slack.Channel{}, err
	}
	name := strings.TrimPrefix(ref, "#")
	for _, ch := range channels {
		if ch.Name == name {
			return ch, nil
		}
	}
	return slack.Channel{}, fmt.Errorf("channel %q not found; member channels: %s", ref, channelHint(channels))
}

// FetchHistory returns the channel's messages oldest-first. Slack pages
// newest-first, so the concatenated result is reversed before returning.
// oldest, when set, is an inclusive lower timestamp bound.
func (c *Collector) FetchHistory(ctx context.Context, channelID, oldest string) ([]slack.Message, error) {
	var all []slack.Message
	cursor := ""
	for {
		var page slack.MessagePage
		err := c.retry.Do(ctx, "conversations.history", func() error {
			var err error
			page, err = c.api.History(ctx, channelID, cursor, oldest, c.pageSize)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetch history for %s: %w", channelID, err)
		}
		all = append(all, page.Messages...)
		cursor = page.NextCursor
		if cursor == "" {
			break
		}
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// FetchThreadReplies returns one thread's messages root-first. Slack already
// returns replies in chronological order.
func (c *Collector) FetchThreadReplies(ctx context.Context, channelID, threadTS string) ([]slack.Message, error) {
	var all []slack.Message
	cursor := ""
	for {
		var page slack.MessagePage
		err := c.retry.Do(ctx, "conversations.replies", func() error {
			var err error
			page, err = c.api.Replies(ctx, channelID, threadTS, cursor, c.pageSize)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetch thread %s in %s: %w", threadTS, channelID, err)
		}
		all = append(all, page.Messages...)
		cursor = page.NextCursor
		if cursor == "" {
			return all, nil
		}
	}
}

// channelHint lists up to 20 channel names for a not-found error.
func channelHint(channels []slack.Channel) string {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		if len(names) == 20 {
			names = append(names, fmt.Sprintf("and %d more", len(channels)-20))
			break
		}
		names = append(names, ch.Name)
	}
	return strings.Join(names, ", ")
}
