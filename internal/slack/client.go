package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultAPIURL = "https://slack.com/api"

// Slack Tier 3 methods allow ~50 requests/minute. The proactive limiter
// stays under that; the retry policy handles 429s that slip through.
const proactiveRate = 0.8

// APIError is a failed Slack Web API call. RetryAfter is non-zero when the
// server supplied a Retry-After hint.
type APIError struct {
	Status     int
	Code       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("slack api error: %s (status %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("slack api error: status %d", e.Status)
}

// RateLimited reports whether waiting and retrying could succeed.
func (e *APIError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests || e.RetryAfter > 0
}

// Client is a read-side Slack Web API client.
type Client struct {
	token   string
	client  *http.Client
	limiter *rate.Limiter
	apiURL  string
}

func NewClient(token string) *Client {
	return &Client{
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(proactiveRate), 5),
		apiURL:  defaultAPIURL,
	}
}

// AuthTest returns the identity of the token, including the workspace id.
func (c *Client) AuthTest(ctx context.Context) (AuthInfo, error) {
	var resp struct {
		envelope
		AuthInfo
	}
	if err := c.call(ctx, "auth.test", nil, &resp); err != nil {
		return AuthInfo{}, err
	}
	return resp.AuthInfo, nil
}

// ListChannels fetches one page of public channels, archived excluded.
func (c *Client) ListChannels(ctx context.Context, cursor string, limit int) (ChannelPage, error) {
	params := url.Values{
		"types":            {"public_channel"},
		"exclude_archived": {"true"},
		"limit":            {strconv.Itoa(limit)},
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	var resp struct {
		envelope
		Channels []Channel `json:"channels"`
	}
	if err := c.call(ctx, "conversations.list", params, &resp); err != nil {
		return ChannelPage{}, err
	}
	return ChannelPage{Channels: resp.Channels, NextCursor: resp.ResponseMetadata.NextCursor}, nil
}

// ChannelInfo fetches a single channel by id.
func (c *Client) ChannelInfo(ctx context.Context, channelID string) (Channel, error) {
	params := url.Values{"channel": {channelID}}
	var resp struct {
		envelope
		Channel Channel `json:"channel"`
	}
	if err := c.call(ctx, "conversations.info", params, &resp); err != nil {
		return Channel{}, err
	}
	return resp.Channel, nil
}

// History fetches one page of channel history. Slack returns messages
// newest-first. oldest, when set, is an inclusive lower timestamp bound.
func (c *Client) History(ctx context.Context, channelID, cursor, oldest string, limit int) (MessagePage, error) {
	params := url.Values{
		"channel": {channelID},
		"limit":   {strconv.Itoa(limit)},
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if oldest != "" {
		params.Set("oldest", oldest)
		params.Set("inclusive", "true")
	}
	var resp struct {
		envelope
		Messages []Message `json:"messages"`
	}
	if err := c.call(ctx, "conversations.history", params, &resp); err != nil {
		return MessagePage{}, err
	}
	return MessagePage{Messages: resp.Messages, NextCursor: resp.ResponseMetadata.NextCursor}, nil
}

// Replies fetches one page of a thread, root first, oldest-first.
func (c *Client) Replies(ctx context.Context, channelID, threadTS, cursor string, limit int) (MessagePage, error) {
	params := url.Values{
		"channel": {channelID},
		"ts":      {threadTS},
		"limit":   {strconv.Itoa(limit)},
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	var resp struct {
		envelope
		Messages []Message `json:"messages"`
	}
	if err := c.call(ctx, "conversations.replies", params, &resp); err != nil {
		return MessagePage{}, err
	}
	return MessagePage{Messages: resp.Messages, NextCursor: resp.ResponseMetadata.NextCursor}, nil
}

// UserInfo fetches a user profile.
func (c *Client) UserInfo(ctx context.Context, userID string) (User, error) {
	params := url.Values{"user": {userID}}
	var resp struct {
		envelope
		User User `json:"user"`
	}
	if err := c.call(ctx, "users.info", params, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

type envelope struct {
	OK               bool   `json:"ok"`
	Err              string `json:"error,omitempty"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

func (e envelope) ok() bool     { return e.OK }
func (e envelope) code() string { return e.Err }

type enveloped interface {
	ok() bool
	code() string
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out enveloped) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.apiURL + "/" + method
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{Status: resp.StatusCode, Code: "ratelimited", RetryAfter: retryAfterHint(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", method, err)
	}
	if !out.ok() {
		apiErr := &APIError{Status: resp.StatusCode, Code: out.code()}
		if apiErr.Code == "ratelimited" {
			apiErr.Status = http.StatusTooManyRequests
		}
		return apiErr
	}
	return nil
}

func retryAfterHint(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
