package slack

import (
	"strconv"
	"strings"
	"time"
)

// Message is a single message as returned by the Slack Web API.
// TS is the message timestamp string ("1712345678.000123"), unique and
// monotonic within a channel.
type Message struct {
	TS       string `json:"ts"`
	User     string `json:"user,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// Time parses the message timestamp. Returns the zero time if the
// timestamp is malformed.
func (m Message) Time() time.Time {
	sec, frac, _ := strings.Cut(m.TS, ".")
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micros int64
	if frac != "" {
		if f, err := strconv.ParseInt(frac, 10, 64); err == nil {
			micros = f
		}
	}
	return time.Unix(s, micros*1000).UTC()
}

// Channel is a conversation descriptor from conversations.list/info.
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsMember bool   `json:"is_member"`
}

// AuthInfo is the relevant subset of auth.test.
type AuthInfo struct {
	TeamID string `json:"team_id"`
	Team   string `json:"team"`
	UserID string `json:"user_id"`
}

// User is the relevant subset of users.info.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Profile struct {
		DisplayName string `json:"display_name"`
		RealName    string `json:"real_name"`
	} `json:"profile"`
}

// DisplayName picks the most human-readable name available.
func (u User) DisplayName() string {
	if u.Profile.DisplayName != "" {
		return u.Profile.DisplayName
	}
	if u.Profile.RealName != "" {
		return u.Profile.RealName
	}
	return u.Name
}

// ChannelPage is one page of a conversations.list result.
type ChannelPage struct {
	Channels   []Channel
	NextCursor string
}

// MessagePage is one page of a conversations.history or
// conversations.replies result.
type MessagePage struct {
	Messages   []Message
	NextCursor string
}
