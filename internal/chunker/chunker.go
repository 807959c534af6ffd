// Package chunker groups raw channel messages into embeddable units.
// Threads are kept whole; loose messages are windowed by message count and
// wall-clock span.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loreworks/chanlore/internal/slack"
)

// Chunk is a rendered span of conversation ready for embedding and storage.
type Chunk struct {
	TeamID       string
	ChannelID    string
	ChannelName  string
	IsThread     bool
	ThreadTS     string
	StartTS      string
	EndTS        string
	Text         string
	MessageCount int
	Key          string
}

// Params identifies the channel a batch of chunks belongs to.
type Params struct {
	TeamID      string
	ChannelID   string
	ChannelName string
}

// ChunkKey builds the stable identity key for a chunk. Thread chunks key on
// the thread root alone, so a thread that has grown since the last run
// replaces its stored chunk in place. Window chunks key on their exact span.
func ChunkKey(channelID string, isThread bool, anchorTS, endTS string) string {
	if isThread {
		return fmt.Sprintf("%s:thread:%s", channelID, anchorTS)
	}
	return fmt.Sprintf("%s:window:%s:%s", channelID, anchorTS, endTS)
}

// BuildThreadChunk renders a whole thread (root plus replies, chronological)
// into a single chunk, bypassing window bounds: a thread is one semantic unit
// no matter how long it ran. Returns false when the rendered transcript is
// empty.
func BuildThreadChunk(ctx context.Context, p Params, threadTS string, msgs []slack.Message, resolver slack.Resolver) (Chunk, bool) {
	if len(msgs) == 0 {
		return Chunk{}, false
	}
	text, count := renderTranscript(ctx, msgs, resolver)
	if text == "" {
		return Chunk{}, false
	}
	return Chunk{
		TeamID:       p.TeamID,
		ChannelID:    p.ChannelID,
		ChannelName:  p.ChannelName,
		IsThread:     true,
		ThreadTS:     threadTS,
		StartTS:      msgs[0].TS,
		EndTS:        msgs[len(msgs)-1].TS,
		Text:         text,
		MessageCount: count,
		Key:          ChunkKey(p.ChannelID, true, threadTS, msgs[len(msgs)-1].TS),
	}, true
}

// BuildWindows partitions chronological non-thread messages into consecutive
// windows of at most maxMessages messages spanning at most maxWindow from the
// window's first message. A window closes before admitting a message that
// would exceed either bound; a span exactly equal to maxWindow is allowed.
// Windows whose rendered text is empty are dropped.
func BuildWindows(ctx context.Context, p Params, msgs []slack.Message, resolver slack.Resolver, maxMessages int, maxWindow time.Duration) []Chunk {
	if len(msgs) == 0 {
		return nil
	}

	var chunks []Chunk
	var current []slack.Message

	flush := func() {
		if len(current) == 0 {
			return
		}
		if c, ok := buildWindowChunk(ctx, p, current, resolver); ok {
			chunks = append(chunks, c)
		}
		current = nil
	}

	for _, m := range msgs {
		if len(current) >= maxMessages {
			flush()
		}
		if len(current) > 0 {
			first := current[0].Time()
			t := m.Time()
			if !first.IsZero() && !t.IsZero() && t.Sub(first) > maxWindow {
				flush()
			}
		}
		current = append(current, m)
	}
	flush()

	return chunks
}

func buildWindowChunk(ctx context.Context, p Params, msgs []slack.Message, resolver slack.Resolver) (Chunk, bool) {
	text, count := renderTranscript(ctx, msgs, resolver)
	if text == "" {
		return Chunk{}, false
	}
	return Chunk{
		TeamID:       p.TeamID,
		ChannelID:    p.ChannelID,
		ChannelName:  p.ChannelName,
		IsThread:     false,
		StartTS:      msgs[0].TS,
		EndTS:        msgs[len(msgs)-1].TS,
		Text:         text,
		MessageCount: count,
		Key:          ChunkKey(p.ChannelID, false, msgs[0].TS, msgs[len(msgs)-1].TS),
	}, true
}

// renderTranscript renders messages as "Name: text" lines with Slack markup
// resolved to plain prose. Messages that are empty after normalization are
// skipped; count is the number of lines actually rendered.
func renderTranscript(ctx context.Context, msgs []slack.Message, resolver slack.Resolver) (string, int) {
	var sb strings.Builder
	count := 0
	for _, m := range msgs {
		text := slack.Normalize(ctx, m.Text, resolver)
		if text == "" {
			continue
		}
		name := "bot"
		if m.User != "" {
			if resolver != nil {
				name = resolver.DisplayName(ctx, m.User)
			} else {
				name = m.User
			}
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(text)
		sb.WriteString("\n")
		count++
	}
	return strings.TrimSpace(sb.String()), count
}
