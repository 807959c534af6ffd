package slack

import (
	"context"
	"regexp"
	"strings"
)

// Resolver maps a Slack user id to a display name. Implementations are
// best-effort: rendering falls back to the raw id when lookup fails.
type Resolver interface {
	DisplayName(ctx context.Context, userID string) string
}

var (
	mentionRE = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]*)?>`)
	channelRE = regexp.MustCompile(`<#[A-Z0-9]+\|([^>]*)>`)
	linkRE    = regexp.MustCompile(`<(https?://[^>|]+)(?:\|([^>]*))?>`)
	specialRE = regexp.MustCompile(`<!([a-z]+)(?:\|([^>]*))?>`)
)

// Normalize rewrites Slack directive markup into plain prose: user mentions
// become "@Display Name", channel references "#name", links their label (or
// bare URL), and broadcast tokens like <!here> their fallback label.
// resolver may be nil, in which case mentions keep the raw user id.
func Normalize(ctx context.Context, text string, resolver Resolver) string {
	out := mentionRE.ReplaceAllStringFunc(text, func(tok string) string {
		id := mentionRE.FindStringSubmatch(tok)[1]
		if resolver == nil {
			return "@" + id
		}
		return "@" + resolver.DisplayName(ctx, id)
	})
	out = channelRE.ReplaceAllString(out, "#$1")
	out = linkRE.ReplaceAllStringFunc(out, func(tok string) string {
		m := linkRE.FindStringSubmatch(tok)
		if m[2] != "" {
			return m[2]
		}
		return m[1]
	})
	out = specialRE.ReplaceAllStringFunc(out, func(tok string) string {
		m := specialRE.FindStringSubmatch(tok)
		if m[2] != "" {
			return "@" + m[2]
		}
		return "@" + m[1]
	})
	return strings.TrimSpace(out)
}

// StripMentions removes user mention tokens outright. Used to clean a query
// addressed at the bot before it is embedded.
func StripMentions(text string) string {
	return strings.TrimSpace(mentionRE.ReplaceAllString(text, ""))
}
