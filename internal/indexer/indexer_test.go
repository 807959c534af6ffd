package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loreworks/chanlore/internal/chunker"
	"github.com/loreworks/chanlore/internal/slack"
)

type fakeCollector struct {
	channel    slack.Channel
	history    []slack.Message
	replies    map[string][]slack.Message
	gotOldest  string
	historyErr error
}

func (f *fakeCollector) TeamID(context.Context) (string, error) { return "T1", nil }

func (f *fakeCollector) ResolveChannel(_ context.Context, ref string) (slack.Channel, error) {
	if f.channel.ID == "" {
		return slack.Channel{}, fmt.Errorf("channel %q not found", ref)
	}
	return f.channel, nil
}

func (f *fakeCollector) FetchHistory(_ context.Context, _, oldest string) ([]slack.Message, error) {
	f.gotOldest = oldest
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeCollector) FetchThreadReplies(_ context.Context, _, threadTS string) ([]slack.Message, error) {
	replies, ok := f.replies[threadTS]
	if !ok {
		return nil, &slack.APIError{Status: 200, Code: "thread_not_found"}
	}
	return replies, nil
}

type fakeChunkStore struct {
	upserts []chunker.Chunk
	failKey string
}

func (f *fakeChunkStore) UpsertChunk(_ context.Context, c chunker.Chunk, _ []float64) (uuid.UUID, error) {
	if f.failKey != "" && c.Key == f.failKey {
		return uuid.Nil, errors.New("storage unavailable")
	}
	f.upserts = append(f.upserts, c)
	return uuid.New(), nil
}

type fakeCursorStore struct {
	cursors map[string]string
}

func (f *fakeCursorStore) GetCursor(_ context.Context, teamID, channelID string) (string, bool, error) {
	v, ok := f.cursors[teamID+"/"+channelID]
	return v, ok, nil
}

func (f *fakeCursorStore) SetCursor(_ context.Context, teamID, channelID, latestTS string) error {
	f.cursors[teamID+"/"+channelID] = latestTS
	return nil
}

type fakeEmbedder struct {
	failOn string
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.calls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding service down")
	}
	return []float64{1, 0, 0}, nil
}

func (f *fakeEmbedder) Dim() int { return 3 }

type fakePublisher struct {
	subjects []string
}

func (f *fakePublisher) Publish(subject string, _ any) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

func msg(ts, user, text, threadTS string) slack.Message {
	return slack.Message{TS: ts, User: user, Text: text, ThreadTS: threadTS}
}

func newTestIndexer(c *fakeCollector, chunks *fakeChunkStore, cursors *fakeCursorStore, e *fakeEmbedder, p Publisher) *Indexer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(c, nil, e, chunks, cursors, p, Options{
		MaxMessagesPerWindow: 20,
		MaxWindow:            10 * time.Minute,
	}, logger)
}

func TestIndexChannel_FullRun(t *testing.T) {
	coll := &fakeCollector{
		channel: slack.Channel{ID: "C1", Name: "general"},
		history: []slack.Message{
			msg("100.1", "U1", "loose one", ""),
			msg("110.1", "U1", "thread root", "110.1"),
			msg("115.1", "U2", "thread reply", "110.1"),
			msg("120.1", "U2", "loose two", ""),
		},
		replies: map[string][]slack.Message{
			"110.1": {
				msg("110.1", "U1", "thread root", "110.1"),
				msg("115.1", "U2", "thread reply", "110.1"),
			},
		},
	}
	chunks := &fakeChunkStore{}
	cursors := &fakeCursorStore{cursors: map[string]string{}}
	pub := &fakePublisher{}

	ix := newTestIndexer(coll, chunks, cursors, &fakeEmbedder{}, pub)
	result, err := ix.IndexChannel(context.Background(), "general", "")
	if err != nil {
		t.Fatalf("IndexChannel failed: %v", err)
	}

	if result.ThreadsIndexed != 1 {
		t.Errorf("threads = %d, want 1", result.ThreadsIndexed)
	}
	if result.WindowsIndexed != 1 {
		t.Errorf("windows = %d, want 1", result.WindowsIndexed)
	}
	if result.ChunksFailed != 0 {
		t.Errorf("failed = %d", result.ChunksFailed)
	}
	if result.Cursor != "120.1" {
		t.Errorf("cursor = %q, want last fetched ts", result.Cursor)
	}
	if got := cursors.cursors["T1/C1"]; got != "120.1" {
		t.Errorf("stored cursor = %q", got)
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != "chanlore.index.completed" {
		t.Errorf("published subjects = %v", pub.subjects)
	}
}

func TestIndexChannel_ConsultsCursorWhenOldestUnset(t *testing.T) {
	coll := &fakeCollector{
		channel: slack.Channel{ID: "C1", Name: "general"},
	}
	cursors := &fakeCursorStore{cursors: map[string]string{"T1/C1": "500.000001"}}

	ix := newTestIndexer(coll, &fakeChunkStore{}, cursors, &fakeEmbedder{}, nil)
	if _, err := ix.IndexChannel(context.Background(), "general", ""); err != nil {
		t.Fatalf("IndexChannel failed: %v", err)
	}
	if coll.gotOldest != "500.000001" {
		t.Errorf("fetch oldest = %q, want stored cursor", coll.gotOldest)
	}

	// An explicit oldest overrides the cursor.
	if _, err := ix.IndexChannel(context.Background(), "general", "42.000001"); err != nil {
		t.Fatalf("IndexChannel failed: %v", err)
	}
	if coll.gotOldest != "42.000001" {
		t.Errorf("fetch oldest = %q, want explicit bound", coll.gotOldest)
	}
}

func TestIndexChannel_ContinuesPastChunkFailures(t *testing.T) {
	coll := &fakeCollector{
		channel: slack.Channel{ID: "C1", Name: "general"},
		history: []slack.Message{
			msg("100.1", "U1", "poisoned window", ""),
			// 20 minutes later: separate window.
			msg("1300.1", "U1", "healthy window", ""),
		},
	}
	chunks := &fakeChunkStore{}
	cursors := &fakeCursorStore{cursors: map[string]string{}}

	emb := &fakeEmbedder{failOn: "poisoned"}
	ix := newTestIndexer(coll, chunks, cursors, emb, nil)
	result, err := ix.IndexChannel(context.Background(), "general", "")
	if err != nil {
		t.Fatalf("one bad chunk must not abort the run: %v", err)
	}
	if result.WindowsIndexed != 1 {
		t.Errorf("windows = %d, want 1", result.WindowsIndexed)
	}
	if result.ChunksFailed != 1 {
		t.Errorf("failed = %d, want 1", result.ChunksFailed)
	}
	// Cursor still advances past the fetched range.
	if result.Cursor != "1300.1" {
		t.Errorf("cursor = %q", result.Cursor)
	}
}

func TestIndexChannel_ThreadFetchFailureSkipsThread(t *testing.T) {
	coll := &fakeCollector{
		channel: slack.Channel{ID: "C1", Name: "general"},
		history: []slack.Message{
			msg("100.1", "U1", "root a", "100.1"),
			msg("200.1", "U1", "root b", "200.1"),
		},
		replies: map[string][]slack.Message{
			"200.1": {msg("200.1", "U1", "root b", "200.1")},
		},
	}
	chunks := &fakeChunkStore{}
	cursors := &fakeCursorStore{cursors: map[string]string{}}

	ix := newTestIndexer(coll, chunks, cursors, &fakeEmbedder{}, nil)
	result, err := ix.IndexChannel(context.Background(), "general", "")
	if err != nil {
		t.Fatalf("IndexChannel failed: %v", err)
	}
	if result.ThreadsIndexed != 1 {
		t.Errorf("threads = %d, want 1 (failed thread skipped)", result.ThreadsIndexed)
	}
	if result.ChunksFailed != 1 {
		t.Errorf("failed = %d, want 1", result.ChunksFailed)
	}
}

func TestIndexChannel_EmptyHistory(t *testing.T) {
	coll := &fakeCollector{channel: slack.Channel{ID: "C1", Name: "general"}}
	cursors := &fakeCursorStore{cursors: map[string]string{}}
	emb := &fakeEmbedder{}

	ix := newTestIndexer(coll, &fakeChunkStore{}, cursors, emb, nil)
	result, err := ix.IndexChannel(context.Background(), "general", "")
	if err != nil {
		t.Fatalf("IndexChannel failed: %v", err)
	}
	if result.ThreadsIndexed != 0 || result.WindowsIndexed != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for empty history", emb.calls)
	}
	if _, ok := cursors.cursors["T1/C1"]; ok {
		t.Error("cursor must not move when nothing was fetched")
	}
}

func TestIndexChannel_FetchFailureIsFatal(t *testing.T) {
	coll := &fakeCollector{
		channel:    slack.Channel{ID: "C1", Name: "general"},
		historyErr: &slack.APIError{Status: 429, RetryAfter: time.Minute},
	}
	cursors := &fakeCursorStore{cursors: map[string]string{}}

	ix := newTestIndexer(coll, &fakeChunkStore{}, cursors, &fakeEmbedder{}, nil)
	if _, err := ix.IndexChannel(context.Background(), "general", ""); err == nil {
		t.Fatal("expected fatal error when history fetch fails")
	}
	if len(cursors.cursors) != 0 {
		t.Error("cursor must not move on fetch failure")
	}
}

func TestPartition(t *testing.T) {
	msgs := []slack.Message{
		msg("100.1", "U1", "loose", ""),
		msg("110.1", "U1", "root", "110.1"),
		msg("115.1", "U2", "reply", "110.1"),
		msg("120.1", "U2", "", ""), // empty text dropped
		msg("130.1", "U3", "another loose", ""),
	}
	roots, loose := partition(msgs)
	if len(roots) != 1 || roots[0] != "110.1" {
		t.Errorf("roots = %v", roots)
	}
	if len(loose) != 2 {
		t.Errorf("loose = %d, want 2", len(loose))
	}
}
