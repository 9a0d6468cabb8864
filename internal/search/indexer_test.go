package search

import (
	"context"
	"strings"
	"testing"

	"github.com/skylerye/yuquesync-backend/internal/clients/qdrant"
	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

type fakeEmbedder struct {
	calls [][]string
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls = append(f.calls, inputs)
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{float32(i), 1.0}
	}
	return out, nil
}

type fakeStore struct {
	upserts [][]qdrant.Point
	deletes []int64
}

func (f *fakeStore) UpsertPoints(ctx context.Context, points []qdrant.Point) error {
	f.upserts = append(f.upserts, points)
	return nil
}

func (f *fakeStore) DeleteByDocID(ctx context.Context, docID int64) error {
	f.deletes = append(f.deletes, docID)
	return nil
}

func int64p(v int64) *int64 { return &v }

func TestIndexDocStripsHTMLAndReplacesPoints(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	ix := NewIndexer(logger.NewNop(), embedder, store)

	doc := &types.Doc{
		UUID:    "a1",
		YuqueID: int64p(101),
		RepoID:  10,
		Slug:    "intro",
		Title:   "Intro",
		Body:    "<p>hello <b>world</b></p>",
	}
	if err := ix.IndexDoc(context.Background(), doc); err != nil {
		t.Fatalf("index: %v", err)
	}

	if len(embedder.calls) != 1 {
		t.Fatalf("want 1 embed call got %d", len(embedder.calls))
	}
	text := embedder.calls[0][0]
	if strings.Contains(text, "<p>") || strings.Contains(text, "<b>") {
		t.Fatalf("html not stripped: %q", text)
	}
	if !strings.HasPrefix(text, "# Intro") {
		t.Fatalf("want title heading prefix, got %q", text)
	}

	// Old points go first, then the fresh set.
	if len(store.deletes) != 1 || store.deletes[0] != 101 {
		t.Fatalf("want delete for 101 before upsert, got %v", store.deletes)
	}
	if len(store.upserts) != 1 || len(store.upserts[0]) != 1 {
		t.Fatalf("want 1 upserted point, got %v", store.upserts)
	}
	point := store.upserts[0][0]
	if point.Payload["doc_id"] != int64(101) || point.Payload["slug"] != "intro" {
		t.Fatalf("unexpected payload: %v", point.Payload)
	}
}

func TestIndexDocPointIDsAreStable(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	ix := NewIndexer(logger.NewNop(), embedder, store)

	doc := &types.Doc{UUID: "a1", YuqueID: int64p(101), RepoID: 10, Slug: "intro", Title: "Intro", Body: "hello"}
	for i := 0; i < 2; i++ {
		if err := ix.IndexDoc(context.Background(), doc); err != nil {
			t.Fatalf("index pass %d: %v", i, err)
		}
	}
	if len(store.upserts) != 2 {
		t.Fatalf("want 2 upsert batches got %d", len(store.upserts))
	}
	if store.upserts[0][0].ID != store.upserts[1][0].ID {
		t.Fatalf("point id must be stable across runs: %q vs %q", store.upserts[0][0].ID, store.upserts[1][0].ID)
	}
}

func TestIndexDocSkipsUnindexable(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	ix := NewIndexer(logger.NewNop(), embedder, store)

	// TITLE node: no remote id.
	if err := ix.IndexDoc(context.Background(), &types.Doc{UUID: "t1", Title: "Chapter", Body: "x"}); err != nil {
		t.Fatalf("title node: %v", err)
	}
	// Empty body.
	if err := ix.IndexDoc(context.Background(), &types.Doc{UUID: "a1", YuqueID: int64p(101), Title: "Empty", Body: "  "}); err != nil {
		t.Fatalf("empty body: %v", err)
	}

	if len(embedder.calls) != 0 || len(store.upserts) != 0 {
		t.Fatalf("unindexable docs must be skipped, got embeds=%d upserts=%d", len(embedder.calls), len(store.upserts))
	}
}

func TestSplitTextShortInputIsSingleChunk(t *testing.T) {
	chunks := SplitText("short text", 1000, 200)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("want single chunk got %v", chunks)
	}
}

func TestSplitTextEmptyInput(t *testing.T) {
	if chunks := SplitText("   ", 1000, 200); chunks != nil {
		t.Fatalf("want nil for blank input got %v", chunks)
	}
}

func TestSplitTextOverlapsWindows(t *testing.T) {
	words := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	chunks := SplitText(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len([]rune(chunk)) > 100 {
			t.Fatalf("chunk %d exceeds window: %d runes", i, len([]rune(chunk)))
		}
	}

	// Overlap: the head of each chunk repeats the tail of the previous one.
	joined := strings.Join(chunks, " ")
	if len(joined) <= len(text) {
		t.Fatalf("expected overlap to duplicate text, joined=%d original=%d", len(joined), len(text))
	}
}

func TestSplitTextAlwaysTerminates(t *testing.T) {
	// No break characters at all: the splitter must still make progress.
	text := strings.Repeat("x", 5000)
	chunks := SplitText(text, 100, 99)
	if len(chunks) == 0 {
		t.Fatalf("want chunks for unbreakable input")
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total < len(text) {
		t.Fatalf("chunks must cover the input: covered=%d len=%d", total, len(text))
	}
}
