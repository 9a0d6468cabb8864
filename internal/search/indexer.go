package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/skylerye/yuquesync-backend/internal/clients/openai"
	"github.com/skylerye/yuquesync-backend/internal/clients/qdrant"
	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Point ids must be stable across re-index runs so replaying the same doc
// converges instead of accumulating duplicates.
var pointIDNamespaceUUID = uuid.MustParse("7c9e4a1b-58d2-4f6e-9a3c-2d8b1f0e6c44")

// Indexer is the search-index collaborator: it receives document text on
// every upsert with a non-empty body and delete requests keyed by the
// remote document id when a node is pruned or purged.
type Indexer interface {
	IndexDoc(ctx context.Context, doc *types.Doc) error
	DeleteDoc(ctx context.Context, yuqueID int64) error
}

type indexer struct {
	log          *logger.Logger
	embedder     openai.Client
	store        qdrant.Store
	stripPolicy  *bluemonday.Policy
	chunkSize    int
	chunkOverlap int
}

func NewIndexer(log *logger.Logger, embedder openai.Client, store qdrant.Store) Indexer {
	return &indexer{
		log:          log.With("service", "SearchIndexer"),
		embedder:     embedder,
		store:        store,
		stripPolicy:  bluemonday.StrictPolicy(),
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
	}
}

func (ix *indexer) IndexDoc(ctx context.Context, doc *types.Doc) error {
	if doc == nil || doc.YuqueID == nil || strings.TrimSpace(doc.Body) == "" {
		return nil
	}
	docID := *doc.YuqueID

	clean := ix.stripPolicy.Sanitize(doc.Body)
	fullText := "# " + doc.Title + "\n\n" + clean
	chunks := SplitText(fullText, ix.chunkSize, ix.chunkOverlap)
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := ix.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed doc %d: %w", docID, err)
	}

	// Replace semantics: drop previous chunks first so a shrinking document
	// does not leave stale tail points behind.
	if err := ix.store.DeleteByDocID(ctx, docID); err != nil {
		return fmt.Errorf("clear doc %d points: %w", docID, err)
	}

	points := make([]qdrant.Point, 0, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]interface{}{
			"doc_id":  docID,
			"title":   doc.Title,
			"slug":    doc.Slug,
			"repo_id": doc.RepoID,
			"chunk":   i,
			"text":    chunk,
		}
		if doc.UserID != nil {
			payload["user_id"] = *doc.UserID
		}
		points = append(points, qdrant.Point{
			ID:      ix.pointID(docID, i),
			Vector:  vectors[i],
			Payload: payload,
		})
	}

	if err := ix.store.UpsertPoints(ctx, points); err != nil {
		return fmt.Errorf("upsert doc %d points: %w", docID, err)
	}
	ix.log.Debug("Indexed doc", "doc_id", docID, "chunks", len(points))
	return nil
}

func (ix *indexer) DeleteDoc(ctx context.Context, yuqueID int64) error {
	return ix.store.DeleteByDocID(ctx, yuqueID)
}

func (ix *indexer) pointID(docID int64, chunk int) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(fmt.Sprintf("%d:%d", docID, chunk))).String()
}

// SplitText cuts text into overlapping windows of at most size runes,
// preferring to break at a newline or space near the window edge.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}
		cut := end
		for i := end; i > start+size/2; i-- {
			if runes[i-1] == '\n' || runes[i-1] == ' ' {
				cut = i
				break
			}
		}
		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}
