package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/utils"
)

const maxErrorBodyBytes = 1024

// Store is the raw point-level interface to a Qdrant collection.
type Store interface {
	UpsertPoints(ctx context.Context, points []Point) error
	DeleteByDocID(ctx context.Context, docID int64) error
}

type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

type Config struct {
	URL        string
	Collection string
	Timeout    time.Duration
}

func ConfigFromEnv(log *logger.Logger) Config {
	timeoutSec := utils.GetEnvAsInt("QDRANT_TIMEOUT_SECONDS", 10, log)
	return Config{
		URL:        utils.GetEnv("QDRANT_URL", "http://localhost:6333", log),
		Collection: utils.GetEnv("QDRANT_COLLECTION", "yuque_docs", log),
		Timeout:    time.Duration(timeoutSec) * time.Second,
	}
}

type store struct {
	log     *logger.Logger
	baseURL string
	coll    string
	http    *http.Client
}

func NewStore(log *logger.Logger, cfg Config) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("QDRANT_URL is required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, fmt.Errorf("QDRANT_COLLECTION is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &store{
		log:     log.With("client", "QdrantStore"),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		coll:    cfg.Collection,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (s *store) UpsertPoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	payload := make([]map[string]interface{}, 0, len(points))
	for _, p := range points {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("qdrant upsert: point id is required")
		}
		if len(p.Vector) == 0 {
			return fmt.Errorf("qdrant upsert: point %q has empty vector", p.ID)
		}
		payload = append(payload, map[string]interface{}{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}
	req := map[string]interface{}{"points": payload}
	return s.doJSON(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), req)
}

// DeleteByDocID removes every chunk point whose payload references the given
// remote document id.
func (s *store) DeleteByDocID(ctx context.Context, docID int64) error {
	req := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{
					"key":   "doc_id",
					"match": map[string]interface{}{"value": docID},
				},
			},
		},
	}
	return s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req)
}

func (s *store) collectionPath(suffix string) string {
	return "/collections/" + s.coll + suffix
}

func (s *store) doJSON(ctx context.Context, method, path string, body interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, string(snippet))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
