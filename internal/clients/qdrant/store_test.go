package qdrant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/skylerye/yuquesync-backend/internal/logger"
)

type capturedRequest struct {
	method string
	path   string
	body   map[string]interface{}
}

type fakeRT struct {
	requests []capturedRequest
	status   int
}

func (f *fakeRT) RoundTrip(req *http.Request) (*http.Response, error) {
	var body map[string]interface{}
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(raw, &body)
	}
	f.requests = append(f.requests, capturedRequest{
		method: req.Method,
		path:   req.URL.Path + "?" + req.URL.RawQuery,
		body:   body,
	})
	status := f.status
	if status == 0 {
		status = 200
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(`{"status":"ok"}`)),
	}, nil
}

func testStore(rt http.RoundTripper) *store {
	return &store{
		log:     logger.NewNop(),
		baseURL: "http://qdrant.test:6333",
		coll:    "yuque_docs",
		http:    &http.Client{Transport: rt},
	}
}

func TestUpsertPointsRequestShape(t *testing.T) {
	rt := &fakeRT{}
	s := testStore(rt)

	err := s.UpsertPoints(context.Background(), []Point{
		{
			ID:      "pid-1",
			Vector:  []float32{0.1, 0.2},
			Payload: map[string]interface{}{"doc_id": 101, "chunk": 0},
		},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if len(rt.requests) != 1 {
		t.Fatalf("want 1 request got %d", len(rt.requests))
	}
	req := rt.requests[0]
	if req.method != http.MethodPut {
		t.Fatalf("want PUT got %s", req.method)
	}
	if req.path != "/collections/yuque_docs/points?wait=true" {
		t.Fatalf("unexpected path %q", req.path)
	}
	points, ok := req.body["points"].([]interface{})
	if !ok || len(points) != 1 {
		t.Fatalf("want one point in body, got %v", req.body)
	}
	point := points[0].(map[string]interface{})
	if point["id"] != "pid-1" {
		t.Fatalf("want point id pid-1 got %v", point["id"])
	}
}

func TestUpsertPointsRejectsInvalidPoints(t *testing.T) {
	rt := &fakeRT{}
	s := testStore(rt)

	if err := s.UpsertPoints(context.Background(), []Point{{ID: "", Vector: []float32{1}}}); err == nil {
		t.Fatalf("want error for empty id")
	}
	if err := s.UpsertPoints(context.Background(), []Point{{ID: "p", Vector: nil}}); err == nil {
		t.Fatalf("want error for empty vector")
	}
	if len(rt.requests) != 0 {
		t.Fatalf("invalid points must not reach the server")
	}
}

func TestUpsertPointsEmptyIsNoop(t *testing.T) {
	rt := &fakeRT{}
	s := testStore(rt)
	if err := s.UpsertPoints(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert: %v", err)
	}
	if len(rt.requests) != 0 {
		t.Fatalf("empty upsert must not issue a request")
	}
}

func TestDeleteByDocIDFilterShape(t *testing.T) {
	rt := &fakeRT{}
	s := testStore(rt)

	if err := s.DeleteByDocID(context.Background(), 101); err != nil {
		t.Fatalf("delete: %v", err)
	}

	req := rt.requests[0]
	if req.method != http.MethodPost {
		t.Fatalf("want POST got %s", req.method)
	}
	if req.path != "/collections/yuque_docs/points/delete?wait=true" {
		t.Fatalf("unexpected path %q", req.path)
	}

	filter := req.body["filter"].(map[string]interface{})
	must := filter["must"].([]interface{})
	clause := must[0].(map[string]interface{})
	if clause["key"] != "doc_id" {
		t.Fatalf("want doc_id filter got %v", clause)
	}
	match := clause["match"].(map[string]interface{})
	if match["value"] != float64(101) {
		t.Fatalf("want value 101 got %v", match["value"])
	}
}

func TestStoreSurfacesHTTPErrors(t *testing.T) {
	rt := &fakeRT{status: 500}
	s := testStore(rt)

	err := s.DeleteByDocID(context.Background(), 101)
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("want status error got %v", err)
	}
}
