package yuque

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/skylerye/yuquesync-backend/internal/logger"
)

type fakeRT struct {
	calls int
	fn    func(call int, req *http.Request) (*http.Response, error)
}

func (f *fakeRT) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	return f.fn(f.calls, req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testClient(rt http.RoundTripper) *client {
	return &client{
		log:     logger.NewNop(),
		baseURL: "https://example.test/api/v2",
		token:   "test-token",
		retry: RetryPolicy{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			Retryable:       func(error) bool { return true },
		},
		http: &http.Client{Transport: rt},
	}
}

func TestGetUserRetriesTransportErrors(t *testing.T) {
	rt := &fakeRT{fn: func(call int, req *http.Request) (*http.Response, error) {
		if call < 3 {
			return nil, errors.New("connection reset")
		}
		return jsonResponse(200, `{"data":{"id":1,"login":"team","name":"Team"}}`), nil
	}}
	c := testClient(rt)

	user, err := c.GetUser(context.Background())
	if err != nil {
		t.Fatalf("want success after retries, got %v", err)
	}
	if rt.calls != 3 {
		t.Fatalf("want 3 attempts got %d", rt.calls)
	}
	if user.Login != "team" {
		t.Fatalf("want login team got %q", user.Login)
	}
}

func TestGetUserDoesNotRetryHTTPErrors(t *testing.T) {
	rt := &fakeRT{fn: func(call int, req *http.Request) (*http.Response, error) {
		return jsonResponse(401, `{"message":"invalid token"}`), nil
	}}
	c := testClient(rt)

	_, err := c.GetUser(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if rt.calls != 1 {
		t.Fatalf("status errors must not be retried, got %d attempts", rt.calls)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Fatalf("want APIError 401 got %v", err)
	}
}

func TestGetRepoTOCNotFoundIsTyped(t *testing.T) {
	rt := &fakeRT{fn: func(call int, req *http.Request) (*http.Response, error) {
		return jsonResponse(404, `{"message":"book not found"}`), nil
	}}
	c := testClient(rt)

	_, err := c.GetRepoTOC(context.Background(), 10)
	if !IsNotFound(err) {
		t.Fatalf("want IsNotFound=true for %v", err)
	}
	if rt.calls != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", rt.calls)
	}
}

func TestGetRepoTOCDecodesLooseNodeIDs(t *testing.T) {
	body := `{"data":[
		{"uuid":"a1","id":101,"type":"DOC","title":"Intro","url":"intro","depth":1},
		{"uuid":"a2","id":"102","type":"DOC","title":"Usage","url":"usage","depth":1},
		{"uuid":"t1","id":"","type":"TITLE","title":"Chapter","depth":1}
	]}`
	rt := &fakeRT{fn: func(call int, req *http.Request) (*http.Response, error) {
		return jsonResponse(200, body), nil
	}}
	c := testClient(rt)

	items, err := c.GetRepoTOC(context.Background(), 10)
	if err != nil {
		t.Fatalf("toc: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("want 3 items got %d", len(items))
	}

	if id, ok := items[0].ID.Int64(); !ok || id != 101 {
		t.Fatalf("numeric id: want 101 got %v ok=%v", id, ok)
	}
	if id, ok := items[1].ID.Int64(); !ok || id != 102 {
		t.Fatalf("string id: want 102 got %v ok=%v", id, ok)
	}
	if _, ok := items[2].ID.Int64(); ok {
		t.Fatalf("empty id must decode as absent")
	}
}

func TestGetGroupMembersUnwrapsListing(t *testing.T) {
	body := `{"data":{"members":[
		{"role":1,"status":1,"user":{"id":7,"login":"alice","name":"Alice"}},
		{"status":0,"user_id":42}
	]}}`
	rt := &fakeRT{fn: func(call int, req *http.Request) (*http.Response, error) {
		if got := req.URL.Query().Get("page"); got != "2" {
			t.Fatalf("want page=2 got %q", got)
		}
		return jsonResponse(200, body), nil
	}}
	c := testClient(rt)

	items, err := c.GetGroupMembers(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("want 2 items got %d", len(items))
	}
	if items[0].User == nil || items[0].User.Login != "alice" {
		t.Fatalf("nested user not decoded: %+v", items[0])
	}
	if items[1].UserID == nil || *items[1].UserID != 42 {
		t.Fatalf("top-level user_id not decoded: %+v", items[1])
	}
}

func TestRequestCarriesAuthHeaders(t *testing.T) {
	rt := &fakeRT{fn: func(call int, req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("X-Auth-Token"); got != "test-token" {
			t.Fatalf("want auth token header got %q", got)
		}
		if req.Header.Get("User-Agent") == "" {
			t.Fatalf("user agent header missing")
		}
		return jsonResponse(200, `{"data":{"id":5,"name":"docs","slug":"docs"}}`), nil
	}}
	c := testClient(rt)

	repo, err := c.GetRepo(context.Background(), 5)
	if err != nil {
		t.Fatalf("get repo: %v", err)
	}
	if repo.ID != 5 || repo.Slug != "docs" {
		t.Fatalf("unexpected record: %+v", repo)
	}
}
