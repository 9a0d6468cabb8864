package yuque

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/utils"
)

const maxErrorBodyBytes = 1024

// Client is the gateway to the remote Yuque API. All operations carry the
// auth token header and run under the client's retry policy.
type Client interface {
	GetUser(ctx context.Context) (*UserRecord, error)
	GetUserRepos(ctx context.Context, userID int64) ([]RepoRecord, error)
	GetGroupRepos(ctx context.Context, groupID int64) ([]RepoRecord, error)
	GetGroupMembers(ctx context.Context, groupID int64, page int) ([]MemberItem, error)
	GetRepoTOC(ctx context.Context, repoID int64) ([]TocItem, error)
	GetDocDetail(ctx context.Context, repoID int64, slug string) (*DocDetail, error)
	GetRepo(ctx context.Context, repoID int64) (*RepoRecord, error)
}

// APIError is a non-transient HTTP failure. These are never retried.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yuque api %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a remote 404. On GetRepoTOC this means
// "the repository no longer exists", which callers treat as a purge signal
// rather than a fetch failure.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// RetryPolicy makes the retry behavior explicit data instead of decorator
// magic: attempts, backoff curve, and the retryable-error predicate.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Retryable       func(error) bool
}

// DefaultRetryPolicy retries transport-level failures (connection errors,
// timeouts) up to 3 attempts with exponential backoff between 2s and 10s.
// HTTP status errors never reach the predicate; they are permanent.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
		Retryable:       func(err error) bool { return true },
	}
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retry   RetryPolicy
}

func ConfigFromEnv(log *logger.Logger) Config {
	timeoutSec := utils.GetEnvAsInt("YUQUE_TIMEOUT_SECONDS", 30, log)
	return Config{
		BaseURL: utils.GetEnv("YUQUE_BASE_URL", "https://nova.yuque.com/api/v2", log),
		Token:   utils.GetEnv("YUQUE_TOKEN", "", log),
		Timeout: time.Duration(timeoutSec) * time.Second,
		Retry:   DefaultRetryPolicy(),
	}
}

type client struct {
	log     *logger.Logger
	baseURL string
	token   string
	retry   RetryPolicy
	http    *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("yuque base url required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("YUQUE_TOKEN is required")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = func(error) bool { return true }
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &client{
		log:     log.With("client", "YuqueClient"),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		retry:   cfg.Retry,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// getData performs a GET and unwraps the {"data": ...} envelope into out.
func (c *client) getData(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if query != nil {
			req.URL.RawQuery = query.Encode()
		}
		req.Header.Set("X-Auth-Token", c.token)
		req.Header.Set("User-Agent", "YuqueSyncPlatform/1.0")
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if c.retry.Retryable(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= 400 {
			snippet := string(body)
			if len(snippet) > maxErrorBodyBytes {
				snippet = snippet[:maxErrorBodyBytes]
			}
			return nil, backoff.Permanent(&APIError{
				StatusCode: resp.StatusCode,
				Endpoint:   endpoint,
				Body:       snippet,
			})
		}
		return body, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.retry.MaxAttempts),
	)
	if err != nil {
		return err
	}

	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", endpoint, err)
	}
	return nil
}

func (c *client) GetUser(ctx context.Context) (*UserRecord, error) {
	var user UserRecord
	if err := c.getData(ctx, "/user", nil, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("yuque /user returned no principal")
	}
	return &user, nil
}

func (c *client) GetUserRepos(ctx context.Context, userID int64) ([]RepoRecord, error) {
	var repos []RepoRecord
	if err := c.getData(ctx, fmt.Sprintf("/users/%d/repos", userID), nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func (c *client) GetGroupRepos(ctx context.Context, groupID int64) ([]RepoRecord, error) {
	var repos []RepoRecord
	if err := c.getData(ctx, fmt.Sprintf("/groups/%d/repos", groupID), nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func (c *client) GetGroupMembers(ctx context.Context, groupID int64, page int) ([]MemberItem, error) {
	query := url.Values{}
	query.Set("page", fmt.Sprintf("%d", page))
	wrapper := struct {
		Members []MemberItem `json:"members"`
	}{}
	if err := c.getData(ctx, fmt.Sprintf("/groups/%d/statistics/members", groupID), query, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Members, nil
}

func (c *client) GetRepoTOC(ctx context.Context, repoID int64) ([]TocItem, error) {
	var items []TocItem
	if err := c.getData(ctx, fmt.Sprintf("/repos/%d/toc", repoID), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *client) GetDocDetail(ctx context.Context, repoID int64, slug string) (*DocDetail, error) {
	var detail DocDetail
	if err := c.getData(ctx, fmt.Sprintf("/repos/%d/docs/%s", repoID, url.PathEscape(slug)), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *client) GetRepo(ctx context.Context, repoID int64) (*RepoRecord, error) {
	var repo RepoRecord
	if err := c.getData(ctx, fmt.Sprintf("/repos/%d", repoID), nil, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}
