package commitsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/plectr/reconcile/pkg/snapshot"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

type headResponse struct {
	Status   string  `json:"status"`
	CommitID *string `json:"commit_id"`
	Message  string  `json:"message"`
}

type treeEntry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size *int64 `json:"size"`
	Type string `json:"type"`
}

type mergeRequestBody struct {
	DivergentCommitID string            `json:"divergent_commit_id"`
	RemoteCommitID    string            `json:"remote_commit_id"`
	Decisions         map[string]string `json:"decisions"`
}

type mergeResponse struct {
	Status   string `json:"status"`
	CommitID string `json:"commit_id"`
}

type HTTPOption func(*HTTPClient)

func WithToken(token string) HTTPOption {
	return func(c *HTTPClient) {
		c.token = token
	}
}

func WithTimeout(timeout time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables it.
func WithRateLimit(perSecond float64) HTTPOption {
	return func(c *HTTPClient) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// HTTPClient talks to the commit service REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	c := &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) GetHead(ctx context.Context, repo string) (Head, error) {
	var resp headResponse
	if err := c.do(ctx, http.MethodGet, c.repoURL(repo, "head"), nil, &resp); err != nil {
		return Head{}, fmt.Errorf("failed to get head of %s: %w", repo, err)
	}

	if resp.CommitID == nil || *resp.CommitID == "" {
		return Head{Message: resp.Message, Empty: true}, nil
	}
	return Head{CommitID: *resp.CommitID, Message: resp.Message}, nil
}

func (c *HTTPClient) GetTree(ctx context.Context, repo, commitID string) ([]snapshot.FileRecord, error) {
	if commitID == "" {
		return nil, fmt.Errorf("failed to get tree of %s: empty commit id", repo)
	}

	var entries []treeEntry
	if err := c.do(ctx, http.MethodGet, c.repoURL(repo, "commits", commitID, "tree"), nil, &entries); err != nil {
		return nil, fmt.Errorf("failed to get tree %s of %s: %w", commitID, repo, err)
	}

	records := make([]snapshot.FileRecord, 0, len(entries))
	for i, e := range entries {
		if e.Size != nil && *e.Size < 0 {
			return nil, fmt.Errorf("tree %s of %s: entry %d (%s) has negative size", commitID, repo, i, e.Path)
		}
		var size uint64
		if e.Size != nil {
			size = uint64(*e.Size)
		}
		records = append(records, snapshot.FileRecord{
			Path: e.Path,
			Hash: e.Hash,
			Size: size,
		})
	}
	return records, nil
}

func (c *HTTPClient) SubmitMerge(ctx context.Context, req MergeRequest) (MergeResult, error) {
	decisions := req.Decisions
	if decisions == nil {
		decisions = map[string]string{}
	}
	body := mergeRequestBody{
		DivergentCommitID: req.DivergentCommitID,
		RemoteCommitID:    req.RemoteCommitID,
		Decisions:         decisions,
	}

	var resp mergeResponse
	if err := c.do(ctx, http.MethodPost, c.repoURL(req.Repo, "merge"), body, &resp); err != nil {
		return MergeResult{}, fmt.Errorf("failed to submit merge of %s: %w", req.DivergentCommitID, err)
	}
	if resp.Status != "" && resp.Status != "merged" {
		return MergeResult{}, fmt.Errorf("%w: unexpected status %q", ErrRejected, resp.Status)
	}
	return MergeResult{CommitID: resp.CommitID}, nil
}

func (c *HTTPClient) repoURL(repo string, segments ...string) string {
	parts := make([]string, 0, len(segments)+2)
	parts = append(parts, "repos", url.PathEscape(repo))
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return c.baseURL + "/" + strings.Join(parts, "/")
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
			rejected:   method == http.MethodPost && isClientError(resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// isClientError reports a 4xx status. The service refused the request, so the
// merge was not applied. A 5xx may come from a proxy after the merge landed.
func isClientError(code int) bool {
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError
}
