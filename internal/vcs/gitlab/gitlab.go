package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sanix-darker/mrnotes/internal/vcs"
	gl "gitlab.com/gitlab-org/api/client-go"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://gitlab.com"
	defaultPerPage = 50
	defaultTimeout = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	ProjectID string
	Token     string
	PerPage   int
	Timeout   time.Duration
	Retry     vcs.RetryConfig
	Logger    *zap.Logger
}

// Client reads merge requests, discussions and raw files of one GitLab project.
type Client struct {
	api     *gl.Client
	project string
	perPage int
	retry   vcs.RetryConfig
	log     *zap.Logger
}

var _ vcs.Client = (*Client)(nil)

// New creates a Client. Retries are handled by vcs.WithRetry, so the
// retrying transport of client-go is switched off.
func New(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("gitlab: token is required")
	}
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("gitlab: project id is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	api, err := gl.NewClient(opts.Token,
		gl.WithBaseURL(baseURL+"/api/v4"),
		gl.WithHTTPClient(&http.Client{Timeout: timeout}),
		gl.WithoutRetries(),
		gl.WithRequestLogHook(func(_ retryablehttp.Logger, r *http.Request, attempt int) {
			log.Debug("gitlab request",
				zap.String("method", r.Method),
				zap.String("url", r.URL.String()),
				zap.Int("attempt", attempt))
		}),
		gl.WithResponseLogHook(func(_ retryablehttp.Logger, r *http.Response) {
			log.Debug("gitlab response",
				zap.Int("status", r.StatusCode),
				zap.String("url", r.Request.URL.String()),
				zap.String("next_page", r.Header.Get("X-Next-Page")))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("gitlab: failed to create client: %w", err)
	}

	return &Client{
		api:     api,
		project: opts.ProjectID,
		perPage: perPage,
		retry:   opts.Retry,
		log:     log,
	}, nil
}

// ListMergeRequests returns all merge requests of the project carrying label,
// in any state. Merge requests repeated across pages are returned once.
func (c *Client) ListMergeRequests(ctx context.Context, label string) ([]vcs.MergeRequest, error) {
	opt := &gl.ListProjectMergeRequestsOptions{State: gl.Ptr("all")}
	if label != "" {
		opt.Labels = &gl.LabelOptions{label}
	}

	seen := make(map[int]bool)
	var result []vcs.MergeRequest
	err := paginate(ctx, c, "list merge requests", 0, func(page int) (int, *gl.Response, error) {
		opt.Page = page
		opt.PerPage = c.perPage
		mrs, resp, err := c.api.MergeRequests.ListProjectMergeRequests(c.project, opt, gl.WithContext(ctx))
		if err != nil {
			return 0, resp, err
		}
		var batch []vcs.MergeRequest
		for _, m := range mrs {
			if m == nil || m.IID <= 0 {
				id := ""
				if m != nil {
					id = strconv.Itoa(m.ID)
				}
				return 0, resp, &vcs.ParseError{Kind: "merge request", ID: id, Field: "iid"}
			}
			batch = append(batch, vcs.MergeRequest{
				ID:     m.ID,
				IID:    m.IID,
				Title:  m.Title,
				WebURL: m.WebURL,
				SHA:    m.SHA,
				Labels: m.Labels,
			})
		}
		for _, mr := range batch {
			if seen[mr.IID] {
				continue
			}
			seen[mr.IID] = true
			result = append(result, mr)
		}
		return len(mrs), resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListNotes returns every note of every discussion of mr, system notes included.
func (c *Client) ListNotes(ctx context.Context, mr vcs.MergeRequest) ([]vcs.Comment, error) {
	opt := &gl.ListMergeRequestDiscussionsOptions{}

	var result []vcs.Comment
	err := paginate(ctx, c, "list discussions", mr.IID, func(page int) (int, *gl.Response, error) {
		opt.Page = page
		opt.PerPage = c.perPage
		discussions, resp, err := c.api.Discussions.ListMergeRequestDiscussions(c.project, mr.IID, opt, gl.WithContext(ctx))
		if err != nil {
			return 0, resp, err
		}
		var batch []vcs.Comment
		for _, d := range discussions {
			if d == nil {
				continue
			}
			for _, n := range d.Notes {
				comment, err := toComment(mr.IID, d.ID, n)
				if err != nil {
					return 0, resp, err
				}
				batch = append(batch, comment)
			}
		}
		result = append(result, batch...)
		return len(discussions), resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RawFile returns the content of path at ref.
func (c *Client) RawFile(ctx context.Context, ref, path string) ([]byte, error) {
	attempts := 0
	data, err := vcs.WithRetry(ctx, c.retry, func() ([]byte, error) {
		attempts++
		b, resp, err := c.api.RepositoryFiles.GetRawFile(c.project, path, &gl.GetRawFileOptions{Ref: gl.Ptr(ref)}, gl.WithContext(ctx))
		if err != nil {
			return nil, classify(ctx, "get raw file", resp, err)
		}
		return b, nil
	})
	if err != nil {
		return nil, finish(ctx, "get raw file "+path, 0, attempts, err)
	}
	return data, nil
}

// paginate calls fetch for page 1, 2, ... until the collection is exhausted.
// fetch returns the number of items on the page. The loop follows X-Next-Page;
// when GitLab omits the header (large collections) it advances while pages are full.
func paginate(ctx context.Context, c *Client, op string, mrIID int, fetch func(page int) (int, *gl.Response, error)) error {
	type pageResult struct {
		n    int
		resp *gl.Response
	}

	page := 1
	for {
		attempts := 0
		res, err := vcs.WithRetry(ctx, c.retry, func() (pageResult, error) {
			attempts++
			n, resp, err := fetch(page)
			if err != nil {
				return pageResult{}, classify(ctx, op, resp, err)
			}
			return pageResult{n: n, resp: resp}, nil
		})
		if err != nil {
			return finish(ctx, op, mrIID, attempts, err)
		}

		if res.n == 0 {
			return nil
		}

		next := 0
		if res.resp != nil && hasHeader(res.resp, "X-Next-Page") {
			next = res.resp.NextPage
		} else if res.n >= c.perPage {
			next = page + 1
		}
		if next <= page {
			return nil
		}
		c.log.Debug("gitlab next page", zap.String("op", op), zap.Int("mr_iid", mrIID), zap.Int("page", next))
		page = next
	}
}

func hasHeader(resp *gl.Response, key string) bool {
	if resp.Response == nil {
		return false
	}
	_, ok := resp.Header[http.CanonicalHeaderKey(key)]
	return ok
}

// finish turns the last error of a retried call into the error returned to callers.
// Authentication failures and cancellation pass through unchanged.
func finish(ctx context.Context, op string, mrIID, attempts int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var authErr *vcs.AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return &vcs.FetchError{Op: op, MRIID: mrIID, Attempts: attempts, Cause: err}
}

// classify maps a client-go error to the vcs error taxonomy.
func classify(ctx context.Context, op string, resp *gl.Response, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var pe *vcs.ParseError
	if errors.As(err, &pe) {
		return err
	}

	status := 0
	var errResp *gl.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		status = errResp.Response.StatusCode
	} else if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &vcs.AuthError{StatusCode: status, Cause: err}
	case status == http.StatusTooManyRequests:
		apiErr := &vcs.APIError{Code: vcs.ErrCodeRateLimit, Op: op, StatusCode: status, Cause: err}
		if resp != nil && resp.Response != nil {
			apiErr.RetryAfter = retryAfter(resp.Header.Get("Retry-After"))
		}
		return apiErr
	case status >= 500:
		return &vcs.APIError{Code: vcs.ErrCodeUnavailable, Op: op, StatusCode: status, Cause: err}
	case status == http.StatusNotFound:
		return &vcs.APIError{Code: vcs.ErrCodeNotFound, Op: op, StatusCode: status, Cause: err}
	case status >= 400:
		return &vcs.APIError{Code: vcs.ErrCodeInvalidRequest, Op: op, StatusCode: status, Cause: err}
	case status >= 200 && status < 300:
		// The request succeeded but the payload could not be decoded.
		return &vcs.APIError{Code: vcs.ErrCodeInvalidResponse, Op: op, StatusCode: status, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &vcs.APIError{Code: vcs.ErrCodeTimeout, Op: op, Cause: err}
	}
	return &vcs.APIError{Code: vcs.ErrCodeUnavailable, Op: op, StatusCode: status, Cause: err}
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func toComment(mrIID int, discussionID string, n *gl.Note) (vcs.Comment, error) {
	if n == nil || n.ID <= 0 {
		return vcs.Comment{}, &vcs.ParseError{Kind: "note", ID: "in discussion " + discussionID, Field: "id"}
	}
	id := strconv.Itoa(n.ID)
	author := n.Author.Name
	if author == "" {
		author = n.Author.Username
	}
	if author == "" {
		return vcs.Comment{}, &vcs.ParseError{Kind: "note", ID: id, Field: "author"}
	}
	if n.CreatedAt == nil || n.CreatedAt.IsZero() {
		return vcs.Comment{}, &vcs.ParseError{Kind: "note", ID: id, Field: "created_at"}
	}

	comment := vcs.Comment{
		ID:           n.ID,
		DiscussionID: discussionID,
		MRIID:        mrIID,
		Author:       author,
		Body:         n.Body,
		CreatedAt:    n.CreatedAt.UTC(),
		System:       n.System,
	}

	if pos := n.Position; pos != nil {
		comment.FilePath = pos.NewPath
		if comment.FilePath == "" {
			comment.FilePath = pos.OldPath
		}
		comment.Line = pos.NewLine
		comment.CommitSHA = pos.HeadSHA
		if comment.Line <= 0 && pos.OldLine > 0 {
			// Removed line: it only exists in the base revision.
			comment.Line = pos.OldLine
			comment.CommitSHA = pos.BaseSHA
		}
		if comment.Line < 0 {
			comment.Line = 0
		}
	}
	return comment, nil
}
