// Package jobsvc is the HTTP client for the Job Execution Service: the
// backend that accepts generation requests, reports job status and serves
// the generated files.
package jobsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribeflow/internal/domain"
	"scribeflow/internal/infra"
	"scribeflow/internal/session"
)

const (
	defaultBaseURL = "http://localhost:8000"
	apiPrefix      = "/api/v1"

	// maxArtifactBytes bounds what we are willing to buffer for one file.
	maxArtifactBytes = 32 << 20
)

// ErrEmptyJobID indicates the service accepted a submission without
// returning an identifier.
var ErrEmptyJobID = errors.New("jobsvc: empty job id in response")

// Options configures the job service client.
type Options struct {
	BaseURL        string
	Session        *session.Session
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the job service. Every request carries the
// bearer token of the session it was built with.
type Client struct {
	baseURL    *url.URL
	session    *session.Session
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		raw = defaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("jobsvc: invalid base url %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	sess := opts.Session
	if sess == nil {
		sess = session.New("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		baseURL:    base,
		session:    sess,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Session returns the session whose token the client sends.
func (c *Client) Session() *session.Session {
	return c.session
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Submit starts a generation job and returns its id.
func (c *Client) Submit(ctx context.Context, req domain.GenerationRequest) (string, error) {
	req = req.Normalize()
	payload := submitRequest{Topic: req.Topic, Tone: string(req.Tone), AsOf: req.AsOf}
	var out submitResponse
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/generate", payload, &out); err != nil {
		return "", err
	}
	jobID := strings.TrimSpace(out.JobID)
	if jobID == "" {
		return "", ErrEmptyJobID
	}
	c.logger.Debug().Str("job_id", jobID).Str("tone", payload.Tone).Msg("jobsvc: job submitted")
	return jobID, nil
}

// Status fetches the current snapshot of a job.
func (c *Client) Status(ctx context.Context, jobID string) (domain.Job, error) {
	var out statusResponse
	if err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/status/"+url.PathEscape(jobID), nil, &out); err != nil {
		return domain.Job{}, err
	}
	return c.toJob(jobID, out)
}

// Artifact downloads the markdown body a completed job points at.
func (c *Client) Artifact(ctx context.Context, downloadURL string) (string, error) {
	data, _, err := c.Download(ctx, downloadURL)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Download fetches a service-relative (or absolute) file reference and
// returns its bytes and content type.
func (c *Client) Download(ctx context.Context, ref string) ([]byte, string, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("jobsvc: build download request: %w", err)
	}
	// Files on other hosts (CDNs) must not see our credential.
	if target.Host == c.baseURL.Host {
		c.session.Authorize(req)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("jobsvc: download %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, "", readAPIError(resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
	if err != nil {
		return nil, "", fmt.Errorf("jobsvc: read download: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Account returns the authenticated account, including its remaining credits.
func (c *Client) Account(ctx context.Context) (domain.Account, error) {
	var out accountResponse
	if err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/auth/me", nil, &out); err != nil {
		return domain.Account{}, err
	}
	return out.toAccount(), nil
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// out of the request and keep their stored value.
type ProfileUpdate struct {
	FullName    *string `json:"full_name,omitempty"`
	DevtoAPIKey *string `json:"devto_api_key,omitempty"`
}

// UpdateProfile edits the authenticated account and returns it.
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (domain.Account, error) {
	if upd.FullName == nil && upd.DevtoAPIKey == nil {
		return domain.Account{}, errors.New("jobsvc: nothing to update")
	}
	var out accountResponse
	if err := c.doJSON(ctx, http.MethodPatch, apiPrefix+"/auth/profile", upd, &out); err != nil {
		return domain.Account{}, err
	}
	return out.toAccount(), nil
}

// SendOTP asks the service to email a one-time login code.
func (c *Client) SendOTP(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return errors.New("jobsvc: identifier is required")
	}
	return c.doJSON(ctx, http.MethodPost, apiPrefix+"/auth/send-otp", otpRequest{Identifier: identifier}, nil)
}

// VerifyOTP exchanges a one-time code for an access token. The token is not
// installed on the session; the caller decides whether to keep it.
func (c *Client) VerifyOTP(ctx context.Context, identifier, code string) (string, error) {
	payload := otpRequest{Identifier: strings.TrimSpace(identifier), Code: strings.TrimSpace(code)}
	if payload.Identifier == "" || payload.Code == "" {
		return "", errors.New("jobsvc: identifier and code are required")
	}
	var out tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/auth/verify-otp", payload, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", errors.New("jobsvc: empty access token in response")
	}
	return out.AccessToken, nil
}

// History lists the account's jobs, newest first.
func (c *Client) History(ctx context.Context) ([]domain.Job, error) {
	var out []statusResponse
	if err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/history", nil, &out); err != nil {
		return nil, err
	}
	jobs := make([]domain.Job, 0, len(out))
	for _, item := range out {
		job, err := c.toJob(item.JobID, item)
		if err != nil {
			c.logger.Warn().Err(err).Str("job_id", item.JobID).Msg("jobsvc: skipping history entry")
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// UpdateContent replaces the markdown of a completed job.
func (c *Client) UpdateContent(ctx context.Context, jobID, content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.ErrMissingContent
	}
	return c.doJSON(ctx, http.MethodPatch, apiPrefix+"/blogs/"+url.PathEscape(jobID), updateContentRequest{Content: content}, nil)
}

// PublicBlog fetches the shareable read-only view of a completed job.
func (c *Client) PublicBlog(ctx context.Context, jobID string) (domain.PublicBlog, error) {
	var out publicBlogResponse
	if err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/public/blogs/"+url.PathEscape(jobID), nil, &out); err != nil {
		return domain.PublicBlog{}, err
	}
	return domain.PublicBlog{
		Title:           out.Title,
		Content:         out.Content,
		MetaDescription: out.MetaDescription,
		Author:          out.Author,
	}, nil
}

// PublishDevTo pushes a completed job to Dev.to using the key stored in the
// account profile.
func (c *Client) PublishDevTo(ctx context.Context, jobID string) (domain.PublishReceipt, error) {
	var out publishResponse
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/publish/devto/"+url.PathEscape(jobID), nil, &out); err != nil {
		return domain.PublishReceipt{}, err
	}
	return domain.PublishReceipt{Status: out.Status, Message: out.Message, URL: out.URL}, nil
}

// Health checks that the service is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("jobsvc: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("jobsvc: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	c.session.Authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jobsvc: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("jobsvc: decode %s response: %w", path, err)
	}
	return nil
}

// resolve turns a download reference into a URL. Relative references hang
// off the service root.
func (c *Client) resolve(ref string) (*url.URL, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("jobsvc: empty download url")
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("jobsvc: invalid download url %q: %w", ref, err)
	}
	if parsed.IsAbs() {
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("jobsvc: unsupported download scheme %q", parsed.Scheme)
		}
		return parsed, nil
	}
	target := c.baseURL.JoinPath(parsed.Path)
	target.RawQuery = parsed.RawQuery
	return target, nil
}

func (c *Client) toJob(requestedID string, r statusResponse) (domain.Job, error) {
	status, err := domain.ParseJobStatus(r.Status)
	if err != nil {
		return domain.Job{}, fmt.Errorf("jobsvc: job %s reported %q: %w", requestedID, r.Status, err)
	}
	id := strings.TrimSpace(r.JobID)
	if id == "" {
		id = requestedID
	}
	job := domain.Job{ID: id, Status: status}
	switch status {
	case domain.JobStatusCompleted:
		job.Result = &domain.Result{
			Title:       strings.TrimSpace(r.BlogTitle),
			DownloadURL: strings.TrimSpace(r.DownloadURL),
			Images:      r.Images,
			Plan:        c.decodePlan(id, r.Plan),
			Evidence:    c.decodeEvidence(id, r.Evidence),
			SEO: domain.SEO{
				MetaDescription: strings.TrimSpace(r.MetaDescription),
				Keywords:        []string(r.Keywords),
			},
		}
	case domain.JobStatusFailed:
		job.Error = strings.TrimSpace(r.Error)
		if job.Error == "" {
			job.Error = domain.DefaultFailureReason
		}
	}
	return job, nil
}

// The plan and evidence are free-form on the service side; a shape we do not
// understand is dropped rather than failing the whole snapshot.
func (c *Client) decodePlan(jobID string, raw json.RawMessage) *domain.Plan {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var plan domain.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("jobsvc: undecodable plan")
		return nil
	}
	return &plan
}

func (c *Client) decodeEvidence(jobID string, raw json.RawMessage) []domain.Evidence {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var evidence []domain.Evidence
	if err := json.Unmarshal(raw, &evidence); err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("jobsvc: undecodable evidence")
		return nil
	}
	return evidence
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var decoded errorResponse
	if err := json.Unmarshal(raw, &decoded); err == nil {
		apiErr.Detail = decoded.message()
	}
	return apiErr
}
