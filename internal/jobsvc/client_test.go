package jobsvc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"scribeflow/internal/domain"
	"scribeflow/internal/session"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	ReqID  string
	Body   string
}

type fakeService struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	fs := &fakeService{routes: map[string]func(http.ResponseWriter, *http.Request){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.requests = append(fs.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Auth:   r.Header.Get("Authorization"),
			ReqID:  r.Header.Get("X-Request-ID"),
			Body:   string(body),
		})
		handler := fs.routes[r.Method+" "+r.URL.Path]
		fs.mu.Unlock()
		if handler == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (f *fakeService) handleJSON(route string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeService) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	client, err := NewClient(Options{BaseURL: baseURL, Session: session.New(token)})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSubmitSendsPayloadAndBearer(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("POST /api/v1/generate", http.StatusAccepted, `{"job_id":"abc123"}`)
	client := newTestClient(t, srv.URL, "tok-1")

	jobID, err := client.Submit(context.Background(), domain.GenerationRequest{Topic: " Edge computing ", Tone: "technical"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if jobID != "abc123" {
		t.Fatalf("job id = %q, want abc123", jobID)
	}
	reqs := fs.recorded()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].Auth != "Bearer tok-1" {
		t.Fatalf("authorization = %q", reqs[0].Auth)
	}
	if reqs[0].ReqID == "" {
		t.Fatalf("expected X-Request-ID header")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(reqs[0].Body), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["topic"] != "Edge computing" || payload["tone"] != "Technical" {
		t.Fatalf("payload = %v", payload)
	}
	if _, ok := payload["as_of"]; ok {
		t.Fatalf("as_of should be omitted when empty")
	}
}

func TestSubmitWithoutTokenSendsNoAuthorization(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("POST /api/v1/generate", http.StatusAccepted, `{"job_id":"j1"}`)
	client := newTestClient(t, srv.URL, "")

	if _, err := client.Submit(context.Background(), domain.GenerationRequest{Topic: "x"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := fs.recorded()[0].Auth; got != "" {
		t.Fatalf("authorization = %q, want empty", got)
	}
}

func TestSubmitEmptyJobID(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("POST /api/v1/generate", http.StatusAccepted, `{"job_id":"  "}`)
	client := newTestClient(t, srv.URL, "t")

	_, err := client.Submit(context.Background(), domain.GenerationRequest{Topic: "x"})
	if !errors.Is(err, ErrEmptyJobID) {
		t.Fatalf("err = %v, want ErrEmptyJobID", err)
	}
}

func TestSubmitErrorDetails(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantIs     error
	}{
		{
			name:       "quota",
			status:     http.StatusForbidden,
			body:       `{"detail":"Free tier limit reached. Please upgrade."}`,
			wantDetail: "Free tier limit reached. Please upgrade.",
			wantIs:     domain.ErrForbidden,
		},
		{
			name:       "validation",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail":[{"loc":["body","topic"],"msg":"field required","type":"missing"}]}`,
			wantDetail: "topic: field required",
		},
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"detail":"Could not validate credentials"}`,
			wantDetail: "Could not validate credentials",
			wantIs:     domain.ErrUnauthorized,
		},
		{
			name:   "html body",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs, srv := newFakeService(t)
			fs.handleJSON("POST /api/v1/generate", tc.status, tc.body)
			client := newTestClient(t, srv.URL, "t")

			_, err := client.Submit(context.Background(), domain.GenerationRequest{Topic: "x"})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", apiErr.StatusCode, tc.status)
			}
			if apiErr.Detail != tc.wantDetail {
				t.Fatalf("detail = %q, want %q", apiErr.Detail, tc.wantDetail)
			}
			if tc.wantIs != nil && !errors.Is(err, tc.wantIs) {
				t.Fatalf("errors.Is(%v) = false", tc.wantIs)
			}
		})
	}
}

func TestStatusNormalisesSnapshot(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantStatus domain.JobStatus
		wantResult bool
		wantError  string
	}{
		{
			name:       "processing drops result fields",
			body:       `{"job_id":"j1","status":"processing","blog_title":"early","download_url":"/static/blogs/x.md"}`,
			wantStatus: domain.JobStatusProcessing,
		},
		{
			name:       "failed without reason",
			body:       `{"job_id":"j1","status":"failed","error":null}`,
			wantStatus: domain.JobStatusFailed,
			wantError:  domain.DefaultFailureReason,
		},
		{
			name:       "failed with reason",
			body:       `{"job_id":"j1","status":"failed","error":"rate limited"}`,
			wantStatus: domain.JobStatusFailed,
			wantError:  "rate limited",
		},
		{
			name:       "completed",
			body:       `{"job_id":"j1","status":"completed","blog_title":"Edge","download_url":"/static/blogs/edge.md","images":["/static/images/a.png"],"error":"ignored"}`,
			wantStatus: domain.JobStatusCompleted,
			wantResult: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs, srv := newFakeService(t)
			fs.handleJSON("GET /api/v1/status/j1", http.StatusOK, tc.body)
			client := newTestClient(t, srv.URL, "t")

			job, err := client.Status(context.Background(), "j1")
			if err != nil {
				t.Fatalf("status: %v", err)
			}
			if job.Status != tc.wantStatus {
				t.Fatalf("status = %q, want %q", job.Status, tc.wantStatus)
			}
			if (job.Result != nil) != tc.wantResult {
				t.Fatalf("result present = %v, want %v", job.Result != nil, tc.wantResult)
			}
			if job.Error != tc.wantError {
				t.Fatalf("error = %q, want %q", job.Error, tc.wantError)
			}
		})
	}
}

func TestStatusDecodesResultDetails(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("GET /api/v1/status/j2", http.StatusOK, `{
		"status":"completed",
		"blog_title":"Edge computing",
		"download_url":"/static/blogs/edge_computing.md",
		"images":[],
		"plan":{"blog_title":"Edge computing","audience":"engineers","tone":"Technical","blog_kind":"explainer","tasks":[{"id":1,"title":"Intro","goal":"set context","bullets":["a"],"target_words":200}]},
		"evidence":[{"title":"Report","url":"https://example.com/r","snippet":"s","source":"tavily"}],
		"meta_description":"What edge computing is.",
		"keywords":"edge, latency , ,iot"
	}`)
	client := newTestClient(t, srv.URL, "t")

	job, err := client.Status(context.Background(), "j2")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if job.ID != "j2" {
		t.Fatalf("id = %q, want j2 (filled from request)", job.ID)
	}
	res := job.Result
	if res == nil || res.Title != "Edge computing" || res.DownloadURL != "/static/blogs/edge_computing.md" {
		t.Fatalf("result = %+v", res)
	}
	if res.Plan == nil || len(res.Plan.Tasks) != 1 || res.Plan.Tasks[0].TargetWords != 200 {
		t.Fatalf("plan = %+v", res.Plan)
	}
	if len(res.Evidence) != 1 || res.Evidence[0].URL != "https://example.com/r" {
		t.Fatalf("evidence = %+v", res.Evidence)
	}
	want := []string{"edge", "latency", "iot"}
	if strings.Join(res.SEO.Keywords, "|") != strings.Join(want, "|") {
		t.Fatalf("keywords = %v, want %v", res.SEO.Keywords, want)
	}
}

func TestStatusKeywordArrayAndBadPlan(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("GET /api/v1/status/j3", http.StatusOK,
		`{"job_id":"j3","status":"completed","download_url":"/f.md","plan":"not-an-object","keywords":["go"," chi "]}`)
	client := newTestClient(t, srv.URL, "t")

	job, err := client.Status(context.Background(), "j3")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if job.Result.Plan != nil {
		t.Fatalf("undecodable plan should be dropped")
	}
	if strings.Join(job.Result.SEO.Keywords, ",") != "go,chi" {
		t.Fatalf("keywords = %v", job.Result.SEO.Keywords)
	}
}

func TestStatusUnknownValue(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("GET /api/v1/status/j4", http.StatusOK, `{"job_id":"j4","status":"exploded"}`)
	client := newTestClient(t, srv.URL, "t")

	_, err := client.Status(context.Background(), "j4")
	if !errors.Is(err, domain.ErrUnknownStatus) {
		t.Fatalf("err = %v, want ErrUnknownStatus", err)
	}
}

func TestStatusNotFound(t *testing.T) {
	_, srv := newFakeService(t)
	client := newTestClient(t, srv.URL, "t")

	_, err := client.Status(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestArtifactRelativeURL(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.mu.Lock()
	fs.routes["GET /files/abc123.md"] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		_, _ = w.Write([]byte("# Edge computing\n"))
	}
	fs.mu.Unlock()
	client := newTestClient(t, srv.URL, "tok")

	body, err := client.Artifact(context.Background(), "/files/abc123.md")
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if body != "# Edge computing\n" {
		t.Fatalf("body = %q", body)
	}
	if got := fs.recorded()[0].Auth; got != "Bearer tok" {
		t.Fatalf("authorization = %q", got)
	}
}

func TestDownloadForeignHostHasNoBearer(t *testing.T) {
	_, api := newFakeService(t)
	cdn, cdnSrv := newFakeService(t)
	cdn.mu.Lock()
	cdn.routes["GET /img/a.png"] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}
	cdn.mu.Unlock()
	client := newTestClient(t, api.URL, "secret")

	data, contentType, err := client.Download(context.Background(), cdnSrv.URL+"/img/a.png?sig=1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(data) != 4 || contentType != "image/png" {
		t.Fatalf("data = %v content-type = %q", data, contentType)
	}
	if got := cdn.recorded()[0].Auth; got != "" {
		t.Fatalf("foreign host received authorization %q", got)
	}
}

func TestDownloadRejectsUnsupportedScheme(t *testing.T) {
	client := newTestClient(t, "http://localhost:8000", "")
	if _, _, err := client.Download(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatalf("expected error for file scheme")
	}
	if _, _, err := client.Download(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty reference")
	}
}

func TestAccountAndLogin(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("POST /api/v1/auth/send-otp", http.StatusOK, `{"message":"OTP sent successfully."}`)
	fs.handleJSON("POST /api/v1/auth/verify-otp", http.StatusOK, `{"access_token":"jwt-1","token_type":"bearer"}`)
	fs.handleJSON("GET /api/v1/auth/me", http.StatusOK,
		`{"id":7,"email":"a@b.c","full_name":null,"credits_left":2,"is_premium":false,"devto_api_key":"k"}`)
	client := newTestClient(t, srv.URL, "")

	ctx := context.Background()
	if err := client.SendOTP(ctx, "a@b.c"); err != nil {
		t.Fatalf("send otp: %v", err)
	}
	token, err := client.VerifyOTP(ctx, "a@b.c", "123456")
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	if token != "jwt-1" {
		t.Fatalf("token = %q", token)
	}
	client.Session().Login(token)

	acct, err := client.Account(ctx)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.ID != 7 || acct.CreditsLeft != 2 || !acct.DevtoConnected || acct.FullName != "" {
		t.Fatalf("account = %+v", acct)
	}
	reqs := fs.recorded()
	if reqs[len(reqs)-1].Auth != "Bearer jwt-1" {
		t.Fatalf("me request authorization = %q", reqs[len(reqs)-1].Auth)
	}
}

func TestVerifyOTPInvalid(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("POST /api/v1/auth/verify-otp", http.StatusBadRequest, `{"detail":"Invalid or expired OTP."}`)
	client := newTestClient(t, srv.URL, "")

	_, err := client.VerifyOTP(context.Background(), "a@b.c", "000000")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "Invalid or expired OTP." {
		t.Fatalf("err = %v", err)
	}
}

func TestHistorySkipsUndecodableEntries(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("GET /api/v1/history", http.StatusOK,
		`[{"job_id":"a","status":"completed","download_url":"/a.md"},{"job_id":"b","status":"weird"},{"job_id":"c","status":"queued"}]`)
	client := newTestClient(t, srv.URL, "t")

	jobs, err := client.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "a" || jobs[1].ID != "c" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestUpdatePublicAndPublish(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("PATCH /api/v1/blogs/j1", http.StatusOK, `{"status":"success"}`)
	fs.handleJSON("GET /api/v1/public/blogs/j1", http.StatusOK,
		`{"title":"T","content":"# T","meta_description":"m","author":"ScribeFlow User"}`)
	fs.handleJSON("POST /api/v1/publish/devto/j1", http.StatusOK,
		`{"status":"success","message":"Published to Dev.to","url":"https://dev.to/x"}`)
	client := newTestClient(t, srv.URL, "t")
	ctx := context.Background()

	if err := client.UpdateContent(ctx, "j1", "   "); !errors.Is(err, domain.ErrMissingContent) {
		t.Fatalf("blank content err = %v", err)
	}
	if err := client.UpdateContent(ctx, "j1", "# New"); err != nil {
		t.Fatalf("update: %v", err)
	}
	blog, err := client.PublicBlog(ctx, "j1")
	if err != nil || blog.Author != "ScribeFlow User" {
		t.Fatalf("public blog = %+v err = %v", blog, err)
	}
	receipt, err := client.PublishDevTo(ctx, "j1")
	if err != nil || receipt.URL != "https://dev.to/x" {
		t.Fatalf("receipt = %+v err = %v", receipt, err)
	}
	// blank content never reached the server
	for _, r := range fs.recorded() {
		if r.Method == http.MethodPatch && !strings.Contains(r.Body, "# New") {
			t.Fatalf("unexpected patch body %q", r.Body)
		}
	}
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	if _, err := NewClient(Options{BaseURL: "not a url"}); err == nil {
		t.Fatalf("expected error")
	}
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("default client: %v", err)
	}
	if client.BaseURL() != defaultBaseURL {
		t.Fatalf("base = %q", client.BaseURL())
	}
}

func TestUpdateProfileSendsOnlySetFields(t *testing.T) {
	fs, srv := newFakeService(t)
	fs.handleJSON("PATCH /api/v1/auth/profile", http.StatusOK,
		`{"id":7,"email":"a@b.co","full_name":null,"credits_left":2,"devto_api_key":"********"}`)
	client := newTestClient(t, srv.URL, "tok")

	key := "dk-123"
	acct, err := client.UpdateProfile(context.Background(), ProfileUpdate{DevtoAPIKey: &key})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if !acct.DevtoConnected || acct.ID != 7 {
		t.Fatalf("unexpected account: %+v", acct)
	}
	reqs := fs.recorded()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(reqs[0].Body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := body["full_name"]; ok {
		t.Fatalf("full_name should be omitted: %s", reqs[0].Body)
	}
	if body["devto_api_key"] != "dk-123" {
		t.Fatalf("unexpected body: %s", reqs[0].Body)
	}

	if _, err := client.UpdateProfile(context.Background(), ProfileUpdate{}); err == nil {
		t.Fatalf("expected error for empty update")
	}
}
