package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"scribeflow/internal/domain"
	"scribeflow/internal/generation"
	"scribeflow/internal/http/handlers"
	"scribeflow/internal/jobengine"
	"scribeflow/internal/jobsvc"
	"scribeflow/internal/session"
	"scribeflow/internal/storage"
)

const testOTP = "246810"

type testEnv struct {
	srv    *httptest.Server
	engine *jobengine.Engine
	clock  *clockwork.FakeClock
}

func newTestEnv(t *testing.T, credits, ratePerMin int) *testEnv {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	clock := clockwork.NewFakeClock()
	engine, err := jobengine.New(jobengine.Options{
		Files:       files,
		Clock:       clock,
		FreeCredits: credits,
		DevOTPCode:  testOTP,
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	app := handlers.NewApp(engine, files, zerolog.Nop(), "test-secret", time.Hour, clock)
	srv := httptest.NewServer(NewRouter(app, Options{CORSOrigins: []string{"*"}, RateLimitPerMin: ratePerMin}))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, engine: engine, clock: clock}
}

func (e *testEnv) login(t *testing.T, email string) *jobsvc.Client {
	t.Helper()
	client, err := jobsvc.NewClient(jobsvc.Options{BaseURL: e.srv.URL, Session: session.New("")})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ctx := context.Background()
	if err := client.SendOTP(ctx, email); err != nil {
		t.Fatalf("send otp: %v", err)
	}
	token, err := client.VerifyOTP(ctx, email, testOTP)
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	client.Session().Login(token)
	return client
}

func decodeDetail(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if s, ok := body.Detail.(string); ok {
		return s
	}
	raw, _ := json.Marshal(body.Detail)
	return string(raw)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 3, 5)
	resp, err := http.Get(env.srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" || body["version"] != "1.0.0" {
		t.Fatalf("unexpected health: %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, 3, 5)
	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/generate"},
		{http.MethodGet, "/api/v1/history"},
		{http.MethodPatch, "/api/v1/blogs/abc"},
		{http.MethodPost, "/api/v1/publish/devto/abc"},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, env.srv.URL+tc.path, strings.NewReader(`{}`))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		detail := decodeDetail(t, resp)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized || detail != "Not authenticated" {
			t.Fatalf("%s %s: got %d %q", tc.method, tc.path, resp.StatusCode, detail)
		}
	}
}

func TestInvalidOTP(t *testing.T) {
	env := newTestEnv(t, 3, 5)
	client, _ := jobsvc.NewClient(jobsvc.Options{BaseURL: env.srv.URL})
	ctx := context.Background()
	if err := client.SendOTP(ctx, "a@b.co"); err != nil {
		t.Fatalf("send otp: %v", err)
	}
	_, err := client.VerifyOTP(ctx, "a@b.co", "000000")
	var apiErr *jobsvc.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || apiErr.Detail != "Invalid or expired OTP." {
		t.Fatalf("expected invalid otp error, got %v", err)
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	env := newTestEnv(t, 3, 5)
	client := env.login(t, "writer@example.com")
	ctx := context.Background()

	pollClock := clockwork.NewFakeClock()
	gen := generation.New(client, generation.Options{Clock: pollClock, Session: client.Session()})
	h, err := gen.Submit(ctx, domain.GenerationRequest{Topic: "edge computing", Tone: domain.ToneTechnical})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pollClock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("poll timer not armed: %v", err)
	}
	pollClock.Advance(generation.DefaultInterval)

	job, err := h.Wait(waitCtx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if job.Status != domain.JobStatusCompleted || job.Result == nil || job.Result.Title != "Edge Computing" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if len(job.Result.SEO.Keywords) != 2 {
		t.Fatalf("unexpected keywords: %v", job.Result.SEO.Keywords)
	}
	markdown, err := h.Artifact()
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if !strings.HasPrefix(markdown, "# Edge Computing\n") {
		t.Fatalf("unexpected markdown: %q", markdown)
	}

	img, contentType, err := client.Download(ctx, job.Result.Images[0])
	if err != nil {
		t.Fatalf("download image: %v", err)
	}
	if contentType != "image/png" || len(img) == 0 {
		t.Fatalf("unexpected image: %s %d bytes", contentType, len(img))
	}

	acct, err := client.Account(ctx)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.CreditsLeft != 2 {
		t.Fatalf("expected 2 credits left, got %d", acct.CreditsLeft)
	}

	history, err := client.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != h.JobID() {
		t.Fatalf("unexpected history: %+v", history)
	}

	if err := client.UpdateContent(ctx, h.JobID(), "# Edited\n"); err != nil {
		t.Fatalf("update content: %v", err)
	}
	blog, err := client.PublicBlog(ctx, h.JobID())
	if err != nil {
		t.Fatalf("public blog: %v", err)
	}
	if blog.Content != "# Edited\n" || blog.Title != "Edge Computing" {
		t.Fatalf("unexpected public blog: %+v", blog)
	}

	_, err = client.PublishDevTo(ctx, h.JobID())
	var apiErr *jobsvc.APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "Dev.to API key not found in profile." {
		t.Fatalf("expected missing key error, got %v", err)
	}
	key := "devto-key"
	if _, err := client.UpdateProfile(ctx, jobsvc.ProfileUpdate{DevtoAPIKey: &key}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	receipt, err := client.PublishDevTo(ctx, h.JobID())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if receipt.Message != "Blog posted successfully on Dev.to!" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	receipt, err = client.PublishDevTo(ctx, h.JobID())
	if err != nil || receipt.Message != "Blog updated successfully on Dev.to!" {
		t.Fatalf("unexpected second publish: %+v %v", receipt, err)
	}
}

func TestOtherUserCannotEditOrPublish(t *testing.T) {
	env := newTestEnv(t, 3, 5)
	owner := env.login(t, "owner@example.com")
	other := env.login(t, "other@example.com")
	ctx := context.Background()

	jobID, err := owner.Submit(ctx, domain.GenerationRequest{Topic: "caching"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := owner.Status(ctx, jobID); err != nil {
			t.Fatalf("status: %v", err)
		}
	}

	err = other.UpdateContent(ctx, jobID, "hijack")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden edit, got %v", err)
	}
	key := "k"
	if _, err := other.UpdateProfile(ctx, jobsvc.ProfileUpdate{DevtoAPIKey: &key}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	_, err = other.PublishDevTo(ctx, jobID)
	var apiErr *jobsvc.APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "Not authorized to publish this blog." {
		t.Fatalf("expected forbidden publish, got %v", err)
	}
}

func TestGenerateValidationAndQuota(t *testing.T) {
	env := newTestEnv(t, 1, 5)
	client := env.login(t, "q@example.com")
	token := client.Session().Token()

	post := func(body string) (int, string) {
		req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/v1/generate", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusAccepted {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, ""
		}
		return resp.StatusCode, decodeDetail(t, resp)
	}

	if code, detail := post(`{"topic":"   "}`); code != http.StatusUnprocessableEntity || !strings.Contains(detail, "topic") {
		t.Fatalf("blank topic: %d %s", code, detail)
	}
	if code, detail := post(`{"topic":"x","tone":"Sarcastic"}`); code != http.StatusUnprocessableEntity || !strings.Contains(detail, "tone") {
		t.Fatalf("bad tone: %d %s", code, detail)
	}
	if code, _ := post(`{"topic":"first","tone":"witty"}`); code != http.StatusAccepted {
		t.Fatalf("first submit: %d", code)
	}
	if code, detail := post(`{"topic":"second"}`); code != http.StatusForbidden || detail != "Free tier limit reached. Please upgrade." {
		t.Fatalf("quota: %d %s", code, detail)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	env := newTestEnv(t, 10, 2)
	client := env.login(t, "r@example.com")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := client.Submit(ctx, domain.GenerationRequest{Topic: "topic"}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	_, err := client.Submit(ctx, domain.GenerationRequest{Topic: "topic"})
	var apiErr *jobsvc.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}

	env.clock.Advance(time.Minute + time.Second)
	if _, err := client.Submit(ctx, domain.GenerationRequest{Topic: "topic"}); err != nil {
		t.Fatalf("submit after window: %v", err)
	}
}

func TestStatusAndPublicBlogNotFound(t *testing.T) {
	env := newTestEnv(t, 3, 5)
	client, _ := jobsvc.NewClient(jobsvc.Options{BaseURL: env.srv.URL})
	ctx := context.Background()

	if _, err := client.Status(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found status, got %v", err)
	}
	_, err := client.PublicBlog(ctx, "missing")
	var apiErr *jobsvc.APIError
	if !errors.As(err, &apiErr) || apiErr.Detail != "Blog not found or not ready" {
		t.Fatalf("expected public blog 404, got %v", err)
	}
}

func TestStaticRejectsUnknownPrefix(t *testing.T) {
	env := newTestEnv(t, 3, 5)
	for _, path := range []string{"/static/other/file.txt", "/static/blogs/missing.md", "/static/../go.mod"} {
		resp, err := http.Get(env.srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}
