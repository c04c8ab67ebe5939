// Package jobengine is an in-memory Job Execution Service. It keeps
// accounts, one-time login codes and generation jobs, and produces a
// synthetic article instead of running the AI pipeline so clients can be
// exercised end to end.
package jobengine

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"scribeflow/internal/domain"
	"scribeflow/internal/infra"
	"scribeflow/internal/storage"
)

const (
	otpTTL = 10 * time.Minute

	// FailMarker in a topic makes the job fail once it starts processing.
	FailMarker = "[fail]"
	// SimulatedFailure is the error reported for jobs carrying FailMarker.
	SimulatedFailure = "Simulated generation failure."

	publicAuthor = "ScribeFlow User"
)

// Options configures an Engine.
type Options struct {
	Files  *storage.FileStore
	Clock  clockwork.Clock
	Logger *infra.Logger
	// StageDuration is how long a job stays queued and then processing.
	// Zero advances one stage per status read.
	StageDuration time.Duration
	FreeCredits   int
	// DevOTPCode, when set, is issued instead of a random code.
	DevOTPCode string
}

// Engine is safe for concurrent use.
type Engine struct {
	files  *storage.FileStore
	clock  clockwork.Clock
	logger *infra.Logger
	stage  time.Duration
	free   int
	devOTP string

	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*account
	byEmail  map[string]int64
	otps     map[string]otpEntry
	jobs     map[string]*job
}

type account struct {
	domain.Account
	devtoKey string
}

type otpEntry struct {
	code    string
	expires time.Time
}

// ProfileUpdate carries the editable account fields. Nil leaves a field
// unchanged.
type ProfileUpdate struct {
	FullName    *string
	DevtoAPIKey *string
}

// New builds an engine. Files is required: generated articles are written
// there under blogs/ and images/.
func New(opts Options) (*Engine, error) {
	if opts.Files == nil {
		return nil, fmt.Errorf("jobengine: file store is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	if opts.StageDuration < 0 {
		opts.StageDuration = 0
	}
	if opts.FreeCredits < 0 {
		opts.FreeCredits = 0
	}
	return &Engine{
		files:    opts.Files,
		clock:    opts.Clock,
		logger:   opts.Logger,
		stage:    opts.StageDuration,
		free:     opts.FreeCredits,
		devOTP:   strings.TrimSpace(opts.DevOTPCode),
		accounts: make(map[int64]*account),
		byEmail:  make(map[string]int64),
		otps:     make(map[string]otpEntry),
		jobs:     make(map[string]*job),
	}, nil
}

// SendOTP issues a login code for identifier. Delivery is a log line.
func (e *Engine) SendOTP(_ context.Context, identifier string) error {
	identifier = normalizeIdentifier(identifier)
	if identifier == "" {
		return fmt.Errorf("jobengine: identifier is required")
	}
	code := e.devOTP
	if code == "" {
		n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
		if err != nil {
			return fmt.Errorf("jobengine: generate otp: %w", err)
		}
		code = fmt.Sprintf("%06d", n.Int64())
	}

	e.mu.Lock()
	e.otps[identifier] = otpEntry{code: code, expires: e.clock.Now().Add(otpTTL)}
	e.mu.Unlock()

	e.logger.Info().Str("identifier", identifier).Str("code", code).Msg("jobengine: otp issued")
	return nil
}

// VerifyOTP consumes a code and returns the account, creating it with the
// free credit allowance on first login.
func (e *Engine) VerifyOTP(_ context.Context, identifier, code string) (domain.Account, error) {
	identifier = normalizeIdentifier(identifier)
	code = strings.TrimSpace(code)

	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.otps[identifier]
	if !ok || entry.code != code || e.clock.Now().After(entry.expires) {
		return domain.Account{}, domain.ErrInvalidOTP
	}
	delete(e.otps, identifier)

	if id, ok := e.byEmail[identifier]; ok {
		return e.accounts[id].Account, nil
	}
	e.nextID++
	acct := &account{Account: domain.Account{
		ID:          e.nextID,
		Email:       identifier,
		CreditsLeft: e.free,
	}}
	e.accounts[acct.ID] = acct
	e.byEmail[identifier] = acct.ID
	e.logger.Info().Int64("user_id", acct.ID).Msg("jobengine: account created")
	return acct.Account, nil
}

// Account returns the account with id.
func (e *Engine) Account(_ context.Context, id int64) (domain.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, ok := e.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return acct.Account, nil
}

// UpdateProfile applies upd to the account with id.
func (e *Engine) UpdateProfile(_ context.Context, id int64, upd ProfileUpdate) (domain.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, ok := e.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	if upd.FullName != nil {
		acct.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.DevtoAPIKey != nil {
		acct.devtoKey = strings.TrimSpace(*upd.DevtoAPIKey)
		acct.DevtoConnected = acct.devtoKey != ""
	}
	return acct.Account, nil
}

// GrantCredits adds n credits to the account with id.
func (e *Engine) GrantCredits(_ context.Context, id int64, n int) (domain.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, ok := e.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	acct.CreditsLeft += n
	return acct.Account, nil
}

// Submit queues a job for the account and consumes one credit.
func (e *Engine) Submit(_ context.Context, userID int64, req domain.GenerationRequest) (string, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	acct, ok := e.accounts[userID]
	if !ok {
		return "", domain.ErrUnauthorized
	}
	if !acct.CanGenerate() {
		return "", domain.ErrQuotaExceeded
	}
	acct.CreditsLeft--

	now := e.clock.Now()
	j := &job{
		id:        uuid.NewString(),
		owner:     userID,
		topic:     req.Topic,
		tone:      req.Tone,
		asOf:      req.AsOf,
		status:    domain.JobStatusQueued,
		createdAt: now,
		changedAt: now,
	}
	e.jobs[j.id] = j
	e.logger.Info().
		Int64("user_id", userID).
		Str("job_id", j.id).
		Str("tone", string(req.Tone)).
		Msg("jobengine: job queued")
	return j.id, nil
}

// Status returns the current snapshot of a job, advancing it first.
func (e *Engine) Status(ctx context.Context, jobID string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[jobID]
	if !ok {
		return Snapshot{}, domain.ErrNotFound
	}
	e.advanceLocked(ctx, j)
	return j.snapshot(), nil
}

// History lists the account's jobs, newest first.
func (e *Engine) History(ctx context.Context, userID int64) ([]Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var owned []*job
	for _, j := range e.jobs {
		if j.owner == userID {
			owned = append(owned, j)
		}
	}
	sort.Slice(owned, func(a, b int) bool {
		if owned[a].createdAt.Equal(owned[b].createdAt) {
			return owned[a].id < owned[b].id
		}
		return owned[a].createdAt.After(owned[b].createdAt)
	})
	out := make([]Snapshot, 0, len(owned))
	for _, j := range owned {
		e.advanceLocked(ctx, j)
		out = append(out, j.snapshot())
	}
	return out, nil
}

// UpdateContent overwrites the stored article of a job the user owns.
// Admins may edit any job.
func (e *Engine) UpdateContent(ctx context.Context, userID int64, jobID, content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.ErrMissingContent
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	acct := e.accounts[userID]
	if j.owner != userID && (acct == nil || !acct.IsAdmin) {
		return domain.ErrForbidden
	}
	if j.markdownKey == "" {
		return domain.ErrNotCompleted
	}
	if _, err := e.files.Write(ctx, j.markdownKey, []byte(content)); err != nil {
		return fmt.Errorf("jobengine: save edit: %w", err)
	}
	j.changedAt = e.clock.Now()
	return nil
}

// PublicBlog returns the shareable view of a completed job.
func (e *Engine) PublicBlog(ctx context.Context, jobID string) (domain.PublicBlog, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[jobID]
	if !ok {
		return domain.PublicBlog{}, domain.ErrNotFound
	}
	e.advanceLocked(ctx, j)
	if j.status != domain.JobStatusCompleted {
		return domain.PublicBlog{}, domain.ErrNotCompleted
	}
	content, err := e.readContentLocked(ctx, j)
	if err != nil {
		return domain.PublicBlog{}, err
	}
	return domain.PublicBlog{
		Title:           j.title,
		Content:         content,
		MetaDescription: j.metaDescription,
		Author:          publicAuthor,
	}, nil
}

// PublishDevTo simulates pushing a completed job to Dev.to. The first call
// posts, later calls update the same article URL.
func (e *Engine) PublishDevTo(ctx context.Context, userID int64, jobID string) (domain.PublishReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, ok := e.accounts[userID]
	if !ok {
		return domain.PublishReceipt{}, domain.ErrUnauthorized
	}
	if acct.devtoKey == "" {
		return domain.PublishReceipt{}, ErrDevtoKeyMissing
	}
	j, ok := e.jobs[jobID]
	if !ok {
		return domain.PublishReceipt{}, domain.ErrNotFound
	}
	e.advanceLocked(ctx, j)
	if j.status != domain.JobStatusCompleted {
		return domain.PublishReceipt{}, domain.ErrNotCompleted
	}
	if j.owner != userID {
		return domain.PublishReceipt{}, domain.ErrForbidden
	}
	if _, err := e.readContentLocked(ctx, j); err != nil {
		return domain.PublishReceipt{}, err
	}

	action := "updated"
	if j.devtoURL == "" {
		action = "posted"
		j.devtoURL = fmt.Sprintf("https://dev.to/scribeflow/%s-%d", strings.ReplaceAll(j.slug, "_", "-"), j.createdAt.Unix()%100000)
	}
	e.logger.Info().Str("job_id", j.id).Str("url", j.devtoURL).Strs("tags", devtoTags(j.keywords)).Msg("jobengine: published to dev.to")
	return domain.PublishReceipt{
		Status:  "success",
		Message: fmt.Sprintf("Blog %s successfully on Dev.to!", action),
		URL:     j.devtoURL,
	}, nil
}

func (e *Engine) readContentLocked(ctx context.Context, j *job) (string, error) {
	if j.markdownKey == "" {
		return "", ErrNoContent
	}
	data, err := e.files.Read(ctx, j.markdownKey)
	if err != nil {
		return "", fmt.Errorf("jobengine: read article: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", ErrNoContent
	}
	return string(data), nil
}

func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// devtoTags mirrors Dev.to's tag rules: lower-case alphanumerics, at least
// two characters, at most twenty, four tags.
func devtoTags(keywords string) []string {
	if strings.TrimSpace(keywords) == "" {
		keywords = "ai, automation"
	}
	var tags []string
	for _, kw := range domain.SplitKeywords(keywords) {
		var b strings.Builder
		for _, r := range strings.ToLower(kw) {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		tag := b.String()
		if len(tag) < 2 {
			continue
		}
		if len(tag) > 20 {
			tag = tag[:20]
		}
		tags = append(tags, tag)
		if len(tags) == 4 {
			break
		}
	}
	return tags
}
