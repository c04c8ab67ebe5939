package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"scribeflow/internal/bundle"
	"scribeflow/internal/domain"
	"scribeflow/internal/generation"
	"scribeflow/internal/storage"
)

type outputFlags struct {
	out    string
	bundle bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "directory to save the article in (default: print to stdout)")
	cmd.Flags().BoolVar(&o.bundle, "bundle", false, "save a zip with the article and its images (needs --out)")
}

func newGenerateCmd(rt *runtime) *cobra.Command {
	var (
		tone   string
		asOf   string
		output outputFlags
	)
	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Generate an article and wait for it",
		Long: fmt.Sprintf(`Submit a topic, follow the job until it finishes and save the article.

Supported tones: %s.`, toneList()),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			if output.bundle && output.out == "" {
				return fmt.Errorf("--bundle needs --out")
			}
			ctx := cmd.Context()
			req := domain.GenerationRequest{
				Topic: strings.Join(args, " "),
				Tone:  domain.Tone(tone),
				AsOf:  asOf,
			}.Normalize()

			stderr := &lockedWriter{w: cmd.ErrOrStderr()}
			gen := rt.generator(func(acct domain.Account) {
				fmt.Fprintf(stderr, "%s\n", creditsLabel(acct))
			})
			h, err := gen.Submit(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(stderr, "Job %s started.\n", h.JobID())

			record := domain.HistoryRecord{
				JobID:       h.JobID(),
				Topic:       req.Topic,
				Tone:        req.Tone,
				Status:      domain.JobStatusQueued,
				SubmittedAt: time.Now().UTC(),
				UpdatedAt:   time.Now().UTC(),
			}
			return follow(ctx, cmd.OutOrStdout(), stderr, rt, h, record, output)
		},
	}
	cmd.Flags().StringVarP(&tone, "tone", "t", string(domain.DefaultTone), "writing tone")
	cmd.Flags().StringVar(&asOf, "as-of", "", "date context for the article, e.g. 2025-01-31")
	output.register(cmd)
	return cmd
}

func newResumeCmd(rt *runtime) *cobra.Command {
	var output outputFlags
	cmd := &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Follow a job started earlier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			if output.bundle && output.out == "" {
				return fmt.Errorf("--bundle needs --out")
			}
			ctx := cmd.Context()
			jobID := strings.TrimSpace(args[0])

			record := domain.HistoryRecord{JobID: jobID, SubmittedAt: time.Now().UTC()}
			if history, err := rt.historyRepo(ctx); err == nil {
				if prev, err := history.Get(ctx, jobID); err == nil {
					record = *prev
				}
			}

			h, err := rt.generator(nil).Resume(ctx, jobID)
			if err != nil {
				return err
			}
			return follow(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), rt, h, record, output)
		},
	}
	output.register(cmd)
	return cmd
}

// follow prints every observed status, keeps the history record current and
// saves the article once the job completes.
func follow(ctx context.Context, stdout, stderr io.Writer, rt *runtime, h *generation.Handle, record domain.HistoryRecord, output outputFlags) error {
	history, err := rt.historyRepo(ctx)
	if err != nil {
		rt.logger.Warn().Err(err).Msg("history unavailable; job will not be recorded")
	}
	save := func(job domain.Job) {
		if history == nil {
			return
		}
		record.Apply(job, time.Now().UTC())
		// Saved even after ctx is cancelled so the job can be resumed.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := history.Save(saveCtx, record); err != nil {
			rt.logger.Warn().Err(err).Str("job_id", record.JobID).Msg("save history failed")
		}
	}

	for job := range h.Snapshots() {
		fmt.Fprintln(stderr, statusLine(job))
		save(job)
	}

	job, err := h.Wait(context.WithoutCancel(ctx))
	save(job)
	if err != nil {
		return explainWaitError(h, err)
	}

	markdown, err := h.Artifact()
	if err != nil {
		return err
	}
	return writeArticle(ctx, stdout, stderr, rt, job, markdown, output)
}

func explainWaitError(h *generation.Handle, err error) error {
	var failed *generation.JobFailedError
	switch {
	case errors.As(err, &failed):
		return fmt.Errorf("generation failed: %s", failed.Reason)
	case errors.Is(err, generation.ErrCancelled), errors.Is(err, generation.ErrPollTimeout):
		return fmt.Errorf("%w; the job keeps running, continue with `scribe resume %s`", err, h.JobID())
	default:
		return err
	}
}

func writeArticle(ctx context.Context, stdout, stderr io.Writer, rt *runtime, job domain.Job, markdown string, output outputFlags) error {
	title := job.ID
	var images []string
	if job.Result != nil {
		if job.Result.Title != "" {
			title = job.Result.Title
		}
		images = job.Result.Images
	}

	if output.out == "" {
		_, err := io.WriteString(stdout, markdown)
		return err
	}
	name, data := bundle.MarkdownName(title), []byte(markdown)
	if output.bundle {
		b, err := bundle.Build(ctx, rt.api, title, markdown, images, time.Now())
		if err != nil {
			return err
		}
		name, data = b.Name, b.Data
	}
	path, err := saveFile(ctx, output.out, name, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Saved %s\n", path)
	return nil
}

// saveFile writes data as name inside dir and returns the file path.
func saveFile(ctx context.Context, dir, name string, data []byte) (string, error) {
	store, err := storage.NewFileStore(dir)
	if err != nil {
		return "", err
	}
	key, err := store.Write(ctx, name, data)
	if err != nil {
		return "", err
	}
	return store.Path(key)
}

// lockedWriter serialises writes from the poll output and the balance
// callback.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func statusLine(job domain.Job) string {
	switch job.Status {
	case domain.JobStatusQueued:
		return "queued: waiting for a worker"
	case domain.JobStatusProcessing:
		return "processing: researching and writing"
	case domain.JobStatusCompleted:
		if job.Result != nil && job.Result.Title != "" {
			return fmt.Sprintf("completed: %q", job.Result.Title)
		}
		return "completed"
	case domain.JobStatusFailed:
		return "failed: " + job.Error
	default:
		return string(job.Status)
	}
}

func toneList() string {
	names := make([]string, 0, len(domain.Tones()))
	for _, t := range domain.Tones() {
		names = append(names, strings.ToLower(string(t)))
	}
	return strings.Join(names, ", ")
}
