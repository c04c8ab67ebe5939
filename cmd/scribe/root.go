package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"scribeflow/internal/adapter/repo"
	"scribeflow/internal/domain"
	"scribeflow/internal/generation"
	"scribeflow/internal/infra"
	"scribeflow/internal/jobsvc"
	"scribeflow/internal/session"
	"scribeflow/internal/storage"
)

// runtime is the per-invocation state shared by the commands.
type runtime struct {
	cfg     *infra.Config
	logger  zerolog.Logger
	files   *storage.FileStore
	tokens  *session.TokenStore
	session *session.Session
	api     *jobsvc.Client

	history domain.HistoryRepository
	closers []func()
}

type rootFlags struct {
	apiURL  string
	home    string
	verbose bool
}

func newRootCmd() *cobra.Command {
	var (
		flags rootFlags
		rt    = &runtime{}
	)

	root := &cobra.Command{
		Use:   "scribe",
		Short: "Generate blog articles with the ScribeFlow job service",
		Long: `scribe submits blog generation jobs to the ScribeFlow job service,
follows them until the article is ready and manages the results.

Examples:
  # Log in with a one-time code sent by email
  scribe login --email me@example.com

  # Generate an article and save it with its images as a zip bundle
  scribe generate "Edge computing in retail" --tone technical --bundle --out ./articles

  # Pick up a job started earlier
  scribe resume 6f1c...`,
		Version:       version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.init(cmd.Context(), flags)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			rt.close()
		},
	}
	root.SetErrPrefix("scribe:")
	root.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "job service base URL (default $SCRIBE_API_URL)")
	root.PersistentFlags().StringVar(&flags.home, "home", "", "directory for the session token and local history (default $SCRIBE_HOME)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log poll details to stderr")

	root.AddCommand(
		newLoginCmd(rt),
		newLogoutCmd(rt),
		newWhoamiCmd(rt),
		newProfileCmd(rt),
		newGenerateCmd(rt),
		newResumeCmd(rt),
		newHistoryCmd(rt),
		newExportCmd(rt),
		newEditCmd(rt),
		newPublishCmd(rt),
		newViewCmd(rt),
	)
	return root
}

func (rt *runtime) init(ctx context.Context, flags rootFlags) error {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if flags.apiURL != "" {
		cfg.APIURL = strings.TrimRight(flags.apiURL, "/")
	}
	if flags.home != "" {
		cfg.HomeDir = flags.home
	}
	rt.cfg = cfg

	rt.logger = infra.NewLoggerTo(os.Stderr, cfg.AppEnv).Level(zerolog.WarnLevel)
	if flags.verbose {
		rt.logger = rt.logger.Level(zerolog.DebugLevel)
	}

	files, err := storage.NewFileStore(cfg.HomeDir)
	if err != nil {
		return err
	}
	rt.files = files
	rt.tokens = session.NewTokenStore(files)
	if rt.session, err = rt.tokens.Restore(ctx); err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	rt.api, err = jobsvc.NewClient(jobsvc.Options{
		BaseURL:        cfg.APIURL,
		Session:        rt.session,
		Logger:         &rt.logger,
		RequestTimeout: cfg.HTTPClientTimeout,
	})
	return err
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// historyRepo opens the local job history: PostgreSQL when DATABASE_URL is
// set, JSON files under the home directory otherwise.
func (rt *runtime) historyRepo(ctx context.Context) (domain.HistoryRepository, error) {
	if rt.history != nil {
		return rt.history, nil
	}
	if rt.cfg.DatabaseURL == "" {
		rt.history = repo.NewHistoryFileRepository(rt.files)
		return rt.history, nil
	}

	pool, err := infra.NewDBPool(ctx, rt.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	rt.closers = append(rt.closers, pool.Close)
	pg := repo.NewHistoryRepository(infra.NewSQLRunner(pool, rt.logger))
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rt.history = pg
	return rt.history, nil
}

func (rt *runtime) generator(onBalance func(domain.Account)) *generation.Client {
	return generation.New(rt.api, generation.Options{
		Interval:  rt.cfg.PollInterval,
		MaxWait:   rt.cfg.PollMaxWait,
		Logger:    &rt.logger,
		Session:   rt.session,
		Balance:   rt.api,
		OnBalance: onBalance,
	})
}

func (rt *runtime) requireLogin() error {
	if !rt.session.Authenticated() {
		return fmt.Errorf("not logged in; run `scribe login` first")
	}
	return nil
}
