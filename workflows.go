package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nehilsa2/console_keepalive/auth"
	"github.com/Nehilsa2/console_keepalive/browser"
	"github.com/Nehilsa2/console_keepalive/classify"
	"github.com/Nehilsa2/console_keepalive/config"
	"github.com/Nehilsa2/console_keepalive/humanize"
	"github.com/Nehilsa2/console_keepalive/persistence"
	"github.com/Nehilsa2/console_keepalive/report"
)

// browserSession is a launched browser with its single page.
type browserSession interface {
	Page() browser.Page
	Close() error
}

// runDeps are the collaborators of a run that tests replace.
type runDeps struct {
	launch   func(cfg browser.LaunchConfig, logger zerolog.Logger) (browserSession, error)
	notifier func(cfg config.Config) (report.Notifier, error)
	now      func() time.Time
	newID    func() string
}

func defaultDeps() runDeps {
	return runDeps{
		launch: func(cfg browser.LaunchConfig, logger zerolog.Logger) (browserSession, error) {
			s, err := browser.Launch(cfg, logger)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		notifier: func(cfg config.Config) (report.Notifier, error) {
			n, err := report.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
			if err != nil {
				return nil, err
			}
			return n, nil
		},
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// RunLogin performs one complete keep-alive run and returns its report.
// cfgErr is a configuration loading error; it fails the run before any
// browser is started. Artifacts, history and the notification are always
// attempted, even after a panic inside the flow.
func RunLogin(ctx context.Context, cfg config.Config, cfgErr error, deps runDeps, logger zerolog.Logger) (rep report.ExecutionReport) {
	started := deps.now()
	runID := deps.newID()
	log := logger.With().Str("run_id", runID).Logger()

	var (
		sess   *auth.Session
		bs     browserSession
		runErr error
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("💥 run panicked")
			runErr = fmt.Errorf("run panicked: %v", r)
		}
		rep = finish(ctx, cfg, deps, log, sess, bs, runID, started, runErr)
	}()

	log.Info().Str("label", cfg.RunLabel).Str("target", cfg.Target.URL).Msg("🚀 starting keep-alive login")

	if cfgErr != nil {
		runErr = cfgErr
		return
	}
	if err := cfg.Validate(); err != nil {
		runErr = err
		return
	}

	if cfg.Artifacts.Dir != "" {
		if err := os.MkdirAll(cfg.Artifacts.Dir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", cfg.Artifacts.Dir).Msg("could not create artifact directory")
		}
	}

	sess = auth.NewSession(cfg.AuthCredentials())

	var err error
	bs, err = deps.launch(browser.LaunchConfig{
		Headless:      cfg.Browser.Headless,
		Bin:           cfg.Browser.Bin,
		ActionTimeout: cfg.Timeouts.Action,
	}, log)
	if err != nil {
		runErr = fmt.Errorf("failed to start browser: %w", err)
		sess.Fail(runErr)
		return
	}

	actor := humanize.NewActor(cfg.HumanPacing(), log.With().Str("component", "actor").Logger())
	opts := []auth.Option{}
	if cfg.Target.Probe {
		opts = append(opts, auth.WithProber(auth.NewHTTPProber(cfg.Target.ProbeRetries, cfg.Timeouts.Probe, log)))
	}
	runner := auth.NewRunner(cfg.Runner(), bs.Page(), actor, classify.New(cfg.ClassifierRules()), log, opts...)

	runErr = runner.Run(ctx, sess)
	return
}

// finish builds the report and produces every output of the run. No
// failure in here changes the verdict.
func finish(
	ctx context.Context,
	cfg config.Config,
	deps runDeps,
	log zerolog.Logger,
	sess *auth.Session,
	bs browserSession,
	runID string,
	started time.Time,
	runErr error,
) report.ExecutionReport {
	rep := report.Build(sess, runID, cfg.RunLabel, started, deps.now(), runErr)

	if bs != nil {
		if path := cfg.ArtifactPath(cfg.Artifacts.Screenshot); path != "" {
			if err := bs.Page().Screenshot(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("final screenshot failed")
			} else {
				log.Info().Str("path", path).Msg("📸 saved final screenshot")
			}
		}
		if err := bs.Close(); err != nil {
			log.Warn().Err(err).Msg("browser cleanup failed")
		}
	}

	if path := cfg.ArtifactPath(cfg.Artifacts.EvidenceFile); path != "" {
		if err := report.WriteEvidence(path, rep); err != nil {
			log.Warn().Err(err).Msg("could not write evidence file")
		}
	}

	if err := recordHistory(cfg.Artifacts.HistoryDB, rep); err != nil {
		log.Warn().Err(err).Msg("could not record run history")
	}

	var n report.Notifier
	if cfg.NotifyEnabled() {
		var err error
		if n, err = deps.notifier(cfg); err != nil {
			log.Warn().Err(err).Msg("notifier unavailable")
			n = nil
		}
	}
	report.Deliver(ctx, n, rep, log)

	ev := log.Info()
	if !rep.Success() {
		ev = log.Error().Str("error", rep.ErrorMessage)
	}
	ev.Str("status", string(rep.Status)).
		Dur("duration", rep.Duration).
		Str("final_url", rep.FinalURL).
		Strs("evidence", rep.EvidenceLabels()).
		Msg("🏁 run finished")

	return rep
}

func recordHistory(path string, rep report.ExecutionReport) error {
	if path == "" {
		return nil
	}
	store, err := persistence.NewStore(path)
	if err != nil {
		return err
	}
	return errors.Join(store.SaveRun(rep), store.Close())
}
