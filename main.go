package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Nehilsa2/console_keepalive/config"
	"github.com/Nehilsa2/console_keepalive/persistence"
	"github.com/Nehilsa2/console_keepalive/totp"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout))
}

// execute runs the CLI and returns the process exit status.
func execute(args []string, out io.Writer) int {
	exitCode := 0
	root := newRootCmd(&exitCode)
	root.SetArgs(args)
	root.SetOut(out)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		return 1
	}
	return exitCode
}

func newRootCmd(exitCode *int) *cobra.Command {
	var envFile string

	runLogin := func(cmd *cobra.Command, _ []string) error {
		cfg, cfgErr := config.Load(envFile)
		logger := newLogger(cfg.Log, cmd.ErrOrStderr())

		rep := RunLogin(cmd.Context(), cfg, cfgErr, defaultDeps(), logger)
		*exitCode = rep.ExitCode()
		return nil
	}

	root := &cobra.Command{
		Use:           "keepalive",
		Short:         "Keep a GitHub-OAuth cloud console session alive",
		Long:          "Logs into a web console through GitHub OAuth, including TOTP and consent, and reports whether it got in.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLogin,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Perform one login run (default)",
		RunE:  runLogin,
	})
	root.AddCommand(newHistoryCmd(&envFile))
	root.AddCommand(newTOTPCmd(&envFile))

	return root
}

func newHistoryCmd(envFile *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if cfg.Artifacts.HistoryDB == "" {
				return fmt.Errorf("run history is disabled (KEEPALIVE_HISTORY_DB is empty)")
			}

			store, err := persistence.NewStore(cfg.Artifacts.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(limit)
			if err != nil {
				return fmt.Errorf("failed to read runs: %w", err)
			}
			stats, err := store.Stats(time.Now())
			if err != nil {
				return err
			}

			printHistory(cmd.OutOrStdout(), runs, stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show (0 for all)")
	return cmd
}

func printHistory(w io.Writer, runs []persistence.RunRecord, stats persistence.Stats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tDURATION\tLABEL\tDETAIL")
	for _, r := range runs {
		detail := r.ErrorMessage
		if r.Success() {
			detail = strings.Join(r.Evidence, "; ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(r.StartedAt), r.Status, r.Duration.Round(time.Second), r.Label, truncate(detail, 60))
	}
	tw.Flush()

	last := "never"
	if stats.LastSuccess != nil {
		last = humanize.Time(*stats.LastSuccess)
	}
	fmt.Fprintf(w, "\n%s runs, %s successful (%.0f%%), %d today, last success %s\n",
		humanize.Comma(int64(stats.TotalRuns)), humanize.Comma(int64(stats.Successes)),
		stats.SuccessRate()*100, stats.TodayRuns, last)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func newTOTPCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "totp",
		Short: "Print the current one-time code for GH_2FA_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if cfg.Credentials.TOTPSecret == "" {
				return fmt.Errorf("GH_2FA_SECRET is not set")
			}

			now := time.Now()
			code, err := totp.Generate(cfg.Credentials.TOTPSecret, now)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (valid for %ds)\n", code, int(totp.Remaining(now).Seconds()))
			return nil
		},
	}
}

// newLogger builds the process logger the way the config asks for.
func newLogger(cfg config.Log, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}
