package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteEvidence writes the human-readable run record to path.
func WriteEvidence(path string, rep ExecutionReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create evidence file: %w", err)
	}
	if err := writeEvidence(f, rep); err != nil {
		f.Close()
		return fmt.Errorf("failed to write evidence file: %w", err)
	}
	return f.Close()
}

func writeEvidence(w io.Writer, rep ExecutionReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Run:\t%s\n", rep.RunLabel)
	fmt.Fprintf(tw, "Run ID:\t%s\n", rep.RunID)
	fmt.Fprintf(tw, "Status:\t%s\n", rep.Status)
	fmt.Fprintf(tw, "Started:\t%s\n", rep.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "Duration:\t%s\n", rep.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "Final URL:\t%s\n", rep.FinalURL)
	fmt.Fprintf(tw, "Page title:\t%s\n", rep.PageTitle)
	if rep.ErrorMessage != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", rep.ErrorMessage)
	}

	fmt.Fprintln(tw, "\nFlags:")
	fmt.Fprintf(tw, "  provider button clicked\t%s\n", yesNo(rep.Flags.ProviderButtonClicked))
	fmt.Fprintf(tw, "  second factor handled\t%s\n", yesNo(rep.Flags.TwoFactorHandled))
	fmt.Fprintf(tw, "  authorization handled\t%s\n", yesNo(rep.Flags.AuthorizeHandled))
	fmt.Fprintf(tw, "  post-login action clicked\t%s\n", yesNo(rep.Flags.PostLoginActionClicked))
	fmt.Fprintf(tw, "  post-login modal detected\t%s\n", yesNo(rep.Flags.PostLoginModalDetected))

	fmt.Fprintln(tw, "\nSteps:")
	for _, st := range rep.steps {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", st.Step, st.Detail, st.Elapsed.Round(time.Millisecond))
	}

	fmt.Fprintln(tw, "\nEvidence:")
	if len(rep.evidence) == 0 {
		fmt.Fprintln(tw, "  (none)")
	}
	for _, e := range rep.evidence {
		fmt.Fprintf(tw, "  - %s\n", strings.TrimSpace(e))
	}

	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
