package report

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"html/template"
	"strconv"
	"time"

	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/telegram"
	"github.com/rs/zerolog"
)

// Notifier delivers a finished report. *notify.Notify satisfies it.
type Notifier interface {
	Send(ctx context.Context, subject, message string) error
}

// NewTelegram returns a notifier posting to one Telegram chat. The bot
// token is checked against the Telegram API.
func NewTelegram(token, chatID string) (*notify.Notify, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}

	tg, err := telegram.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram service: %w", err)
	}
	tg.AddReceivers(id)

	n := notify.New()
	n.UseServices(tg)
	return n, nil
}

// Subject is the first line of the notification, HTML-safe.
func Subject(rep ExecutionReport) string {
	if rep.Success() {
		return "<b>✅ Console login succeeded</b>"
	}
	return "<b>❌ Console login failed</b>"
}

var messageTmpl = template.Must(template.New("message").Parse(
	`<b>Run:</b> {{.Label}}
<b>Started:</b> {{.Started}}
<b>Duration:</b> {{.Duration}}
<b>Final URL:</b> {{.URL}}
<b>Title:</b> {{.Title}}
<b>Post-login action:</b> {{.PostLogin}}
{{- if .Error}}
<b>Error:</b> <code>{{.Error}}</code>
{{- end}}
{{- if .Evidence}}
<b>Evidence:</b>
{{- range .Evidence}}
• {{.}}
{{- end}}
{{- end}}
`))

type messageData struct {
	Label     string
	Started   string
	Duration  string
	URL       string
	Title     string
	PostLogin string
	Error     string
	Evidence  []string
}

// FormatMessage renders the notification body in Telegram's HTML subset.
// All report text is escaped.
func FormatMessage(rep ExecutionReport) string {
	data := messageData{
		Label:     rep.RunLabel,
		Started:   rep.StartedAt.Format("2006-01-02 15:04:05 MST"),
		Duration:  rep.Duration.Round(100 * time.Millisecond).String(),
		URL:       rep.FinalURL,
		Title:     rep.PageTitle,
		PostLogin: postLoginStatus(rep),
		Error:     rep.ErrorMessage,
		Evidence:  rep.EvidenceLabels(),
	}

	var buf bytes.Buffer
	if err := messageTmpl.Execute(&buf, data); err != nil {
		// Only reachable on a broken template; fall back to the essentials.
		return fmt.Sprintf("%s\n%s", html.EscapeString(rep.RunLabel), html.EscapeString(rep.ErrorMessage))
	}
	return buf.String()
}

func postLoginStatus(rep ExecutionReport) string {
	switch {
	case rep.Flags.PostLoginModalDetected:
		return "clicked, modal opened"
	case rep.Flags.PostLoginActionClicked:
		return "clicked, no modal"
	default:
		return "not clicked"
	}
}

// Deliver sends rep through n. A nil notifier or a delivery failure is
// logged and reported as false, never returned as an error.
func Deliver(ctx context.Context, n Notifier, rep ExecutionReport, logger zerolog.Logger) bool {
	if n == nil {
		logger.Debug().Msg("no notifier configured, skipping notification")
		return false
	}

	if err := n.Send(ctx, Subject(rep), FormatMessage(rep)); err != nil {
		logger.Warn().Err(err).Str("run_id", rep.RunID).Msg("failed to send notification")
		return false
	}

	logger.Info().Str("run_id", rep.RunID).Msg("notification sent")
	return true
}
