package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/httpclient"
	"MediaMonitor/internal/ports"
)

const defaultEndpoint = "https://api.telegram.org"

// markdownEscaper escapes the entity markers of the legacy Markdown parse mode.
var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// Notifier sends execution summaries to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	endpoint string
	client   *httpclient.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. An empty endpoint
// selects the public Bot API.
func NewNotifier(botToken, chatID, endpoint string) *Notifier {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   httpclient.New(httpclient.Options{Timeout: 5 * time.Second}),
	}
}

// NotifyExecution posts a Markdown summary of a finished run.
func (n *Notifier) NotifyExecution(ctx context.Context, exec domain.JobExecution) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	resp, err := n.client.Request(ctx).
		SetFormData(map[string]string{
			"chat_id":    n.chatID,
			"text":       FormatExecution(exec),
			"parse_mode": "Markdown",
		}).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", n.endpoint, n.botToken))
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	if err := httpclient.CheckResponse(resp); err != nil {
		return fmt.Errorf("telegram error: %w", err)
	}

	return nil
}

// FormatExecution renders the operator-facing summary of a run.
func FormatExecution(exec domain.JobExecution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* run %s for tenant %s\n", strings.ToUpper(string(exec.Status)), escape(exec.ID), escape(exec.TenantID))
	if exec.JobID != nil {
		fmt.Fprintf(&b, "job: %s (%s)\n", escape(*exec.JobID), exec.Trigger)
	} else {
		fmt.Fprintf(&b, "ad-hoc (%s)\n", exec.Trigger)
	}
	fmt.Fprintf(&b, "processed: %d, failed: %d, skipped: %d", exec.ItemsProcessed, exec.ItemsFailed, exec.ItemsSkipped)
	if exec.CompletedAt != nil {
		fmt.Fprintf(&b, "\nduration: %s", exec.CompletedAt.Sub(exec.StartedAt).Round(time.Second))
	}
	if exec.ErrorMessage != nil && *exec.ErrorMessage != "" {
		fmt.Fprintf(&b, "\nerror: %s", escape(*exec.ErrorMessage))
	}
	return b.String()
}

func escape(value string) string {
	return markdownEscaper.Replace(value)
}
