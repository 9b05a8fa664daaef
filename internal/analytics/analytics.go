// Package analytics ships terminal call summaries to an n8n webhook for
// CRM integration, follow-up automation, and lead scoring. Delivery is
// best-effort: a webhook failure never fails the call.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/talmor-labs/callflow/internal/memory"
)

// Publisher accepts terminal call summaries.
type Publisher interface {
	// SendSummary delivers the summary. Errors are for logging only.
	SendSummary(ctx context.Context, summary memory.Summary) error
}

// Webhook posts enriched summaries to a configured n8n URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook publisher. An empty URL disables delivery;
// a non-positive timeout defaults to 10 seconds.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool { return w.url != "" }

// Payload is the enriched summary shipped downstream: the raw summary
// plus derived quality metrics and a human-readable digest.
type Payload struct {
	memory.Summary

	DurationFormatted string `json:"durationFormatted"`
	QualityScore      int    `json:"qualityScore"`
	CompletionRate    int    `json:"completionRate"`
	AISummary         string `json:"aiSummary"`
}

// SendSummary posts the enriched summary. Disabled publishers return nil.
func (w *Webhook) SendSummary(ctx context.Context, summary memory.Summary) error {
	if !w.Enabled() {
		slog.Debug("analytics webhook disabled (no URL configured)")
		return nil
	}

	payload := Payload{
		Summary:           summary,
		DurationFormatted: formatDuration(summary.Duration),
		QualityScore:      QualityScore(summary),
		CompletionRate:    CompletionRate(summary),
		AISummary:         Digest(summary),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling summary: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, respBody)
	}

	slog.Info("call summary delivered",
		"call_id", summary.CallID,
		"outcome", summary.Outcome,
		"quality_score", payload.QualityScore)
	return nil
}

// LogEvent posts a real-time event during a call (live dashboards,
// manager notifications). Failures are swallowed.
func (w *Webhook) LogEvent(ctx context.Context, eventType string, data map[string]any) {
	if !w.Enabled() {
		return
	}

	event := map[string]any{
		"type":      "live_event",
		"eventType": eventType,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range data {
		event[k] = v
	}

	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		slog.Debug("live event delivery failed", "error", err)
		return
	}
	resp.Body.Close()
}

// QualityScore rates the call 0-100 from the facts gathered: identity,
// needs, sentiment, outcome, and healthy duration.
func QualityScore(s memory.Summary) int {
	score := 0
	if s.Customer.Name != "" {
		score += 20
	}
	if len(s.Needs) > 0 {
		score += 20
	}
	switch s.Sentiment {
	case memory.SentimentPositive:
		score += 20
	case memory.SentimentNeutral:
		score += 10
	}
	switch s.Outcome {
	case memory.OutcomeSale:
		score += 40
	case memory.OutcomeFollowUp:
		score += 30
	case memory.OutcomeNoSale:
		score += 10
	}
	if s.Duration >= 30 && s.Duration <= 300 {
		score += 10
	}
	if len(s.Objections) > 0 && s.Sentiment == memory.SentimentPositive {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// progressStages are the non-terminal stages counted toward completion.
var progressStages = map[string]bool{
	"GREETING":         true,
	"NAME_COLLECTION":  true,
	"RAPPORT_BUILDING": true,
	"NEEDS_DISCOVERY":  true,
	"SOLUTION_PITCH":   true,
	"CLOSING":          true,
}

// CompletionRate reports how far through the sales flow the call got,
// as a 0-100 percentage.
func CompletionRate(s memory.Summary) int {
	completed := 0
	for _, stage := range s.StagesCompleted {
		if progressStages[stage] {
			completed++
		}
	}
	return int(float64(completed) / float64(len(progressStages)) * 100)
}

// Digest builds a one-paragraph English summary for humans reading the
// CRM record.
func Digest(s memory.Summary) string {
	name := s.Customer.Name
	if name == "" {
		name = "The customer"
	}

	outcome := "ended the call"
	switch s.Outcome {
	case memory.OutcomeSale:
		outcome = "agreed to move forward"
	case memory.OutcomeFollowUp:
		outcome = "requested follow-up"
	case memory.OutcomeNoSale:
		outcome = "declined the offer"
	}

	needs := "No specific needs identified"
	if len(s.Needs) > 0 {
		needs = "Looking for: " + s.Needs[0]
	}

	objections := ""
	if len(s.Objections) > 0 {
		objections = " Raised concerns: " + s.Objections[0] + "."
	}

	return fmt.Sprintf("%s called. %s.%s %s %s.", name, needs, objections, name, outcome)
}

func formatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
