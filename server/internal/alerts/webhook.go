package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talentmanager/talentmanager/pkg/types"
	"github.com/talentmanager/talentmanager/server/internal/config"
)

// Alert is the notification sent when a newly added employee matches rules.
type Alert struct {
	ID             string       `json:"id"`
	EmployeeNumber string       `json:"employee_number"`
	Rules          []string     `json:"rules"`
	Message        string       `json:"message"`
	Record         types.Record `json:"record"`
	FiredAt        time.Time    `json:"fired_at"`
}

// Notifier delivers webhook notifications for newly added employees.
type Notifier struct {
	eval     *Evaluator
	webhooks []config.WebhookConfig
	idColumn string
	client   *http.Client
}

// NewNotifier creates a Notifier. With no webhooks, Notify only logs.
func NewNotifier(eval *Evaluator, webhooks []config.WebhookConfig, idColumn string) *Notifier {
	return &Notifier{
		eval:     eval,
		webhooks: webhooks,
		idColumn: idColumn,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify evaluates rec and, when any rule matches, delivers the alert
// asynchronously. It returns the alert, or nil when nothing matched.
func (n *Notifier) Notify(rec types.Record) *Alert {
	a := n.build(rec)
	if a == nil {
		return nil
	}

	slog.Warn("alert fired",
		"employee", a.EmployeeNumber,
		"rules", a.Rules,
	)
	if len(n.webhooks) > 0 {
		go n.deliver(a)
	}
	return a
}

func (n *Notifier) build(rec types.Record) *Alert {
	rules := n.eval.Match(rec)
	if len(rules) == 0 {
		return nil
	}
	id, _ := rec.Get(n.idColumn)
	emp := types.Text(id)
	return &Alert{
		ID:             uuid.NewString(),
		EmployeeNumber: emp,
		Rules:          rules,
		Message:        fmt.Sprintf("employee %s added with alerts: %s", emp, strings.Join(rules, ", ")),
		Record:         rec.Clone(),
		FiredAt:        time.Now().UTC(),
	}
}

// deliver sends a to all configured targets.
// Errors are logged but do not affect the caller.
func (n *Notifier) deliver(a *Alert) {
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(url, a)
		case "teams":
			err = n.sendTeams(url, a)
		case "http":
			err = n.sendHTTP(url, a)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"employee", a.EmployeeNumber,
				"err", err,
			)
		} else {
			slog.Debug("alerts: webhook delivered",
				"type", wh.Type,
				"employee", a.EmployeeNumber,
			)
		}
	}
}

func (n *Notifier) sendSlack(url string, a *Alert) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*[ALERT]* %s", a.Message),
	})
	return n.post(url, body)
}

func (n *Notifier) sendTeams(url string, a *Alert) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "FFAB40",
		"summary":    strings.Join(a.Rules, ", "),
		"title":      fmt.Sprintf("Talent Manager alert: employee %s", a.EmployeeNumber),
		"text":       a.Message,
	}
	body, _ := json.Marshal(payload)
	return n.post(url, body)
}

func (n *Notifier) sendHTTP(url string, a *Alert) error {
	body, err := json.Marshal(map[string]interface{}{"alert": a})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return n.post(url, body)
}

func (n *Notifier) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
