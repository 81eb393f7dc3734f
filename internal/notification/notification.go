package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/internal/signal"
)

// Notifier delivers an evaluation outcome to one destination
type Notifier interface {
	Send(dec signal.Decision) error
	Name() string
	IsEnabled() bool
}

// Manager fans an outcome out to every enabled notifier
type Manager struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewManager creates a new notification manager
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		logger: logger.With().Str("component", "notification").Logger(),
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Notify sends the decision to all enabled providers. Delivery failures are
// logged per provider; one failing destination never blocks the others.
func (m *Manager) Notify(dec signal.Decision) {
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.Send(dec); err != nil {
			m.logger.Error().Err(err).Str("notifier", n.Name()).Msg("notification delivery failed")
		}
	}
}

// WebhookNotifier posts decisions as JSON to a configured URL
type WebhookNotifier struct {
	url        string
	enabled    bool
	httpClient *http.Client
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(url string, enabled bool) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		enabled:    enabled && url != "",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Notifier
func (w *WebhookNotifier) Name() string { return "webhook" }

// IsEnabled implements Notifier
func (w *WebhookNotifier) IsEnabled() bool { return w.enabled }

// Send implements Notifier. Signals and no-trade outcomes share one payload
// shape so the receiver always gets a structured result.
func (w *WebhookNotifier) Send(dec signal.Decision) error {
	payload := map[string]interface{}{
		"emitted": dec.Emitted(),
		"summary": Summary(dec),
	}
	if dec.Signal != nil {
		payload["signal"] = dec.Signal
	}
	if dec.NoTrade != nil {
		payload["no_trade"] = dec.NoTrade
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding notification payload: %w", err)
	}

	resp, err := w.httpClient.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error posting notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Summary renders a one-line human-readable description of a decision
func Summary(dec signal.Decision) string {
	if s := dec.Signal; s != nil {
		zone := "no zone"
		if s.EntryZone != nil {
			zone = fmt.Sprintf("%s zone %.4f-%.4f (%.2f%% away)",
				s.EntryZone.Source, s.EntryZone.Low, s.EntryZone.High, s.EntryZone.DistancePct)
		}
		return fmt.Sprintf("%s %s %s confidence %.1f, %s, %s",
			s.Symbol, s.Timeframe, s.Direction, s.Confidence, s.EntryStatus, zone)
	}
	nt := dec.NoTrade
	return fmt.Sprintf("%s %s no trade: %s (%s)", nt.Symbol, nt.Timeframe, nt.ReasonCode, nt.Details)
}
