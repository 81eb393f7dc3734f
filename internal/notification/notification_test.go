package notification

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"smc-signal-engine/internal/entry"
	"smc-signal-engine/internal/signal"
)

func sampleSignalDecision() signal.Decision {
	return signal.Decision{Signal: &signal.Signal{
		ID: "test-id", Symbol: "BTCUSDT", Timeframe: "1h", Direction: "bullish",
		Confidence:  80,
		EntryStatus: entry.StatusValidNear,
		EntryZone:   &entry.Zone{Source: entry.SourceFVG, Low: 97.5, High: 98.5, DistancePct: 2},
	}}
}

func TestWebhookNotifierPostsPayload(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, true)
	if err := n.Send(sampleSignalDecision()); err != nil {
		t.Fatal(err)
	}

	if received["emitted"] != true {
		t.Errorf("Expected emitted=true, got %v", received["emitted"])
	}
	if _, ok := received["signal"]; !ok {
		t.Error("The signal payload must be included")
	}
	if _, ok := received["no_trade"]; ok {
		t.Error("A signal decision must not carry a no_trade payload")
	}
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, true)
	if err := n.Send(sampleSignalDecision()); err == nil {
		t.Error("A non-2xx webhook response must surface as an error")
	}
}

func TestWebhookNotifierDisabledWithoutURL(t *testing.T) {
	if NewWebhookNotifier("", true).IsEnabled() {
		t.Error("A webhook without a URL can never be enabled")
	}
}

func TestManagerSkipsDisabledNotifiers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("A disabled notifier must not be invoked")
	}))
	defer server.Close()

	m := NewManager(zerolog.Nop())
	m.AddNotifier(NewWebhookNotifier(server.URL, false))
	m.Notify(sampleSignalDecision())
}

func TestSummaryRendersBothOutcomes(t *testing.T) {
	got := Summary(sampleSignalDecision())
	for _, want := range []string{"BTCUSDT", "1h", "bullish", "80.0", "VALID_NEAR"} {
		if !strings.Contains(got, want) {
			t.Errorf("Signal summary missing %q: %s", want, got)
		}
	}

	noTrade := signal.Decision{NoTrade: &signal.NoTrade{
		Symbol: "ETHUSDT", Timeframe: "4h",
		ReasonCode: signal.ReasonCooldownActive, Details: "within window",
	}}
	got = Summary(noTrade)
	for _, want := range []string{"ETHUSDT", "no trade", signal.ReasonCooldownActive} {
		if !strings.Contains(got, want) {
			t.Errorf("No-trade summary missing %q: %s", want, got)
		}
	}
}
