package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRecordAndServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TurnFinished(OutcomeDone, 2*time.Second)
	m.TurnFinished(OutcomeError, time.Second)
	m.ToolCall("external", "error")
	m.UsageRejected("DAILY_LIMIT_EXCEEDED")
	done := m.StreamOpened()
	done()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`margin_usage_rejections_total{code="DAILY_LIMIT_EXCEEDED"} 1`,
		`margin_assistant_turns_total{outcome="done"} 1`,
		`margin_tool_calls_total{kind="external",status="error"} 1`,
		`margin_active_streams 0`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.TurnFinished(OutcomeDone, time.Second)
	m.ToolCall("highlight", "done")
	m.UsageRejected("X")
	m.HTTPRequest("GET", 200)
	m.StreamOpened()()
}
