package gateway

import (
	"context"
	"time"

	"margin/internal/domain/models"
)

// Tester probes a tool server config without saving it.
type Tester struct {
	connector Connector
	timeout   time.Duration
}

// NewTester creates a tester bounded by timeout
func NewTester(connector Connector, timeout time.Duration) *Tester {
	return &Tester{connector: connector, timeout: timeout}
}

// TestServer connects, initializes and lists tools. Connection problems are
// reported in the result; the error is only the caller's own cancellation.
func (t *Tester) TestServer(parent context.Context, cfg models.ToolServerConfig) (*models.ToolServerTestResult, error) {
	ctx, cancel := context.WithTimeout(parent, t.timeout)
	defer cancel()

	start := time.Now()
	result := &models.ToolServerTestResult{}

	session, info, err := t.connector.Connect(ctx, cfg)
	if err != nil {
		result.Error = err.Error()
		result.LatencyMS = time.Since(start).Milliseconds()
		return result, parent.Err()
	}
	defer session.Close()

	if info != nil {
		result.ServerName = info.Name
		result.Version = info.Version
	}

	list, err := session.ListTools(ctx)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result, parent.Err()
	}

	result.OK = true
	result.Tools = make([]string, 0, len(list))
	for _, tool := range list {
		result.Tools = append(result.Tools, tool.Name)
	}
	return result, nil
}
