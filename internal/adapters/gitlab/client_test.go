package gitlab

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/config"
	"github.com/rs/zerolog"
)

// mockExecutor scripts responses per query. Safe under the concurrent
// timeline fetches.
type mockExecutor struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	calls     []string
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{responses: map[string][]string{}, errs: map[string]error{}}
}

func (m *mockExecutor) script(query string, payloads ...string) {
	m.responses[query] = append(m.responses[query], payloads...)
}

func (m *mockExecutor) Execute(ctx context.Context, opContext, query string, vars map[string]any, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, opContext)
	if err := m.errs[query]; err != nil {
		return err
	}
	queue := m.responses[query]
	if len(queue) == 0 {
		return newTransportError(opContext, 500, "no scripted response")
	}
	m.responses[query] = queue[1:]
	return json.Unmarshal([]byte(queue[0]), out)
}

// countDelayer records requested delays instead of sleeping.
type countDelayer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (d *countDelayer) Delay(ctx context.Context, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays = append(d.delays, dur)
	return nil
}

func newTestClient(exec Executor, limit RateLimiter) *Client {
	cfg := config.Config{
		GitLabGroupPath:      "acme/platform",
		NoteWindow:           20,
		IncidentLookbackDays: 60,
		PageDelay:            100 * time.Millisecond,
		PipelineDelay:        50 * time.Millisecond,
	}
	return &Client{cfg: cfg, exec: exec, limit: limit, log: zerolog.Nop()}
}
