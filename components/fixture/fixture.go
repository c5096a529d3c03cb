// Package fixture provides a scriptable flow.Component for exercising the
// engine in tests without standing up a real side effect.
package fixture

import (
	"context"
	"sync"

	"github.com/arrowrift/flowengine/flow"
)

// Call records one Process invocation against a Component.
type Call struct {
	Data map[string]flow.Value
}

// Component is a test double for flow.Component: each Process call pops
// the next scripted Outcome (or repeats the last one), records its input,
// and applies whatever that Outcome specifies.
type Component struct {
	// Outcomes is consumed in order; once exhausted, the last entry
	// repeats. A zero-value Component always succeeds with no side effects.
	Outcomes []Outcome

	Calls []Call

	mu    sync.Mutex
	index int

	initConfig map[string]flow.Value
	healthy    bool
}

// Outcome scripts one Process invocation.
type Outcome struct {
	// Set is merged into Context.Data via Set(path, value) before Process
	// returns.
	Set map[string]flow.Value
	// Port, if non-empty, becomes the node's ActivePort.
	Port string
	// Err, if non-nil, is returned by Process.
	Err error
	// Suspend, if true, calls Context.Suspend(SuspendNodeID, SuspendReason).
	Suspend       bool
	SuspendNodeID string
	SuspendReason string
}

// New builds a Component that always succeeds.
func New() *Component {
	return &Component{healthy: true}
}

// WithOutcomes builds a Component that plays back the given outcomes in
// order.
func WithOutcomes(outcomes ...Outcome) *Component {
	return &Component{Outcomes: outcomes, healthy: true}
}

func (c *Component) Init(config map[string]flow.Value) error {
	c.initConfig = config
	return nil
}

func (c *Component) Setup(fctx *flow.Context) error    { return nil }
func (c *Component) Teardown(fctx *flow.Context) error { return nil }
func (c *Component) ValidateConfig() []string          { return nil }
func (c *Component) HealthCheck(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

// SetHealthy controls the HealthCheck result, for exercising health-gated
// callers.
func (c *Component) SetHealthy(healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = healthy
}

// Process replays the next scripted Outcome.
func (c *Component) Process(ctx context.Context, fctx *flow.Context) error {
	if err := flow.CheckDeadline(fctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.Calls = append(c.Calls, Call{Data: cloneValueMap(fctx.Data)})
	var outcome Outcome
	if len(c.Outcomes) > 0 {
		idx := c.index
		if idx >= len(c.Outcomes) {
			idx = len(c.Outcomes) - 1
		} else {
			c.index++
		}
		outcome = c.Outcomes[idx]
	}
	c.mu.Unlock()

	for path, value := range outcome.Set {
		fctx.Set(path, value)
	}
	if outcome.Port != "" {
		flow.SetOutputPort(fctx, outcome.Port)
	}
	if outcome.Suspend {
		fctx.Suspend(outcome.SuspendNodeID, outcome.SuspendReason)
	}
	return outcome.Err
}

// CallCount reports how many times Process has run.
func (c *Component) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

func cloneValueMap(m map[string]flow.Value) map[string]flow.Value {
	out := make(map[string]flow.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
