package flow

// resumeDataKey is the well-known Data key under which resume() attaches the
// caller-supplied payload, per spec.md §4.6.
const resumeDataKey = "resume_data"

// Context is the mutable execution-scoped record threaded through a flow
// (spec.md §3). Data holds the working key/value state; Input is the
// immutable-by-convention initial payload; Metadata carries telemetry and
// suspension state; ActivePort is transient per-node routing state read only
// by the graph executor between a node's Process call and its outgoing edges
// firing.
type Context struct {
	Data       map[string]Value
	Input      Value
	Metadata   *Metadata
	ActivePort string

	suspendRequested bool
	suspendNodeID    string
	suspendReason    string

	// guard is the active node's DeadlineGuard, set by the executor
	// immediately before Process runs so components can cooperatively check
	// their own remaining budget via CheckDeadline(fctx).
	guard *DeadlineGuard
}

// NewContext creates a Context for a fresh execution. input may be nil.
func NewContext(input Value) *Context {
	return &Context{
		Data:     make(map[string]Value),
		Input:    input,
		Metadata: NewMetadata(),
	}
}

// Get resolves a dotted path against Data, e.g. "user.profile.age". Missing
// segments yield nil, never an error — this is relied on by the safe
// evaluator (spec.md §4.1).
func (c *Context) Get(path string) Value {
	return getPath(c.Data, path)
}

// Set writes value at the dotted path within Data, creating intermediate
// maps as needed.
func (c *Context) Set(path string, value Value) {
	setPath(c.Data, path, value)
}

// HasErrors reports whether any component or condition errors have been
// recorded so far — exposed to conditions as context.metadata.has_errors.
func (c *Context) HasErrors() bool {
	return len(c.Metadata.Errors) > 0 || len(c.Metadata.ConditionErrors) > 0
}

// MetaField resolves the flat set of metadata fields conditions may read as
// context.metadata.<name> (flow/eval). Unknown names report ok=false so the
// evaluator can surface "unknown attribute" rather than silently nil.
func (c *Context) MetaField(name string) (value Value, ok bool) {
	switch name {
	case "has_errors":
		return c.HasErrors(), true
	case "iteration_count":
		return c.Metadata.IterationCount, true
	case "max_iterations_hit":
		return c.Metadata.MaxIterationsHit, true
	case "suspended":
		return c.Metadata.Suspended, true
	case "flow_id":
		return c.Metadata.FlowID, true
	default:
		return nil, false
	}
}

// Suspend is called by a component during Process to signal that the flow
// should pause. The executor observes this after Process returns, completes
// Teardown, and yields a checkpoint instead of continuing (spec.md §5).
func (c *Context) Suspend(nodeID, reason string) {
	c.suspendRequested = true
	c.suspendNodeID = nodeID
	c.suspendReason = reason
}

// suspensionRequested reports and clears the pending suspension signal. The
// executor calls this once per node, immediately after Teardown.
func (c *Context) suspensionRequested() (nodeID, reason string, ok bool) {
	if !c.suspendRequested {
		return "", "", false
	}
	nodeID, reason = c.suspendNodeID, c.suspendReason
	c.suspendRequested = false
	c.suspendNodeID = ""
	c.suspendReason = ""
	return nodeID, reason, true
}

// clearActivePort resets the transient port state. Must be called before
// every node's Process in the graph executor (spec.md §9).
func (c *Context) clearActivePort() {
	c.ActivePort = ""
}

// ResumeData returns the payload attached by Resume, or nil if this context
// was never resumed.
func (c *Context) ResumeData() Value {
	return c.Data[resumeDataKey]
}

// clone produces a deep-enough copy of the context for hard_async isolation:
// a node running on a worker goroutine mutates the clone, and the engine
// merges it back into the authoritative context only if the node finished
// before the deadline (SPEC_FULL.md §7, Open Question 1).
func (c *Context) clone() *Context {
	dataCopy := deepCopyMap(c.Data)
	metaCopy := *c.Metadata
	metaCopy.StepTimings = append([]StepTiming(nil), c.Metadata.StepTimings...)
	metaCopy.SkippedComponents = append([]string(nil), c.Metadata.SkippedComponents...)
	metaCopy.Errors = append([]ErrorRecord(nil), c.Metadata.Errors...)
	metaCopy.ConditionErrors = append([]ConditionErrorRecord(nil), c.Metadata.ConditionErrors...)
	metaCopy.CompletedNodes = copyBoolMap(c.Metadata.CompletedNodes)
	metaCopy.NodeVisitCounts = copyIntMap(c.Metadata.NodeVisitCounts)

	return &Context{
		Data:       dataCopy,
		Input:      c.Input,
		Metadata:   &metaCopy,
		ActivePort: c.ActivePort,
	}
}

// mergeFrom copies the Data and ActivePort of a successfully completed clone
// back into the authoritative context. Metadata (timings, errors, counters)
// is always recorded directly by the executor on the authoritative context,
// not merged from the clone, to keep a single source of truth for telemetry.
func (c *Context) mergeFrom(clone *Context) {
	c.Data = clone.Data
	c.ActivePort = clone.ActivePort
}

func deepCopyMap(m map[string]Value) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v Value) Value {
	switch t := v.(type) {
	case map[string]Value:
		return deepCopyMap(t)
	case []Value:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

func copyBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
