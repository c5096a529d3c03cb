package flow

import (
	"context"
	"fmt"
)

// runGraph dispatches to the acyclic (Kahn's-algorithm) or cyclic
// (bounded ready-queue) executor depending on whether the configured graph
// actually contains a cycle (spec.md §4.6 Graph Executor). Classifying the
// whole graph once up front, rather than per-node, keeps the two execution
// strategies — and their very different completed_nodes/node_visit_counts
// bookkeeping — cleanly separated.
func (e *Engine) runGraph(ctx context.Context, execCtx *Context, resumeAt string) error {
	cyclic, backEdges := detectCycle(e.config.Nodes, e.config.Edges)
	if cyclic {
		return e.runGraphCyclic(ctx, execCtx, resumeAt, backEdges)
	}
	return e.runGraphAcyclic(ctx, execCtx, resumeAt)
}

// --- shared graph structure helpers ---

func nodeByID(nodes []NodeConfig) map[string]NodeConfig {
	m := make(map[string]NodeConfig, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return m
}

func outgoingEdges(edges []EdgeConfig) map[string][]EdgeConfig {
	m := make(map[string][]EdgeConfig)
	for _, ed := range edges {
		m[ed.Source] = append(m[ed.Source], ed)
	}
	return m
}

func incomingCount(nodes []NodeConfig, edges []EdgeConfig) map[string]int {
	m := make(map[string]int, len(nodes))
	for _, n := range nodes {
		m[n.ID] = 0
	}
	for _, ed := range edges {
		m[ed.Target]++
	}
	return m
}

// nonBackIncomingCount is like incomingCount but excludes edges classified
// as back-edges. A cycle's only entry point can be the back-edge that
// closes it (a pure loop with no external trigger into its head), so
// seeding a ready-queue from raw in-degree leaves it empty forever; this
// gives the cyclic executor the in-degree it should seed roots from —
// zero non-back in-degree, i.e. "reachable without first completing a
// loop iteration."
func nonBackIncomingCount(nodes []NodeConfig, edges []EdgeConfig, backEdges map[EdgeConfig]bool) map[string]int {
	m := make(map[string]int, len(nodes))
	for _, n := range nodes {
		m[n.ID] = 0
	}
	for _, ed := range edges {
		if backEdges[ed] {
			continue
		}
		m[ed.Target]++
	}
	return m
}

// firingEdges returns the outgoing edges of nodeID that fire given the
// node's ActivePort: an edge with an empty Port is unconditional and
// always fires, otherwise it fires only if Port matches activePort exactly.
func firingEdges(all []EdgeConfig, activePort string) []EdgeConfig {
	var out []EdgeConfig
	for _, ed := range all {
		if ed.Port == "" || ed.Port == activePort {
			out = append(out, ed)
		}
	}
	return out
}

// detectCycle reports whether the node/edge set contains a cycle, via a
// standard DFS white/gray/black coloring walk, and returns the set of
// edges that close one: an edge is a back-edge when its target is still
// colored gray (an ancestor on the current DFS stack) at the moment the
// edge is visited.
func detectCycle(nodes []NodeConfig, edges []EdgeConfig) (bool, map[EdgeConfig]bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	adj := outgoingEdges(edges)
	backEdges := make(map[EdgeConfig]bool)
	hasCycle := false

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		for _, ed := range adj[id] {
			switch color[ed.Target] {
			case gray:
				backEdges[ed] = true
				hasCycle = true
			case white:
				visit(ed.Target)
			}
		}
		color[id] = black
	}

	for _, n := range nodes {
		if color[n.ID] == white {
			visit(n.ID)
		}
	}
	return hasCycle, backEdges
}

// topologicalOrder computes a Kahn's-algorithm topological ordering of an
// acyclic graph. It returns an error if the graph actually contains a
// cycle (used by DryRun, which falls back to reporting the bare node set).
func topologicalOrder(nodes []NodeConfig, edges []EdgeConfig) ([]string, map[string]int, error) {
	indeg := incomingCount(nodes, edges)
	adj := outgoingEdges(edges)

	var queue []string
	for _, n := range nodes {
		if indeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(nodes))
	index := make(map[string]int, len(nodes))
	remaining := make(map[string]int, len(nodes))
	for k, v := range indeg {
		remaining[k] = v
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		index[id] = len(order)
		order = append(order, id)
		for _, ed := range adj[id] {
			remaining[ed.Target]--
			if remaining[ed.Target] == 0 {
				queue = append(queue, ed.Target)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, nil, fmt.Errorf("graph contains a cycle")
	}
	return order, index, nil
}

// --- acyclic executor ---

// runGraphAcyclic schedules every node with Kahn's algorithm: a node becomes
// ready the first time any edge into it fires, runs exactly once, and is
// recorded in Metadata.CompletedNodes. Multiple edges firing into an
// already-completed node are no-ops — this is a DAG, so re-entry never
// legitimately happens.
func (e *Engine) runGraphAcyclic(ctx context.Context, execCtx *Context, resumeAt string) error {
	nodes := nodeByID(e.config.Nodes)
	adj := outgoingEdges(e.config.Edges)
	indeg := incomingCount(e.config.Nodes, e.config.Edges)

	queued := make(map[string]bool, len(e.config.Nodes))
	var queue []string

	if resumeAt != "" {
		queue = append(queue, resumeAt)
		queued[resumeAt] = true
	} else {
		for _, n := range e.config.Nodes {
			if indeg[n.ID] == 0 {
				queue = append(queue, n.ID)
				queued[n.ID] = true
			}
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		queued[id] = false

		if execCtx.Metadata.CompletedNodes[id] {
			continue
		}
		node, ok := nodes[id]
		if !ok {
			return &ConfigurationError{Issues: []string{fmt.Sprintf("edge targets unknown node %q", id)}}
		}

		outcome, err := e.runNode(ctx, execCtx, id, node.ComponentName, resolveErrorPolicy(node.OnError))
		if outcome == outcomeSuspended {
			return nil
		}
		if err != nil {
			return err
		}
		if outcome == outcomeSkipped {
			continue
		}
		execCtx.Metadata.MarkCompleted(id)

		for _, ed := range firingEdges(adj[id], execCtx.ActivePort) {
			if execCtx.Metadata.CompletedNodes[ed.Target] || queued[ed.Target] {
				continue
			}
			queue = append(queue, ed.Target)
			queued[ed.Target] = true
		}
	}
	return nil
}

// --- cyclic executor ---

// runGraphCyclic drives a graph known to contain at least one cycle with a
// bounded ready-queue: nodes may be revisited, so instead of
// Metadata.CompletedNodes (whose disjointness invariant excludes cycle
// participants entirely) every visit increments Metadata.NodeVisitCounts,
// and every firing back-edge increments the flow-wide
// Metadata.IterationCount, capped by Settings.MaxIterations and each node's
// own MaxVisits.
func (e *Engine) runGraphCyclic(ctx context.Context, execCtx *Context, resumeAt string, backEdges map[EdgeConfig]bool) error {
	nodes := nodeByID(e.config.Nodes)
	adj := outgoingEdges(e.config.Edges)
	indeg := nonBackIncomingCount(e.config.Nodes, e.config.Edges, backEdges)

	maxIterations := e.config.Settings.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultSettings().MaxIterations
	}

	inQueue := make(map[string]bool, len(e.config.Nodes))
	var queue []string

	if resumeAt != "" {
		queue = append(queue, resumeAt)
		inQueue[resumeAt] = true
	} else {
		for _, n := range e.config.Nodes {
			if indeg[n.ID] == 0 {
				queue = append(queue, n.ID)
				inQueue[n.ID] = true
			}
		}
	}

	for len(queue) > 0 {
		if execCtx.Metadata.IterationCount >= maxIterations {
			return e.handleMaxIterations(execCtx, queue[0])
		}

		id := queue[0]
		queue = queue[1:]
		inQueue[id] = false

		node, ok := nodes[id]
		if !ok {
			return &ConfigurationError{Issues: []string{fmt.Sprintf("edge targets unknown node %q", id)}}
		}

		if node.MaxVisits > 0 && execCtx.Metadata.NodeVisitCounts[id] >= node.MaxVisits {
			execCtx.Metadata.MarkSkipped(node.ComponentName)
			e.metrics.RecordSkipped(node.ComponentName, "max_visits")
			continue
		}

		execCtx.Metadata.IncrementVisit(id)

		outcome, err := e.runNode(ctx, execCtx, id, node.ComponentName, resolveErrorPolicy(node.OnError))
		if outcome == outcomeSuspended {
			return nil
		}
		if err != nil {
			return err
		}
		if outcome == outcomeSkipped {
			continue
		}

		for _, ed := range firingEdges(adj[id], execCtx.ActivePort) {
			if inQueue[ed.Target] {
				continue
			}
			if backEdges[ed] {
				execCtx.Metadata.IterationCount++
			}
			queue = append(queue, ed.Target)
			inQueue[ed.Target] = true
		}
	}
	return nil
}

// handleMaxIterations applies Settings.OnMaxIterations once IterationCount
// reaches Settings.MaxIterations. cycleEntryNode is whichever node was next
// in the ready queue when the cap was hit, recorded for diagnostics.
func (e *Engine) handleMaxIterations(execCtx *Context, cycleEntryNode string) error {
	execCtx.Metadata.MaxIterationsHit = true

	policy := e.config.Settings.OnMaxIterations
	if policy == "" {
		policy = OnMaxIterFail
	}
	e.metrics.RecordMaxIterationsHit(string(policy))

	switch policy {
	case OnMaxIterExit, OnMaxIterWarn:
		return nil
	default: // OnMaxIterFail
		return &MaxIterationsError{
			MaxIterations:    e.config.Settings.MaxIterations,
			ActualIterations: execCtx.Metadata.IterationCount,
			CycleEntryNode:   cycleEntryNode,
		}
	}
}
