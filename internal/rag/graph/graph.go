package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/nodeconfig"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

// End is the terminal successor label.
const End = "end"

// BranchFunc maps the current state to the label of the next node.
type BranchFunc func(bag state.Bag) string

type entry struct {
	node   node.Node
	policy nodeconfig.RunPolicy
}

// Builder assembles a directed node graph. Edges are either
// unconditional or a branch function evaluated on the live state bag.
type Builder struct {
	dispatcher *node.Dispatcher
	log        *logger.Logger
	nodes      map[string]entry
	order      []string
	edges      map[string]string
	branches   map[string]BranchFunc
	start      string
	err        error
}

func NewBuilder(d *node.Dispatcher, log *logger.Logger) *Builder {
	return &Builder{
		dispatcher: d,
		log:        log.With("component", "PipelineGraph"),
		nodes:      map[string]entry{},
		edges:      map[string]string{},
		branches:   map[string]BranchFunc{},
	}
}

func (b *Builder) Add(n node.Node, policy nodeconfig.RunPolicy) *Builder {
	name := n.Name()
	if _, dup := b.nodes[name]; dup {
		b.err = fmt.Errorf("duplicate node %q", name)
		return b
	}
	if policy.Timeout <= 0 {
		policy.Timeout = 5 * time.Second
	}
	if policy.Retries < 0 {
		policy.Retries = 0
	}
	b.nodes[name] = entry{node: n, policy: policy}
	b.order = append(b.order, name)
	if b.start == "" {
		b.start = name
	}
	return b
}

func (b *Builder) Start(name string) *Builder {
	b.start = name
	return b
}

func (b *Builder) Edge(from, to string) *Builder {
	b.edges[from] = to
	return b
}

func (b *Builder) Branch(from string, fn BranchFunc) *Builder {
	b.branches[from] = fn
	return b
}

func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.start == "" {
		return nil, errors.New("graph has no nodes")
	}
	if _, ok := b.nodes[b.start]; !ok {
		return nil, fmt.Errorf("unknown start node %q", b.start)
	}
	for from, to := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("edge from unknown node %q", from)
		}
		if to != End {
			if _, ok := b.nodes[to]; !ok {
				return nil, fmt.Errorf("edge %q -> unknown node %q", from, to)
			}
		}
	}
	for from := range b.branches {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("branch from unknown node %q", from)
		}
	}
	return &Graph{
		dispatcher: b.dispatcher,
		log:        b.log,
		nodes:      b.nodes,
		edges:      b.edges,
		branches:   b.branches,
		start:      b.start,
		maxSteps:   4 * len(b.nodes),
	}, nil
}

// Graph drives one request through the node sequence. Nodes of one
// request never run in parallel with each other; fan-out happens
// inside node bodies.
type Graph struct {
	dispatcher *node.Dispatcher
	log        *logger.Logger
	nodes      map[string]entry
	edges      map[string]string
	branches   map[string]BranchFunc
	start      string
	maxSteps   int
}

func (g *Graph) Run(ctx context.Context, bag state.Bag) error {
	current := g.start
	for steps := 0; current != End; steps++ {
		if steps >= g.maxSteps {
			return fmt.Errorf("graph exceeded %d steps at node %q", g.maxSteps, current)
		}
		e, ok := g.nodes[current]
		if !ok {
			return fmt.Errorf("graph routed to unknown node %q", current)
		}
		if err := g.runNode(ctx, e, bag); err != nil {
			return fmt.Errorf("node %q: %w", current, err)
		}
		current = g.next(current, bag)
	}
	return nil
}

func (g *Graph) runNode(ctx context.Context, e entry, bag state.Bag) error {
	var lastErr error
	for attempt := 0; attempt <= e.policy.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		nodeCtx, cancel := context.WithTimeout(ctx, e.policy.Timeout)
		err := g.dispatcher.Dispatch(nodeCtx, e.node, bag)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		// Contract failures are deterministic; retrying cannot help.
		var missing *node.MissingInputError
		if errors.As(err, &missing) {
			return err
		}
		if attempt < e.policy.Retries {
			g.log.Warn("node failed, retrying",
				"node", e.node.Name(), "attempt", attempt+1, "error", err)
		}
	}
	return lastErr
}

func (g *Graph) next(current string, bag state.Bag) string {
	if fn, ok := g.branches[current]; ok {
		return fn(bag)
	}
	if to, ok := g.edges[current]; ok {
		return to
	}
	return End
}
