package core

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
)

// AssociationType names the edge kind attached at creation (§4.9). Strengthen
// keeps the non-empty type an edge already has: a later call's typ argument
// only applies to a new edge (or one with no type), and no call overrides an
// existing type.
type AssociationType string

const (
	AssocSemantic AssociationType = "semantic"
	AssocTemporal AssociationType = "temporal"
	AssocCausal   AssociationType = "causal"
	AssocEmotional AssociationType = "emotional"
	AssocSpatial  AssociationType = "spatial"
	AssocGoal     AssociationType = "goal"
)

// Association is a directed edge from one memory to another.
type Association struct {
	TargetID         uuid.UUID
	Weight           float64
	Type             AssociationType
	CoactivationCount int
	LastCoactivated  time.Time
}

// contentUUID derives a deterministic id for a piece of Content that has
// not (yet) been persisted as a Memory, so transient working-memory
// candidates can still be used as AssociationGraph node ids (the graph is
// keyed by uuid.UUID throughout, whether the node is a persisted memory or
// a same-cycle candidate).
func contentUUID(c Content) uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	bytes, err := c.Serialize()
	if err != nil {
		bytes = []byte(c.SummarizeForLog())
	}
	return uuid.NewSHA1(uuid.Nil, bytes)
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

// AssociationGraph is the typed directed-edge store with Hebbian-style
// weight updates (§4.9). It holds an in-memory mirror of the edges whose
// authoritative payload lives in the long-term store; writers update the
// store first and the mirror second (dual-write discipline).
type AssociationGraph struct {
	store LongTermStore
	mu    sync.RWMutex
	edges map[uuid.UUID]map[uuid.UUID]*Association
	clock Clock
}

func NewAssociationGraph(store LongTermStore, clock Clock) *AssociationGraph {
	if clock == nil {
		clock = RealClock
	}
	return &AssociationGraph{
		store: store,
		edges: make(map[uuid.UUID]map[uuid.UUID]*Association),
		clock: clock,
	}
}

// Strengthen updates an edge's weight by delta (clamped to [0,1]),
// increments its coactivation count, and stamps LastCoactivated. The
// authoritative payload (in the long-term store) is written first; the
// in-memory mirror second, so readers never observe a mirror edge the
// store does not also have.
func (g *AssociationGraph) Strengthen(ctx context.Context, source, target uuid.UUID, delta float64, typ AssociationType) (*Association, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing := g.edges[source][target]
	weight := delta
	useType := typ
	coact := 1
	if existing != nil {
		weight = clampWeight(existing.Weight + delta)
		if existing.Type != "" {
			useType = existing.Type
		}
		coact = existing.CoactivationCount + 1
	} else {
		weight = clampWeight(weight)
	}

	assoc := Association{
		TargetID:          target,
		Weight:            weight,
		Type:              useType,
		CoactivationCount: coact,
		LastCoactivated:   g.clock.Now(),
	}

	if g.store != nil {
		if err := g.store.UpsertAssociation(ctx, source, assoc); err != nil {
			return nil, &StoreError{Op: "strengthen", Collection: "conscious", Err: err}
		}
	}

	if g.edges[source] == nil {
		g.edges[source] = make(map[uuid.UUID]*Association)
	}
	g.edges[source][target] = &assoc
	return &assoc, nil
}

// Decay applies time-based weight decay to every edge not present in
// touched (edges the caller already strengthened this pass are exempt, so a
// single replay pass never both strengthens and decays the same edge),
// pruning any edge that falls below minWeight and emitting
// AssociationPruned for each one. It stops after maxUpdates edges to share
// the replay pass's latency budget with Strengthen, and returns the number
// of edges pruned.
func (g *AssociationGraph) Decay(ctx context.Context, perDay, minWeight float64, touched map[[2]uuid.UUID]struct{}, now time.Time, maxUpdates int) (int, error) {
	g.mu.Lock()

	type edgeRef struct {
		source, target uuid.UUID
		assoc          *Association
	}
	var candidates []edgeRef
	for source, targets := range g.edges {
		for target, assoc := range targets {
			if _, skip := touched[[2]uuid.UUID{source, target}]; skip {
				continue
			}
			candidates = append(candidates, edgeRef{source, target, assoc})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].source != candidates[j].source {
			return candidates[i].source.String() < candidates[j].source.String()
		}
		return candidates[i].target.String() < candidates[j].target.String()
	})

	pruned := 0
	updates := 0
	var toPrune []edgeRef
	for _, c := range candidates {
		if updates >= maxUpdates {
			break
		}
		days := now.Sub(c.assoc.LastCoactivated).Hours() / 24
		if days <= 0 {
			continue
		}
		c.assoc.Weight = clampWeight(c.assoc.Weight - perDay*days)
		updates++
		if c.assoc.Weight < minWeight {
			toPrune = append(toPrune, c)
		}
	}
	for _, c := range toPrune {
		delete(g.edges[c.source], c.target)
		pruned++
	}
	g.mu.Unlock()

	for _, c := range toPrune {
		capitan.Emit(ctx, AssociationPruned,
			FieldAssociationSource.Field(c.source.String()),
			FieldAssociationTarget.Field(c.target.String()),
			FieldAssociationWeight.Field(c.assoc.Weight),
		)
	}
	return pruned, nil
}

// Dominant returns the highest-weight outgoing edge's type from node, or
// false if node has no outgoing edges.
func (g *AssociationGraph) Dominant(node uuid.UUID) (AssociationType, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best *Association
	for _, assoc := range g.edges[node] {
		if best == nil || assoc.Weight > best.Weight {
			best = assoc
		}
	}
	if best == nil {
		return "", false
	}
	return best.Type, true
}

// aggregationFn is the activation-combination function Spread picks from its
// Aggregation argument.
type aggregationFn func(a, b float64) float64

func maxAgg(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func sumAgg(a, b float64) float64 {
	return a + b
}

// Spread runs BFS activation spreading from seed_ids up to depth hops,
// multiplying activation by decay at each hop, ignoring edges below
// min_weight, and combining multi-path activation with the configured
// aggregation. In Sum mode the result is clipped to 1.0 (max_activation).
func (g *AssociationGraph) Spread(seeds []uuid.UUID, depth int, decay, minWeight float64, agg Aggregation, bidirectional bool) map[uuid.UUID]float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	combine := maxAgg
	if agg == Sum {
		combine = sumAgg
	}

	activation := make(map[uuid.UUID]float64, len(seeds))
	frontier := make(map[uuid.UUID]float64, len(seeds))
	for _, s := range seeds {
		activation[s] = 1.0
		frontier[s] = 1.0
	}

	for hop := 0; hop < depth; hop++ {
		next := make(map[uuid.UUID]float64)
		for node, act := range frontier {
			for target, edge := range g.neighbors(node, bidirectional) {
				if edge.Weight < minWeight {
					continue
				}
				propagated := act * decay * edge.Weight
				if propagated <= 0 {
					continue
				}
				if cur, ok := next[target]; ok {
					next[target] = combine(cur, propagated)
				} else {
					next[target] = propagated
				}
			}
		}
		for target, act := range next {
			if cur, ok := activation[target]; ok {
				activation[target] = combine(cur, act)
			} else {
				activation[target] = act
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	if agg == Sum {
		for id, act := range activation {
			if act > 1.0 {
				activation[id] = 1.0
			}
		}
	}
	return activation
}

func (g *AssociationGraph) neighbors(node uuid.UUID, bidirectional bool) map[uuid.UUID]*Association {
	out := make(map[uuid.UUID]*Association)
	for target, edge := range g.edges[node] {
		out[target] = edge
	}
	if bidirectional {
		for source, edges := range g.edges {
			if edge, ok := edges[node]; ok {
				if _, already := out[source]; !already {
					out[source] = edge
				}
			}
		}
	}
	return out
}

// graphmlNode/graphmlEdge/graphmlDocument model the minimal subset of the
// GraphML XML dialect needed to export this graph for external
// visualization collaborators (§6, out of scope for the core itself).
type graphmlNode struct {
	ID string `xml:"id,attr"`
}

type graphmlEdge struct {
	Source string  `xml:"source,attr"`
	Target string  `xml:"target,attr"`
	Weight float64 `xml:"weight,attr"`
	Type   string  `xml:"type,attr"`
}

type graphmlGraph struct {
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphmlNode `xml:"node"`
	Edges       []graphmlEdge `xml:"edge"`
}

type graphmlDocument struct {
	XMLName xml.Name     `xml:"graphml"`
	Graph   graphmlGraph `xml:"graph"`
}

// ExportGraphML serializes the current in-memory mirror to GraphML bytes.
func (g *AssociationGraph) ExportGraphML() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodeSet := make(map[uuid.UUID]struct{})
	var edges []graphmlEdge
	for source, targets := range g.edges {
		nodeSet[source] = struct{}{}
		for target, edge := range targets {
			nodeSet[target] = struct{}{}
			edges = append(edges, graphmlEdge{
				Source: source.String(),
				Target: target.String(),
				Weight: edge.Weight,
				Type:   string(edge.Type),
			})
		}
	}

	nodes := make([]graphmlNode, 0, len(nodeSet))
	for id := range nodeSet {
		nodes = append(nodes, graphmlNode{ID: id.String()})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	doc := graphmlDocument{
		Graph: graphmlGraph{
			EdgeDefault: "directed",
			Nodes:       nodes,
			Edges:       edges,
		},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("export graphml: %w", err)
	}
	return buf.Bytes(), nil
}
