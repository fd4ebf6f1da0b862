package wfc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Halffd/VoxelIsle/internal/logging"
	"github.com/Halffd/VoxelIsle/internal/voxel"
)

var (
	// ErrContradiction means some cell ran out of candidate types. Nothing
	// was written to the context.
	ErrContradiction = errors.New("wfc: contradiction")
	// ErrTimeout means the solve context expired first. Nothing was written.
	ErrTimeout = errors.New("wfc: solve timed out")
)

// EventKind classifies trace events.
type EventKind uint8

const (
	EventNarrow EventKind = iota
	EventCollapse
	EventInitialConflict
	EventContradiction
)

// Event is reported to the trace hook whenever a cell domain changes.
type Event struct {
	Kind   EventKind
	Pos    voxel.Position
	Before int
	After  int
	Value  voxel.BlockType
	Rule   Kind
}

type Option func(*Solver)

// WithSeaLevel sets the water line used by the collapse weights.
func WithSeaLevel(y int) Option {
	return func(s *Solver) { s.seaLevel = y }
}

// WithTrace installs a hook that observes every domain change.
func WithTrace(fn func(Event)) Option {
	return func(s *Solver) { s.trace = fn }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Solver) { s.log = log }
}

// Solver runs constraint-driven wave function collapse over small batches of
// positions. A Solver is immutable after construction and can be shared
// between goroutines; every Solve call keeps its state on the stack.
type Solver struct {
	constraints []Constraint
	structures  []Constraint
	seed        int64
	seaLevel    int
	trace       func(Event)
	log         logrus.FieldLogger
}

func NewSolver(constraints []Constraint, seed int64, opts ...Option) *Solver {
	s := &Solver{
		seed:     seed,
		seaLevel: 32,
		log:      logging.Named("wfc"),
	}
	for _, c := range constraints {
		if c.Kind == KindStructure {
			s.structures = append(s.structures, c)
			continue
		}
		s.constraints = append(s.constraints, c)
	}
	sort.SliceStable(s.constraints, func(i, j int) bool {
		return s.constraints[i].Priority > s.constraints[j].Priority
	})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithSeed returns a solver sharing the same rules under a different seed.
func (s *Solver) WithSeed(seed int64) *Solver {
	dup := *s
	dup.seed = seed
	return &dup
}

func (s *Solver) Seed() int64 { return s.seed }

// Constraints returns the rules Solve evaluates, in evaluation order.
func (s *Solver) Constraints() []Constraint {
	out := make([]Constraint, len(s.constraints))
	copy(out, s.constraints)
	return out
}

// Solve collapses every position to a single block type and writes the result
// into wc. It either commits the whole batch or nothing.
//
// The outcome is a function of the seed, the rules, the positions and what
// wc already contains.
func (s *Solver) Solve(ctx context.Context, wc WorldContext, positions []voxel.Position) error {
	b := newBatch(wc, positions)
	if len(b.order) == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(s.batchSeed(b.order)))

	var collapsed []voxel.Position
	for _, p := range b.order {
		if s.initialise(b, p) {
			collapsed = append(collapsed, p)
		}
	}
	for _, p := range collapsed {
		if err := s.propagate(ctx, b, p); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		p, ok := b.lowestEntropy(rng)
		if !ok {
			break
		}
		c := b.cells[p]
		before := c.domain.Len()
		v := s.sample(c.domain, p, rng)
		c.collapse(v)
		s.emit(Event{Kind: EventCollapse, Pos: p, Before: before, After: 1, Value: v})
		if err := s.propagate(ctx, b, p); err != nil {
			return err
		}
	}

	if err := s.validate(b); err != nil {
		return err
	}
	for _, p := range b.order {
		wc.SetBlockAt(p, b.cells[p].value)
	}
	return nil
}

// initialise narrows the cell at p by every rule once. It reports whether
// the cell ended up collapsed.
func (s *Solver) initialise(b *batch, p voxel.Position) bool {
	c := b.cells[p]
	view := b.view()
	for _, rule := range s.constraints {
		allowed := rule.AllowedTypes(p, view)
		next := c.domain.Intersect(allowed)
		if next.Empty() {
			// The rule disagrees with everything left; leave it to the final
			// validation pass.
			s.emit(Event{Kind: EventInitialConflict, Pos: p, Before: c.domain.Len(), Rule: rule.Kind})
			s.log.WithFields(logrus.Fields{"pos": p.String(), "rule": rule.String()}).Debug("initial constraint conflict")
			continue
		}
		if next != c.domain {
			s.emit(Event{Kind: EventNarrow, Pos: p, Before: c.domain.Len(), After: next.Len(), Rule: rule.Kind})
			c.domain = next
		}
	}
	if v, ok := c.domain.Single(); ok {
		c.collapse(v)
		s.emit(Event{Kind: EventCollapse, Pos: p, Before: 1, After: 1, Value: v})
		return true
	}
	return false
}

// propagate removes unsupported types from uncollapsed neighbours, breadth
// first, starting from start.
func (s *Solver) propagate(ctx context.Context, b *batch, start voxel.Position) error {
	queue := []voxel.Position{start}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		cur := queue[0]
		queue = queue[1:]
		cc := b.cells[cur]

		for _, d := range voxel.Directions {
			np := cur.Add(d)
			nc, ok := b.cells[np]
			if !ok || nc.collapsed {
				continue
			}
			next := s.supported(b, cur, cc.domain, np, nc.domain)
			if next == nc.domain {
				continue
			}
			if next.Empty() {
				s.emit(Event{Kind: EventContradiction, Pos: np, Before: nc.domain.Len()})
				return fmt.Errorf("%w at %s", ErrContradiction, np)
			}
			s.emit(Event{Kind: EventNarrow, Pos: np, Before: nc.domain.Len(), After: next.Len()})
			nc.domain = next
			if v, single := next.Single(); single {
				nc.collapse(v)
				s.emit(Event{Kind: EventCollapse, Pos: np, Before: 1, After: 1, Value: v})
			}
			queue = append(queue, np)
		}
	}
	return nil
}

// supported keeps each neighbour type that at least one remaining type of
// the current cell can sit next to under every rule.
func (s *Solver) supported(b *batch, cur voxel.Position, curDomain voxel.BlockSet, np voxel.Position, nDomain voxel.BlockSet) voxel.BlockSet {
	curTypes := curDomain.Types()
	var keep voxel.BlockSet
	for _, nb := range nDomain.Types() {
		for _, a := range curTypes {
			if s.pairValid(b, cur, a, np, nb) {
				keep = keep.Add(nb)
				break
			}
		}
	}
	return keep
}

func (s *Solver) pairValid(b *batch, p voxel.Position, a voxel.BlockType, q voxel.Position, bt voxel.BlockType) bool {
	view := b.pairView(p, a, q, bt)
	for _, rule := range s.constraints {
		if !rule.IsValid(q, bt, view) || !rule.IsValid(p, a, view) {
			return false
		}
	}
	return true
}

func (s *Solver) validate(b *batch) error {
	view := b.view()
	for _, p := range b.order {
		v := b.cells[p].value
		for _, rule := range s.constraints {
			if !rule.IsValid(p, v, view) {
				s.emit(Event{Kind: EventContradiction, Pos: p, Before: 1, Value: v, Rule: rule.Kind})
				return fmt.Errorf("%w: %s breaks %s at %s", ErrContradiction, v, rule, p)
			}
		}
	}
	return nil
}

// sample draws from the domain with context dependent weights.
func (s *Solver) sample(domain voxel.BlockSet, p voxel.Position, rng *rand.Rand) voxel.BlockType {
	types := domain.Types()
	weights := make([]float64, len(types))
	total := 0.0
	for i, t := range types {
		weights[i] = s.weight(t, p.Y)
		total += weights[i]
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return types[i]
		}
	}
	return types[len(types)-1]
}

func (s *Solver) weight(t voxel.BlockType, y int) float64 {
	switch t {
	case voxel.Water:
		if y <= s.seaLevel {
			return 2.0
		}
		return 0.1
	case voxel.Grass:
		if y > s.seaLevel && y < 50 {
			return 1.5
		}
		return 0.5
	case voxel.Stone:
		if y < 40 {
			return 1.2
		}
		return 0.8
	case voxel.Air:
		if y > s.seaLevel+3 {
			return 1.1
		}
		return 0.3
	default:
		return 1.0
	}
}

func (s *Solver) batchSeed(order []voxel.Position) int64 {
	h := uint64(s.seed)
	for _, p := range order {
		h = voxel.Hash3(int64(h), p.X, p.Y, p.Z)
	}
	return int64(h)
}

func (s *Solver) emit(ev Event) {
	if s.trace != nil {
		s.trace(ev)
	}
}
