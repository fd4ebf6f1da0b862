package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/logging"
)

// ErrWorkerFailure wraps a panic recovered from a job.
var ErrWorkerFailure = errors.New("world: worker failure")

// JobKind is the work a worker does for a chunk.
type JobKind uint8

const (
	JobGenerate JobKind = iota
	JobRebuildMesh
)

func (k JobKind) String() string {
	switch k {
	case JobGenerate:
		return "generate"
	case JobRebuildMesh:
		return "rebuild-mesh"
	default:
		return fmt.Sprintf("job(%d)", k)
	}
}

type Job struct {
	ID       uuid.UUID
	Kind     JobKind
	Coord    ChunkCoord
	Enqueued time.Time

	chunk *Chunk
}

type jobResult struct {
	job      Job
	chunk    *Chunk
	restored bool
	err      error
	elapsed  time.Duration
}

// SchedulerStats is a point-in-time summary of the streaming state.
type SchedulerStats struct {
	Loaded    int
	Pending   int
	Queued    int
	Generated int64
	Restored  int64
	Rebuilt   int64
	Evicted   int64
	Discarded int64
	Failed    int64
}

// Scheduler streams chunks around a reference position. Update, Run,
// Pregenerate and Close belong to one control goroutine; everything else
// may be called from anywhere.
type Scheduler struct {
	source    BlockSource
	neighbors NeighborSource
	store     ChunkStore
	log       logrus.FieldLogger

	renderDistance int
	hysteresis     int
	workerCount    int
	tickRate       time.Duration

	// job queue
	qmu      sync.Mutex
	qcond    *sync.Cond
	queue    []Job
	rebuilds map[ChunkCoord]struct{}
	running  bool
	workers  errgroup.Group

	// completion buffer
	rmu     sync.Mutex
	results []jobResult

	// loaded is replaced wholesale by the control goroutine.
	loaded atomic.Pointer[map[ChunkCoord]*Chunk]

	pmu     sync.Mutex
	pending map[ChunkCoord]uuid.UUID

	center    ChunkCoord
	hasCenter bool
	retry     bool
	closed    bool

	generated atomic.Int64
	restored  atomic.Int64
	rebuilt   atomic.Int64
	evicted   atomic.Int64
	discarded atomic.Int64
	failed    atomic.Int64

	// onEnqueue observes every queued job. Tests only.
	onEnqueue func(Job)
}

type SchedulerOption func(*Scheduler)

func WithStore(store ChunkStore) SchedulerOption {
	return func(s *Scheduler) { s.store = store }
}

func WithSchedulerLogger(log logrus.FieldLogger) SchedulerOption {
	return func(s *Scheduler) { s.log = log }
}

// NewScheduler starts the worker pool. source fills chunks and neighbors
// resolves cross-chunk faces while meshing.
func NewScheduler(cfg config.StreamingConfig, source BlockSource, neighbors NeighborSource, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		source:         source,
		neighbors:      neighbors,
		store:          NewMemoryStore(),
		log:            logging.Named("streaming"),
		renderDistance: cfg.RenderDistance,
		hysteresis:     cfg.Hysteresis,
		workerCount:    max(cfg.Workers, 1),
		tickRate:       cfg.TickRate.Duration(),
		rebuilds:       make(map[ChunkCoord]struct{}),
		pending:        make(map[ChunkCoord]uuid.UUID),
		running:        true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.qcond = sync.NewCond(&s.qmu)
	empty := make(map[ChunkCoord]*Chunk)
	s.loaded.Store(&empty)

	for i := 0; i < s.workerCount; i++ {
		s.workers.Go(s.work)
	}
	return s
}

// Loaded returns an immutable snapshot of the committed chunks. Callers must
// not modify the map.
func (s *Scheduler) Loaded() map[ChunkCoord]*Chunk {
	return *s.loaded.Load()
}

// Chunk returns a committed chunk.
func (s *Scheduler) Chunk(coord ChunkCoord) (*Chunk, bool) {
	c, ok := s.Loaded()[coord]
	return c, ok
}

// Pending reports how many generate jobs have not been drained yet.
func (s *Scheduler) Pending() int {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) Stats() SchedulerStats {
	s.qmu.Lock()
	queued := len(s.queue)
	s.qmu.Unlock()
	return SchedulerStats{
		Loaded:    len(s.Loaded()),
		Pending:   s.Pending(),
		Queued:    queued,
		Generated: s.generated.Load(),
		Restored:  s.restored.Load(),
		Rebuilt:   s.rebuilt.Load(),
		Evicted:   s.evicted.Load(),
		Discarded: s.discarded.Load(),
		Failed:    s.failed.Load(),
	}
}

// evictRadius is how far a loaded chunk may drift before it is dropped.
func (s *Scheduler) evictRadius() int {
	return s.renderDistance + s.hysteresis
}

// Update drains finished jobs and, when the reference position moved into
// another chunk, requests the chunks now in range and evicts those that fell
// out of it. It never blocks on workers.
func (s *Scheduler) Update(ref mgl64.Vec3) {
	if s.closed {
		return
	}
	s.drain()

	c := ChunkAt(ref)
	if s.hasCenter && c == s.center && !s.retry {
		return
	}
	moved := !s.hasCenter || c != s.center
	s.center, s.hasCenter, s.retry = c, true, false

	evicted := s.evict(c)
	queued := s.request(c)
	if moved || queued > 0 || evicted > 0 {
		s.log.WithFields(logrus.Fields{
			"center":  c.String(),
			"queued":  queued,
			"evicted": evicted,
			"loaded":  len(s.Loaded()),
		}).Debug("streaming window moved")
	}
}

// Run calls Update every tick with the position reported by ref until ctx is
// done.
func (s *Scheduler) Run(ctx context.Context, ref func() mgl64.Vec3) error {
	tick := s.tickRate
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	t := time.NewTicker(tick)
	defer t.Stop()

	s.Update(ref())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Update(ref())
		}
	}
}

// request queues a generate job for every coordinate in range that is
// neither loaded nor pending.
func (s *Scheduler) request(center ChunkCoord) int {
	loaded := s.Loaded()
	var jobs []Job
	s.pmu.Lock()
	for _, coord := range center.Within(s.renderDistance) {
		if _, ok := loaded[coord]; ok {
			continue
		}
		if _, ok := s.pending[coord]; ok {
			continue
		}
		job := Job{
			ID:       uuid.New(),
			Kind:     JobGenerate,
			Coord:    coord,
			Enqueued: time.Now(),
			chunk:    NewChunk(coord, s.neighbors),
		}
		s.pending[coord] = job.ID
		jobs = append(jobs, job)
	}
	s.pmu.Unlock()

	s.enqueue(jobs...)
	return len(jobs)
}

// evict drops loaded chunks beyond the eviction radius, saving edited ones.
func (s *Scheduler) evict(center ChunkCoord) int {
	loaded := s.Loaded()
	var gone []ChunkCoord
	for coord := range loaded {
		if coord.Distance(center) > s.evictRadius() {
			gone = append(gone, coord)
		}
	}
	if len(gone) == 0 {
		return 0
	}

	next := make(map[ChunkCoord]*Chunk, len(loaded)-len(gone))
	for coord, ch := range loaded {
		next[coord] = ch
	}
	for _, coord := range gone {
		delete(next, coord)
	}
	s.loaded.Store(&next)
	for _, coord := range gone {
		s.release(loaded[coord])
	}
	s.evicted.Add(int64(len(gone)))
	return len(gone)
}

// release disposes a chunk and saves it first if it was edited.
func (s *Scheduler) release(ch *Chunk) {
	if ch.Edited() {
		if err := s.store.Save(ch.Coord(), ch.Blocks()); err != nil {
			s.log.WithError(err).WithField("chunk", ch.Coord().String()).Error("failed to save edited chunk")
		}
	}
	ch.Dispose()
}

// RequestRebuild queues a mesh rebuild for a loaded chunk unless one is
// already waiting. It must be called after the edit it follows.
func (s *Scheduler) RequestRebuild(coord ChunkCoord) bool {
	ch, ok := s.Chunk(coord)
	if !ok {
		return false
	}
	s.qmu.Lock()
	if _, queued := s.rebuilds[coord]; queued || !s.running {
		s.qmu.Unlock()
		return queued
	}
	s.rebuilds[coord] = struct{}{}
	s.qmu.Unlock()

	s.enqueue(Job{
		ID:       uuid.New(),
		Kind:     JobRebuildMesh,
		Coord:    coord,
		Enqueued: time.Now(),
		chunk:    ch,
	})
	return true
}

func (s *Scheduler) enqueue(jobs ...Job) {
	if len(jobs) == 0 {
		return
	}
	s.qmu.Lock()
	s.queue = append(s.queue, jobs...)
	s.qmu.Unlock()
	if s.onEnqueue != nil {
		for _, job := range jobs {
			s.onEnqueue(job)
		}
	}
	s.qcond.Broadcast()
}

// next blocks until a job is available. It reports false once the
// scheduler stops.
func (s *Scheduler) next() (Job, bool) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	for len(s.queue) == 0 && s.running {
		s.qcond.Wait()
	}
	if !s.running {
		return Job{}, false
	}
	job := s.queue[0]
	s.queue[0] = Job{}
	s.queue = s.queue[1:]
	if job.Kind == JobRebuildMesh {
		delete(s.rebuilds, job.Coord)
	}
	return job, true
}

func (s *Scheduler) work() error {
	for {
		job, ok := s.next()
		if !ok {
			return nil
		}
		res := s.execute(job)
		s.rmu.Lock()
		s.results = append(s.results, res)
		s.rmu.Unlock()
	}
}

// execute runs one job. Panics become ErrWorkerFailure results so a bad
// chunk cannot take a worker down.
func (s *Scheduler) execute(job Job) (res jobResult) {
	start := time.Now()
	res = jobResult{job: job, chunk: job.chunk}
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("%w: %s %s: %v", ErrWorkerFailure, job.Kind, job.Coord, r)
		}
		res.elapsed = time.Since(start)
	}()

	switch job.Kind {
	case JobGenerate:
		res.restored, res.err = s.populate(job.chunk)
	case JobRebuildMesh:
		if !job.chunk.Disposed() {
			job.chunk.CreateMesh()
		}
	}
	return res
}

// populate restores a saved chunk or generates a fresh one. A saved record
// that cannot be read back is deleted so the chunk regenerates cleanly.
func (s *Scheduler) populate(ch *Chunk) (bool, error) {
	blocks, err := s.store.Load(ch.Coord())
	if err == nil {
		err = ch.Restore(blocks)
		if err == nil {
			return true, nil
		}
	}
	if !errors.Is(err, ErrChunkNotStored) {
		log := s.log.WithError(err).WithField("chunk", ch.Coord().String())
		log.Warn("saved chunk unreadable, regenerating")
		if derr := s.store.Delete(ch.Coord()); derr != nil {
			log.WithError(derr).Error("failed to delete unreadable chunk")
		}
	}
	ch.Generate(s.source)
	return false, nil
}

// drain commits finished generate jobs. It is the only place chunks enter
// the loaded map.
func (s *Scheduler) drain() {
	s.rmu.Lock()
	results := s.results
	s.results = nil
	s.rmu.Unlock()
	if len(results) == 0 {
		return
	}

	loaded := s.Loaded()
	var next map[ChunkCoord]*Chunk
	for _, res := range results {
		log := s.log.WithFields(logrus.Fields{
			"job":     res.job.ID.String(),
			"kind":    res.job.Kind.String(),
			"chunk":   res.job.Coord.String(),
			"elapsed": res.elapsed,
		})
		if res.job.Kind == JobGenerate && !s.resolvePending(res.job) {
			log.Warn("dropping result of a superseded generate job")
			res.chunk.Dispose()
			s.discarded.Add(1)
			continue
		}
		if res.err != nil {
			s.failed.Add(1)
			log.WithError(res.err).Error("job failed")
			if res.job.Kind == JobGenerate {
				s.retry = true
			}
			continue
		}
		if res.job.Kind == JobRebuildMesh {
			s.rebuilt.Add(1)
			continue
		}

		if res.restored {
			s.restored.Add(1)
		} else {
			s.generated.Add(1)
		}
		if s.hasCenter && res.job.Coord.Distance(s.center) > s.evictRadius() {
			res.chunk.Dispose()
			s.discarded.Add(1)
			continue
		}
		if next == nil {
			next = make(map[ChunkCoord]*Chunk, len(loaded)+len(results))
			for coord, ch := range loaded {
				next[coord] = ch
			}
		}
		next[res.job.Coord] = res.chunk
		log.Debug("chunk committed")
	}
	if next != nil {
		s.loaded.Store(&next)
	}
}

// resolvePending clears the pending entry owned by job. It reports false when the
// coordinate is pending under another job id, or not pending at all.
func (s *Scheduler) resolvePending(job Job) bool {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	id, ok := s.pending[job.Coord]
	if !ok || id != job.ID {
		return false
	}
	delete(s.pending, job.Coord)
	return true
}

// Pregenerate synchronously fills the square of chunks around center on a
// pond pool and commits them. It is meant for start-up, before the tick
// loop runs, and returns how many chunks were added.
func (s *Scheduler) Pregenerate(ctx context.Context, center ChunkCoord, radius int) (int, error) {
	if s.closed {
		return 0, errors.New("scheduler is closed")
	}
	loaded := s.Loaded()
	var chunks []*Chunk
	s.pmu.Lock()
	for _, coord := range center.Within(radius) {
		_, isLoaded := loaded[coord]
		_, isPending := s.pending[coord]
		if isLoaded || isPending {
			continue
		}
		chunks = append(chunks, NewChunk(coord, s.neighbors))
	}
	s.pmu.Unlock()
	if len(chunks) == 0 {
		return 0, nil
	}

	pool := pond.NewPool(s.workerCount, pond.WithContext(ctx))
	defer pool.StopAndWait()
	group := pool.NewGroup()
	results := make([]jobResult, len(chunks))
	for i, ch := range chunks {
		group.Submit(func() {
			results[i] = s.execute(Job{ID: uuid.New(), Kind: JobGenerate, Coord: ch.Coord(), chunk: ch})
		})
	}
	// Tasks not started before ctx ends are skipped; ctx is checked below.
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("pregenerate: %w", err)
	}

	next := make(map[ChunkCoord]*Chunk, len(loaded)+len(chunks))
	for coord, ch := range loaded {
		next[coord] = ch
	}
	added := 0
	var errs []error
	for _, res := range results {
		if res.err != nil {
			s.failed.Add(1)
			errs = append(errs, res.err)
			continue
		}
		if res.restored {
			s.restored.Add(1)
		} else {
			s.generated.Add(1)
		}
		next[res.job.Coord] = res.chunk
		added++
	}
	s.loaded.Store(&next)
	s.log.WithFields(logrus.Fields{"center": center.String(), "radius": radius, "added": added}).Info("pregenerated chunks")
	return added, errors.Join(errs...)
}

// Close stops the workers, lets in-flight jobs finish, then releases every
// loaded chunk and closes the store.
func (s *Scheduler) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.qmu.Lock()
	s.running = false
	dropped := len(s.queue)
	s.queue = nil
	s.qmu.Unlock()
	s.qcond.Broadcast()

	err := s.workers.Wait()
	s.drain()
	s.pmu.Lock()
	clear(s.pending)
	s.pmu.Unlock()

	loaded := s.Loaded()
	coords := make([]ChunkCoord, 0, len(loaded))
	for coord := range loaded {
		coords = append(coords, coord)
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Z < coords[j].Z
	})
	for _, coord := range coords {
		s.release(loaded[coord])
	}
	empty := make(map[ChunkCoord]*Chunk)
	s.loaded.Store(&empty)

	s.log.WithFields(logrus.Fields{"released": len(coords), "dropped": dropped}).Info("streaming stopped")
	return errors.Join(err, s.store.Close())
}
