package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/groupmesh/bus"
	"github.com/hupe1980/groupmesh/core"
	"github.com/hupe1980/groupmesh/history"
	"github.com/hupe1980/groupmesh/lifecycle"
	"github.com/hupe1980/groupmesh/logging"
	"github.com/hupe1980/groupmesh/store"
	"github.com/hupe1980/groupmesh/strategy"
)

// Config defines tuning parameters for the coordinator's assignment behavior.
type Config struct {
	// LockTimeout bounds how long an assignment waits to enter a session's
	// exclusive section before the attempt fails with a timeout. Zero
	// disables the bound.
	LockTimeout time.Duration

	// MaxAttempts limits how many candidate sessions one assignment consults
	// after lost occupancy races before the participant is deferred.
	MaxAttempts int

	// RescanParallelism bounds how many waiting participants a pool rescan
	// evaluates concurrently.
	RescanParallelism int

	// EventBuffer sets the per-subscriber buffer of the default event bus.
	EventBuffer int
}

// DefaultConfig provides production-ready defaults: a two second lock wait
// bound, four candidate attempts per assignment, four parallel rescan workers
// and a 64 event subscriber buffer.
var DefaultConfig = Config{
	LockTimeout:       2 * time.Second,
	MaxAttempts:       4,
	RescanParallelism: 4,
	EventBuffer:       64,
}

// Options configures a Coordinator using the functional options pattern.
// All collaborators have in-memory defaults so a bare New() is immediately
// usable for development and testing.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Store owns matching attribute state. Defaults to the in-memory store.
	Store core.AttributeStore

	// Bus receives lifecycle events. Defaults to the in-memory bus.
	Bus core.EventBus

	// History persists assignment records. Defaults to the in-memory log.
	History core.AssignmentLog

	// Policy maps session configuration to effective capacity and minimum
	// viable size. Defaults to core.DefaultCapacityPolicy.
	Policy core.CapacityPolicy

	// Hooks extends the assignment pipeline. Defaults to an empty manager.
	Hooks *HookManager

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// WithConfig sets the operational parameters.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithStore sets the attribute store.
func WithStore(s core.AttributeStore) func(o *Options) {
	return func(o *Options) { o.Store = s }
}

// WithBus sets the outbound event bus.
func WithBus(b core.EventBus) func(o *Options) {
	return func(o *Options) { o.Bus = b }
}

// WithHistory sets the assignment log.
func WithHistory(l core.AssignmentLog) func(o *Options) {
	return func(o *Options) { o.History = l }
}

// WithPolicy sets the capacity policy.
func WithPolicy(p core.CapacityPolicy) func(o *Options) {
	return func(o *Options) { o.Policy = p }
}

// WithHooks sets the hook manager.
func WithHooks(h *HookManager) func(o *Options) {
	return func(o *Options) { o.Hooks = h }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// batchEntry pairs a batch with its resolved matching strategy and its
// sessions in creation order.
type batchEntry struct {
	batch    *core.Batch
	strategy core.Strategy
	sessions []*core.Session
}

// memberEntry wraps a participant with the mutex that linearizes all
// coordinator operations on it.
type memberEntry struct {
	opMu    sync.Mutex
	p       *core.Participant
	batchID string
}

// Coordinator is the assignment core. It owns the participant, session and
// batch registries, serializes operations per participant and drives the
// lifecycle manager on occupancy changes. All public methods are safe for
// concurrent use.
type Coordinator struct {
	store     core.AttributeStore
	eventBus  core.EventBus
	history   core.AssignmentLog
	policy    core.CapacityPolicy
	lifecycle *lifecycle.Manager
	hooks     *HookManager
	logger    logging.Logger
	config    Config

	mu       sync.RWMutex
	batches  map[string]*batchEntry
	sessions map[string]*core.Session
	members  map[string]*memberEntry
	seq      uint64

	// formMu serializes bracket formation so group validation and commit
	// act on one consistent view of the waiting pool.
	formMu sync.Mutex
}

// New creates a Coordinator with in-memory defaults for every collaborator.
//
// Example:
//
//	coord := coordinator.New(
//	    coordinator.WithStore(myStore),
//	    coordinator.WithLogger(myLogger),
//	)
func New(optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Config: DefaultConfig,
		Policy: core.DefaultCapacityPolicy,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemoryStore()
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewInMemoryBus(opts.Config.EventBuffer)
	}
	if opts.History == nil {
		opts.History = history.NewInMemoryLog()
	}
	if opts.Hooks == nil {
		opts.Hooks = NewHookManager()
	}
	return &Coordinator{
		store:    opts.Store,
		eventBus: opts.Bus,
		history:  opts.History,
		policy:   opts.Policy,
		lifecycle: lifecycle.New(opts.Store, opts.Bus,
			lifecycle.WithPolicy(opts.Policy),
			lifecycle.WithLogger(opts.Logger)),
		hooks:    opts.Hooks,
		logger:   opts.Logger,
		config:   opts.Config,
		batches:  make(map[string]*batchEntry),
		sessions: make(map[string]*core.Session),
		members:  make(map[string]*memberEntry),
	}
}

// Config returns the operational parameters.
func (c *Coordinator) Config() Config { return c.config }

// Store returns the attribute store collaborator.
func (c *Coordinator) Store() core.AttributeStore { return c.store }

// Bus returns the outbound event bus collaborator.
func (c *Coordinator) Bus() core.EventBus { return c.eventBus }

// History returns the assignment log collaborator.
func (c *Coordinator) History() core.AssignmentLog { return c.history }

// Lifecycle returns the lifecycle manager driving session state transitions.
func (c *Coordinator) Lifecycle() *lifecycle.Manager { return c.lifecycle }

// CreateBatch registers a new pending batch with the given immutable
// configuration. The matching strategy is resolved here so misconfiguration
// surfaces at creation rather than during assignment.
func (c *Coordinator) CreateBatch(cfg core.BatchConfig) (*core.Batch, error) {
	strat, err := strategy.ForBatch(cfg)
	if err != nil {
		return nil, err
	}
	b := core.NewBatch(core.NewID(), cfg)

	c.mu.Lock()
	c.batches[b.ID] = &batchEntry{batch: b, strategy: strat}
	c.mu.Unlock()

	c.logger.Info("batch created", "batch_id", b.ID, "strategy", strat.Name())
	return b, nil
}

// StartBatch moves a batch to running and provisions its fixed session set.
// A positive SessionCount pre-creates that many sessions unless the batch
// creates sessions on demand (bracketed matching or the on-demand flag).
func (c *Coordinator) StartBatch(batchID string) error {
	be, err := c.batchEntry(batchID)
	if err != nil {
		return err
	}
	if err := be.batch.AdvanceState(core.BatchRunning); err != nil {
		return err
	}
	cfg := be.batch.Config()
	if cfg.SessionCount > 0 && !cfg.OnDemand && cfg.Strategy != core.StrategyBracketedGroup {
		for i := 0; i < cfg.SessionCount; i++ {
			if _, err := c.createSession(be, cfg.SessionConfig()); err != nil {
				return err
			}
		}
	}
	c.logger.Info("batch started", "batch_id", batchID)
	return nil
}

// OpenSession creates one additional session under a running batch, bounded
// by the batch's session count limit. Used by admin surfaces to grow batches
// whose strategy never creates sessions itself. Option functions adjust the
// derived session configuration, for example to vary the match value across
// an attribute-matched batch's sessions.
func (c *Coordinator) OpenSession(batchID string, optFns ...func(cfg *core.SessionConfig)) (*core.Session, error) {
	be, err := c.batchEntry(batchID)
	if err != nil {
		return nil, err
	}
	if be.batch.State() != core.BatchRunning {
		return nil, core.ErrBatchNotRunning
	}
	cfg := be.batch.Config().SessionConfig()
	for _, fn := range optFns {
		fn(&cfg)
	}
	return c.createSession(be, cfg)
}

// createSession registers a new forming session under the batch, enforcing
// the session count limit, and publishes the creation event.
func (c *Coordinator) createSession(be *batchEntry, cfg core.SessionConfig) (*core.Session, error) {
	if be.batch.State() == core.BatchEnded {
		return nil, core.ErrBatchEnded
	}

	c.mu.Lock()
	limit := be.batch.Config().SessionCount
	if limit > 0 && len(be.sessions) >= limit {
		c.mu.Unlock()
		return nil, core.ErrBatchSessionLimit
	}
	c.seq++
	s := core.NewSession(core.NewID(), be.batch.ID, c.seq, cfg)
	c.sessions[s.ID] = s
	be.sessions = append(be.sessions, s)
	c.mu.Unlock()

	c.logger.Info("session created", "session_id", s.ID, "batch_id", be.batch.ID)
	c.eventBus.Publish(core.NewSessionEvent(core.EventSessionCreated, s.ID, be.batch.ID, 0))
	return s, nil
}

// Register adds a participant to a batch without attempting placement. It is
// idempotent for a participant already registered under the same batch.
func (c *Coordinator) Register(participantID, batchID string) (*core.Participant, error) {
	be, err := c.batchEntry(batchID)
	if err != nil {
		return nil, err
	}
	if be.batch.State() != core.BatchRunning {
		return nil, core.ErrBatchNotRunning
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.members[participantID]; ok {
		if e.batchID != batchID {
			return nil, core.ErrParticipantAlreadyAssigned
		}
		return e.p, nil
	}
	p := core.NewParticipant(participantID)
	c.members[participantID] = &memberEntry{p: p, batchID: batchID}
	return p, nil
}

// Participant returns the registered participant with the given ID.
func (c *Coordinator) Participant(participantID string) (*core.Participant, error) {
	e, err := c.memberEntry(participantID)
	if err != nil {
		return nil, err
	}
	return e.p, nil
}

// BatchOf returns the batch a participant was registered under.
func (c *Coordinator) BatchOf(participantID string) (string, error) {
	e, err := c.memberEntry(participantID)
	if err != nil {
		return "", err
	}
	return e.batchID, nil
}

// Session returns the session with the given ID.
func (c *Coordinator) Session(sessionID string) (*core.Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, core.ErrUnknownSession
	}
	return s, nil
}

// Batch returns the batch with the given ID.
func (c *Coordinator) Batch(batchID string) (*core.Batch, error) {
	be, err := c.batchEntry(batchID)
	if err != nil {
		return nil, err
	}
	return be.batch, nil
}

// SessionsOf returns the batch's sessions in creation order.
func (c *Coordinator) SessionsOf(batchID string) ([]*core.Session, error) {
	be, err := c.batchEntry(batchID)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.Session, len(be.sessions))
	copy(out, be.sessions)
	return out, nil
}

// Waiting returns the batch's unassigned participants ordered by arrival
// time with the ID as tie breaker. This is the derived waiting pool view:
// membership is computed from participant state, never tracked separately.
func (c *Coordinator) Waiting(batchID string) []*core.Participant {
	c.mu.RLock()
	waiting := make([]*core.Participant, 0)
	for _, e := range c.members {
		if e.batchID == batchID && e.p.State() == core.ParticipantUnassigned {
			waiting = append(waiting, e.p)
		}
	}
	c.mu.RUnlock()

	sort.Slice(waiting, func(i, j int) bool {
		ti, tj := waiting[i].Arrived(), waiting[j].Arrived()
		if ti.Equal(tj) {
			return waiting[i].ID < waiting[j].ID
		}
		return ti.Before(tj)
	})
	return waiting
}

// StartSession applies the explicit start signal, bypassing the readiness
// gate.
func (c *Coordinator) StartSession(sessionID string) error {
	s, err := c.Session(sessionID)
	if err != nil {
		return err
	}
	return c.lifecycle.Start(s)
}

// EndSession moves the session to its terminal state, freezing membership
// and ending every member participant. When this was the batch's last live
// session the batch ends too, unless configured to stay open.
func (c *Coordinator) EndSession(ctx context.Context, sessionID string) error {
	s, err := c.Session(sessionID)
	if err != nil {
		return err
	}
	if err := c.lifecycle.End(s); err != nil {
		return err
	}
	c.endMembers(s)

	if be, err := c.batchEntry(s.BatchID); err == nil {
		sessions, _ := c.SessionsOf(s.BatchID)
		c.lifecycle.CheckBatchDone(be.batch, sessions)
	}
	return nil
}

// EndBatch ends every live session of the batch and then the batch itself,
// regardless of the keep-open flag.
func (c *Coordinator) EndBatch(ctx context.Context, batchID string) error {
	be, err := c.batchEntry(batchID)
	if err != nil {
		return err
	}
	sessions, err := c.SessionsOf(batchID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if err := c.lifecycle.End(s); err != nil {
			continue
		}
		c.endMembers(s)
	}
	return c.lifecycle.EndBatch(be.batch)
}

// endMembers transitions every member of an ended session to the terminal
// participant state. The session's membership is already frozen.
func (c *Coordinator) endMembers(s *core.Session) {
	for _, id := range s.Members() {
		e, err := c.memberEntry(id)
		if err != nil {
			continue
		}
		e.opMu.Lock()
		e.p.End()
		e.opMu.Unlock()
	}
}

func (c *Coordinator) batchEntry(batchID string) (*batchEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	be, ok := c.batches[batchID]
	if !ok {
		return nil, core.ErrUnknownBatch
	}
	return be, nil
}

func (c *Coordinator) memberEntry(participantID string) (*memberEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.members[participantID]
	if !ok {
		return nil, core.ErrUnknownParticipant
	}
	return e, nil
}
