// Package groupmesh provides a high-level façade over the assignment engine:
// coordinator, matching strategies, session lifecycle, waiting pool and the
// reactive dispatch layer. Most applications interact with this package by:
//  1. Creating a GroupMesh via New() (optionally overriding default in-memory collaborators)
//  2. Creating and starting a batch from a configuration payload
//  3. Feeding arrivals (Arrive) and attribute updates (SetAttribute)
//  4. Consuming lifecycle events (Events) from the outbound bus
//
// The façade wires the reactive paths together: attribute changes trigger
// waiting pool rescans and readiness rechecks, freed capacity re-evaluates
// the pool, and group batches form brackets automatically. All defaults are
// safe for local development and testing; production deployments typically
// supply durable store implementations and a structured logger.
package groupmesh

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/groupmesh/configsource"
	"github.com/hupe1980/groupmesh/coordinator"
	"github.com/hupe1980/groupmesh/core"
	"github.com/hupe1980/groupmesh/dispatch"
	"github.com/hupe1980/groupmesh/logging"
	"github.com/hupe1980/groupmesh/pool"
)

// Options configures the GroupMesh instance.
type Options struct {
	// Config contains the coordinator's operational parameters (lock wait
	// bound, retry budget, rescan parallelism, event buffering).
	Config coordinator.Config

	// Collaborators (default to in-memory implementations if not provided)

	// Store owns matching attribute state.
	Store core.AttributeStore
	// Bus receives lifecycle events for downstream consumers.
	Bus core.EventBus
	// Source supplies named batch configuration payloads.
	Source core.ConfigSource
	// History persists assignment records.
	History core.AssignmentLog

	// Policy maps session configuration to capacity and minimum viable size.
	Policy core.CapacityPolicy

	// Hooks extends the assignment pipeline.
	Hooks *coordinator.HookManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// WithConfig sets the coordinator configuration.
func WithConfig(cfg coordinator.Config) func(o *Options) {
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

// WithConfigSource sets the batch configuration source.
func WithConfigSource(s core.ConfigSource) func(o *Options) {
	return func(o *Options) { o.Source = s }
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
func WithHooks(h *coordinator.HookManager) func(o *Options) {
	return func(o *Options) { o.Hooks = h }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// GroupMesh is the high-level façade aggregating the assignment engine and
// its reactive wiring.
type GroupMesh struct {
	coord  *coordinator.Coordinator
	pool   *pool.Pool
	router *dispatch.Router
	source core.ConfigSource
	logger logging.Logger

	closeOnce  sync.Once
	stopEvents func()
	done       chan struct{}
}

// New creates a GroupMesh instance with optional overrides. Any unset
// collaborator is initialized with an in-memory implementation, and the
// reactive wiring (dispatch handlers, freed-capacity rescans) starts
// immediately.
func New(optFns ...func(o *Options)) *GroupMesh {
	opts := Options{
		Config: coordinator.DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Source == nil {
		opts.Source = configsource.NewInMemorySource()
	}

	coord := coordinator.New(func(o *coordinator.Options) {
		o.Config = opts.Config
		o.Logger = opts.Logger
		if opts.Store != nil {
			o.Store = opts.Store
		}
		if opts.Bus != nil {
			o.Bus = opts.Bus
		}
		if opts.History != nil {
			o.History = opts.History
		}
		if opts.Policy != nil {
			o.Policy = opts.Policy
		}
		if opts.Hooks != nil {
			o.Hooks = opts.Hooks
		}
	})

	m := &GroupMesh{
		coord:  coord,
		source: opts.Source,
		logger: opts.Logger,
	}
	m.pool = pool.New(coord, pool.WithLogger(opts.Logger))
	m.router = dispatch.NewRouter(coord.Store(), dispatch.WithLogger(opts.Logger))
	m.router.Handle(core.KindParticipant, "", m.onParticipantChange)
	m.startEventLoop()
	return m
}

// onParticipantChange reacts to one external attribute mutation: a changed
// readiness gate of an assigned participant rechecks the session's start
// condition, any other change for a waiting participant re-evaluates the
// batch's pool. Mirror attributes written by the engine itself are skipped
// to keep the reactive loop from feeding on its own writes.
func (m *GroupMesh) onParticipantChange(ctx context.Context, change core.Change) {
	if change.Key == core.AttrSessionID || change.Key == core.AttrWaitingReason {
		return
	}
	p, err := m.coord.Participant(change.EntityID)
	if err != nil {
		// Attributes may be written before the participant arrives.
		return
	}

	if sessionID, ok := p.Session(); ok {
		s, err := m.coord.Session(sessionID)
		if err != nil {
			return
		}
		if _, err := m.coord.Lifecycle().CheckReadiness(ctx, s); err != nil {
			m.logger.Warn("readiness recheck failed", "session_id", sessionID, "error", err)
		}
		return
	}

	batchID, err := m.coord.BatchOf(change.EntityID)
	if err != nil {
		return
	}
	if _, err := m.pool.Rescan(ctx, batchID, "attribute change"); err != nil {
		m.logger.Warn("rescan failed", "batch_id", batchID, "error", err)
	}
}

// startEventLoop consumes the engine's own event stream to re-evaluate the
// waiting pool whenever its composition changes: a vacated slot, a new
// session, or a fresh deferral. The deferral trigger is what lets a group
// batch form its bracket when the completing participant arrives, even if
// every matching attribute was written before arrival. Deferral events are
// deduplicated on unchanged reasons, so these rescans quiesce once the pool
// stops changing.
//
// A detach rescan skips the vacating participant itself: it is waiting again
// and would otherwise race the members it should be yielding the slot to.
func (m *GroupMesh) startEventLoop() {
	events, cancel := m.coord.Bus().Subscribe()
	m.stopEvents = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		for e := range events {
			var optFns []func(o *pool.RescanOptions)
			switch e.Kind {
			case core.EventParticipantDetached:
				optFns = append(optFns, pool.WithSkip(e.ParticipantID))
			case core.EventSessionCreated, core.EventParticipantDeferred:
			default:
				continue
			}
			if _, err := m.pool.Rescan(context.Background(), e.BatchID, string(e.Kind), optFns...); err != nil {
				m.logger.Warn("rescan failed", "batch_id", e.BatchID, "error", err)
			}
		}
	}()
}

// Close stops the reactive wiring. In-flight operations finish; subsequent
// attribute changes no longer trigger rescans. Safe to call more than once.
func (m *GroupMesh) Close() {
	m.closeOnce.Do(func() {
		m.router.Close()
		m.stopEvents()
		<-m.done
	})
}

// Coordinator exposes the underlying assignment core for advanced wiring.
func (m *GroupMesh) Coordinator() *coordinator.Coordinator { return m.coord }

// Store exposes the attribute store collaborator.
func (m *GroupMesh) Store() core.AttributeStore { return m.coord.Store() }

// History exposes the assignment log collaborator.
func (m *GroupMesh) History() core.AssignmentLog { return m.coord.History() }

// Events subscribes to the outbound lifecycle event stream. The returned
// cancel function releases the subscription.
func (m *GroupMesh) Events() (<-chan core.Event, func()) {
	return m.coord.Bus().Subscribe()
}

// RegisterConfig stores a named batch configuration payload in the source.
func (m *GroupMesh) RegisterConfig(name string, cfg core.BatchConfig) error {
	return m.source.Put(name, cfg)
}

// CreateBatch registers a new pending batch from an explicit configuration.
func (m *GroupMesh) CreateBatch(cfg core.BatchConfig) (*core.Batch, error) {
	return m.coord.CreateBatch(cfg)
}

// CreateBatchFromSource registers a new pending batch from a named
// configuration payload.
func (m *GroupMesh) CreateBatchFromSource(name string) (*core.Batch, error) {
	cfg, ok := m.source.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("no batch configuration named %q", name)
	}
	return m.coord.CreateBatch(cfg)
}

// StartBatch moves the batch to running and provisions its fixed session
// set.
func (m *GroupMesh) StartBatch(batchID string) error {
	return m.coord.StartBatch(batchID)
}

// OpenSession adds one session to a running batch, optionally adjusting the
// derived session configuration.
func (m *GroupMesh) OpenSession(batchID string, optFns ...func(cfg *core.SessionConfig)) (*core.Session, error) {
	return m.coord.OpenSession(batchID, optFns...)
}

// Arrive registers the participant under the batch and attempts placement.
func (m *GroupMesh) Arrive(ctx context.Context, participantID, batchID string) (coordinator.Result, error) {
	return m.coord.Arrive(ctx, participantID, batchID)
}

// TryAssign re-attempts placement for a registered participant.
func (m *GroupMesh) TryAssign(ctx context.Context, participantID string) (coordinator.Result, error) {
	return m.coord.TryAssign(ctx, participantID)
}

// Detach vacates the participant's slot, returning it to the waiting pool.
// The freed capacity triggers an asynchronous pool rescan.
func (m *GroupMesh) Detach(ctx context.Context, participantID string) error {
	return m.coord.Detach(ctx, participantID)
}

// Reassign atomically moves the participant to a newly selected session.
func (m *GroupMesh) Reassign(ctx context.Context, participantID string) (coordinator.Result, error) {
	return m.coord.Reassign(ctx, participantID)
}

// SetAttribute writes a participant attribute through the store, triggering
// the reactive paths (pool rescan or readiness recheck).
func (m *GroupMesh) SetAttribute(ctx context.Context, participantID, key string, value any) error {
	return m.coord.Store().Set(ctx, core.KindParticipant, participantID, key, value)
}

// Ready marks the participant's readiness gate attribute true, using the
// gate key of its session when assigned.
func (m *GroupMesh) Ready(ctx context.Context, participantID string) error {
	key := core.DefaultReadyKey
	if p, err := m.coord.Participant(participantID); err == nil {
		if sessionID, ok := p.Session(); ok {
			if s, err := m.coord.Session(sessionID); err == nil && s.Config().ReadyKey != "" {
				key = s.Config().ReadyKey
			}
		}
	}
	return m.SetAttribute(ctx, participantID, key, true)
}

// Rescan re-evaluates the batch's waiting pool immediately.
func (m *GroupMesh) Rescan(ctx context.Context, batchID string) (int, error) {
	return m.pool.Rescan(ctx, batchID, "manual")
}

// Waiting returns the batch's waiting participants in arrival order.
func (m *GroupMesh) Waiting(batchID string) []*core.Participant {
	return m.coord.Waiting(batchID)
}

// StartSession applies the explicit start signal to a session.
func (m *GroupMesh) StartSession(sessionID string) error {
	return m.coord.StartSession(sessionID)
}

// EndSession moves the session to its terminal state.
func (m *GroupMesh) EndSession(ctx context.Context, sessionID string) error {
	return m.coord.EndSession(ctx, sessionID)
}

// EndBatch ends every live session of the batch and then the batch itself.
func (m *GroupMesh) EndBatch(ctx context.Context, batchID string) error {
	return m.coord.EndBatch(ctx, batchID)
}

// Participant returns the registered participant with the given ID.
func (m *GroupMesh) Participant(participantID string) (*core.Participant, error) {
	return m.coord.Participant(participantID)
}

// Session returns the session with the given ID.
func (m *GroupMesh) Session(sessionID string) (*core.Session, error) {
	return m.coord.Session(sessionID)
}

// Batch returns the batch with the given ID.
func (m *GroupMesh) Batch(batchID string) (*core.Batch, error) {
	return m.coord.Batch(batchID)
}

// SessionsOf returns the batch's sessions in creation order.
func (m *GroupMesh) SessionsOf(batchID string) ([]*core.Session, error) {
	return m.coord.SessionsOf(batchID)
}
