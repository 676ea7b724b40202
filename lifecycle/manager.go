package lifecycle

import (
	"context"

	"github.com/hupe1980/groupmesh/core"
	"github.com/hupe1980/groupmesh/logging"
)

// Options configures the lifecycle manager.
type Options struct {
	// Policy maps session configuration to effective capacity and minimum
	// viable size. Defaults to core.DefaultCapacityPolicy.
	Policy core.CapacityPolicy
	// Logger receives transition logs. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Manager applies session and batch lifecycle transitions and publishes the
// corresponding events. It keeps no registry of its own: callers hand it the
// sessions and batches they track, and it reads member readiness through the
// attribute store.
type Manager struct {
	store  core.AttributeStore
	bus    core.EventBus
	policy core.CapacityPolicy
	logger logging.Logger
}

// New creates a lifecycle manager publishing on the given bus and reading
// readiness gates from the given store.
func New(store core.AttributeStore, bus core.EventBus, optFns ...func(o *Options)) *Manager {
	opts := Options{
		Policy: core.DefaultCapacityPolicy,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{store: store, bus: bus, policy: opts.Policy, logger: opts.Logger}
}

// WithPolicy sets the capacity policy.
func WithPolicy(policy core.CapacityPolicy) func(o *Options) {
	return func(o *Options) { o.Policy = policy }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// CheckFormed promotes a forming session to ready once occupancy reaches the
// minimum viable size. It reports whether the promotion happened. Concurrent
// calls race benignly: the state machine accepts the transition once.
func (m *Manager) CheckFormed(s *core.Session) bool {
	if s.State() != core.SessionForming {
		return false
	}
	_, minSize := m.policy(s.Config())
	occ := s.Occupancy()
	if occ < minSize {
		return false
	}
	if err := s.AdvanceState(core.SessionReady); err != nil {
		return false
	}
	m.logger.Info("session ready", "session_id", s.ID, "batch_id", s.BatchID, "occupancy", occ)
	m.bus.Publish(core.NewSessionEvent(core.EventSessionReady, s.ID, s.BatchID, occ))
	return true
}

// CheckReadiness promotes a ready session to running once every member's
// readiness gate attribute is true. It holds the session's exclusive section
// while reading the gates so no attach interleaves with the decision, and
// reports whether the promotion happened.
func (m *Manager) CheckReadiness(ctx context.Context, s *core.Session) (bool, error) {
	if s.State() != core.SessionReady {
		return false, nil
	}
	if err := s.Acquire(ctx); err != nil {
		return false, err
	}
	defer s.Release()
	if s.State() != core.SessionReady {
		return false, nil
	}
	members := s.Members()
	if len(members) == 0 {
		return false, nil
	}
	key := readyKey(s.Config())
	for _, id := range members {
		v, ok, err := m.store.Get(ctx, core.KindParticipant, id, key)
		if err != nil {
			return false, err
		}
		if !ok || !gateOpen(v) {
			return false, nil
		}
	}
	if err := s.AdvanceState(core.SessionRunning); err != nil {
		return false, nil
	}
	occ := len(members)
	m.logger.Info("session started", "session_id", s.ID, "batch_id", s.BatchID, "occupancy", occ, "trigger", "readiness gate")
	m.bus.Publish(core.NewSessionEvent(core.EventSessionStarted, s.ID, s.BatchID, occ))
	return true, nil
}

// Start forces the session into running, bypassing the readiness gate. Valid
// from both forming and ready.
func (m *Manager) Start(s *core.Session) error {
	occ := s.Occupancy()
	if err := s.AdvanceState(core.SessionRunning); err != nil {
		return err
	}
	m.logger.Info("session started", "session_id", s.ID, "batch_id", s.BatchID, "occupancy", occ, "trigger", "explicit")
	m.bus.Publish(core.NewSessionEvent(core.EventSessionStarted, s.ID, s.BatchID, occ))
	return nil
}

// End moves the session to its terminal state, freezing membership.
func (m *Manager) End(s *core.Session) error {
	occ := s.Occupancy()
	if err := s.AdvanceState(core.SessionEnded); err != nil {
		return err
	}
	m.logger.Info("session ended", "session_id", s.ID, "batch_id", s.BatchID, "occupancy", occ)
	m.bus.Publish(core.NewSessionEvent(core.EventSessionEnded, s.ID, s.BatchID, occ))
	return nil
}

// CheckBatchDone ends the batch once every one of its sessions has ended,
// unless the batch is configured to stay open for dynamic session creation.
// It reports whether the batch was ended.
func (m *Manager) CheckBatchDone(b *core.Batch, sessions []*core.Session) bool {
	if b.State() != core.BatchRunning {
		return false
	}
	if b.Config().KeepOpen {
		return false
	}
	if len(sessions) == 0 {
		return false
	}
	for _, s := range sessions {
		if s.State() != core.SessionEnded {
			return false
		}
	}
	if err := b.AdvanceState(core.BatchEnded); err != nil {
		return false
	}
	m.logger.Info("batch ended", "batch_id", b.ID, "sessions", len(sessions))
	m.bus.Publish(core.NewBatchEndedEvent(b.ID))
	return true
}

// EndBatch ends the batch explicitly, regardless of the keep-open flag.
// Callers are expected to have ended the batch's sessions first.
func (m *Manager) EndBatch(b *core.Batch) error {
	if err := b.AdvanceState(core.BatchEnded); err != nil {
		return err
	}
	m.logger.Info("batch ended", "batch_id", b.ID)
	m.bus.Publish(core.NewBatchEndedEvent(b.ID))
	return nil
}

func readyKey(cfg core.SessionConfig) string {
	if cfg.ReadyKey != "" {
		return cfg.ReadyKey
	}
	return core.DefaultReadyKey
}

// gateOpen interprets a readiness gate attribute value. Only an explicit
// boolean true or the string "true" opens the gate.
func gateOpen(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	s, ok := core.StringAttr(v)
	return ok && s == "true"
}
