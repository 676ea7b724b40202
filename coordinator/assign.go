package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/groupmesh/core"
)

// Outcome categorizes the result of one assignment operation.
type Outcome int

const (
	// OutcomeAssigned means the participant is bound to a session.
	OutcomeAssigned Outcome = iota
	// OutcomeDeferred means no eligible session exists and the participant
	// remains in the waiting pool. Deferral is a normal outcome, not an
	// error.
	OutcomeDeferred
	// OutcomeFailed means the operation hit an actual fault (lock timeout,
	// store failure, hook veto). The accompanying error carries the cause.
	OutcomeFailed
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAssigned:
		return "assigned"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports the outcome of one assignment operation.
type Result struct {
	// Outcome is the tri-state verdict.
	Outcome Outcome
	// SessionID is the bound session for assigned outcomes.
	SessionID string
	// Reason is the waiting reason for deferred outcomes.
	Reason string
	// Attempts counts how many candidate sessions were consulted, including
	// retries after lost occupancy races.
	Attempts int
}

// failure reasons surfaced in Result.Reason.
const (
	reasonLockTimeout    = "timed out waiting for session lock"
	reasonRetryExhausted = "no eligible session after retries"
	reasonSessionLimit   = "batch session limit reached"
)

// Arrive registers the participant under the batch (idempotently) and
// immediately attempts placement. This is the standard entry point for new
// arrivals.
func (c *Coordinator) Arrive(ctx context.Context, participantID, batchID string) (Result, error) {
	if _, err := c.Register(participantID, batchID); err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	return c.TryAssign(ctx, participantID)
}

// TryAssign attempts to place the participant into a session of its batch.
//
// The operation loads a fresh attribute snapshot, consults the batch's
// matching strategy and attaches optimistically: capacity and session state
// are re-validated inside the target's exclusive section, and a lost race
// removes the candidate and consults the strategy again, bounded by the
// configured attempt budget. Operations on the same participant are
// serialized; an already assigned participant short-circuits without
// consulting the strategy.
func (c *Coordinator) TryAssign(ctx context.Context, participantID string) (Result, error) {
	e, err := c.memberEntry(participantID)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return c.tryAssignLocked(ctx, e)
}

// tryAssignLocked runs the assignment pipeline. Callers hold e.opMu.
func (c *Coordinator) tryAssignLocked(ctx context.Context, e *memberEntry) (Result, error) {
	start := time.Now()
	p := e.p

	switch p.State() {
	case core.ParticipantAssigned:
		sessionID, _ := p.Session()
		c.logger.Warn("assignment skipped, participant already assigned",
			"participant_id", p.ID, "session_id", sessionID)
		return Result{Outcome: OutcomeAssigned, SessionID: sessionID}, nil
	case core.ParticipantEnded:
		return Result{Outcome: OutcomeFailed}, core.ErrParticipantEnded
	}

	be, err := c.batchEntry(e.batchID)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	if be.batch.State() != core.BatchRunning {
		return Result{Outcome: OutcomeFailed}, core.ErrBatchNotRunning
	}

	attrs, err := c.store.Snapshot(ctx, core.KindParticipant, p.ID)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	p.SetAttrs(attrs)

	if err := c.hooks.Run(ctx, HookBeforeAssign, &HookContext{Participant: p, BatchID: e.batchID}); err != nil {
		return Result{Outcome: OutcomeFailed, Reason: err.Error()}, err
	}

	tried := make(map[string]struct{})
	attempts := 0
	for attempts < c.config.MaxAttempts {
		attempts++

		decision := be.strategy.Select(p, c.openSessions(be, tried))

		var target *core.Session
		switch decision.Kind {
		case core.DecisionDefer:
			return c.deferLocked(ctx, e, decision.Reason, attempts), nil
		case core.DecisionCreateSession:
			s, err := c.createSession(be, decision.Config)
			if errors.Is(err, core.ErrBatchSessionLimit) {
				return c.deferLocked(ctx, e, reasonSessionLimit, attempts), nil
			}
			if err != nil {
				return Result{Outcome: OutcomeFailed, Attempts: attempts}, err
			}
			target = s
		case core.DecisionUseSession:
			s, err := c.Session(decision.SessionID)
			if err != nil || s.BatchID != e.batchID {
				tried[decision.SessionID] = struct{}{}
				continue
			}
			target = s
		}

		occupancy, err := c.attach(ctx, p, target, e.batchID)
		switch {
		case err == nil:
			c.lifecycle.CheckFormed(target)
			if hookErr := c.hooks.Run(ctx, HookAfterAssign, &HookContext{Participant: p, Session: target, BatchID: e.batchID}); hookErr != nil {
				c.logger.Error("after-assign hook failed", "participant_id", p.ID, "error", hookErr)
			}
			c.logger.Info("participant assigned",
				"participant_id", p.ID, "session_id", target.ID, "batch_id", e.batchID,
				"occupancy", occupancy, "attempts", attempts, "duration", time.Since(start))
			return Result{Outcome: OutcomeAssigned, SessionID: target.ID, Attempts: attempts}, nil
		case errors.Is(err, core.ErrCapacityExceeded), errors.Is(err, core.ErrSessionEnded):
			// Lost the occupancy race. Drop the candidate and consult the
			// strategy again.
			tried[target.ID] = struct{}{}
		case errors.Is(err, core.ErrLockTimeout):
			return Result{Outcome: OutcomeFailed, Reason: reasonLockTimeout, Attempts: attempts}, err
		default:
			return Result{Outcome: OutcomeFailed, Attempts: attempts}, err
		}
	}

	return c.deferLocked(ctx, e, reasonRetryExhausted, attempts), nil
}

// attach binds the participant to the session inside its exclusive section,
// re-validating capacity and state. On success the store mirror, assignment
// record and event are written; partial mutations are rolled back on failure
// so the binding is all or nothing.
func (c *Coordinator) attach(ctx context.Context, p *core.Participant, s *core.Session, batchID string) (int, error) {
	capacity, _ := c.policy(s.Config())

	lockCtx := ctx
	if c.config.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, c.config.LockTimeout)
		defer cancel()
	}
	if err := s.Acquire(lockCtx); err != nil {
		return 0, err
	}
	defer s.Release()

	if err := s.AddMember(p.ID, capacity); err != nil {
		return 0, err
	}
	hadReason := p.WaitingReason() != ""
	if err := p.Bind(s.ID, batchID); err != nil {
		_ = s.RemoveMember(p.ID)
		return 0, err
	}
	if err := c.store.Set(ctx, core.KindParticipant, p.ID, core.AttrSessionID, s.ID); err != nil {
		_, _ = p.Unbind()
		_ = s.RemoveMember(p.ID)
		return 0, err
	}
	if hadReason {
		if err := c.store.Set(ctx, core.KindParticipant, p.ID, core.AttrWaitingReason, ""); err != nil {
			c.logger.Warn("failed to clear waiting reason", "participant_id", p.ID, "error", err)
		}
	}

	occupancy := s.Occupancy()
	if err := c.history.Append(core.AssignmentRecord{
		ParticipantID: p.ID,
		SessionID:     s.ID,
		BatchID:       batchID,
		Action:        core.ActionAttach,
		Timestamp:     time.Now().UTC(),
	}); err != nil {
		c.logger.Warn("failed to append assignment record", "participant_id", p.ID, "error", err)
	}
	c.eventBus.Publish(core.NewAssignedEvent(p.ID, s.ID, batchID, occupancy))
	return occupancy, nil
}

// deferLocked records a deferral. The waiting reason and deferral event are
// written only when the reason actually changed, so repeated rescans over an
// unchanged pool produce no duplicate events. Callers hold e.opMu.
func (c *Coordinator) deferLocked(ctx context.Context, e *memberEntry, reason string, attempts int) Result {
	p := e.p
	if reason == "" {
		reason = reasonRetryExhausted
	}
	changed := p.WaitingReason() != reason
	p.SetWaitingReason(reason)

	if changed {
		if err := c.store.Set(ctx, core.KindParticipant, p.ID, core.AttrWaitingReason, reason); err != nil {
			c.logger.Warn("failed to record waiting reason", "participant_id", p.ID, "error", err)
		}
		c.eventBus.Publish(core.NewDeferredEvent(p.ID, e.batchID, reason))
		if hookErr := c.hooks.Run(ctx, HookOnDeferred, &HookContext{Participant: p, BatchID: e.batchID, Reason: reason}); hookErr != nil {
			c.logger.Error("on-deferred hook failed", "participant_id", p.ID, "error", hookErr)
		}
		c.logger.Info("participant deferred", "participant_id", p.ID, "batch_id", e.batchID, "reason", reason)
	}
	return Result{Outcome: OutcomeDeferred, Reason: reason, Attempts: attempts}
}

// Detach vacates the participant's session slot, returning it to the waiting
// pool. The removal completes inside the session's exclusive section before
// the freed slot becomes visible to concurrent assignments.
func (c *Coordinator) Detach(ctx context.Context, participantID string) error {
	e, err := c.memberEntry(participantID)
	if err != nil {
		return err
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return c.detachLocked(ctx, e)
}

// detachLocked removes the binding. Callers hold e.opMu.
func (c *Coordinator) detachLocked(ctx context.Context, e *memberEntry) error {
	p := e.p
	sessionID, ok := p.Session()
	if !ok || p.State() != core.ParticipantAssigned {
		return core.ErrParticipantNotAssigned
	}
	s, err := c.Session(sessionID)
	if err != nil {
		return err
	}

	lockCtx := ctx
	if c.config.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, c.config.LockTimeout)
		defer cancel()
	}
	if err := s.Acquire(lockCtx); err != nil {
		return err
	}
	defer s.Release()

	// Ended sessions have frozen membership.
	if err := s.RemoveMember(p.ID); err != nil {
		return err
	}
	if _, err := p.Unbind(); err != nil {
		return err
	}
	if err := c.store.Set(ctx, core.KindParticipant, p.ID, core.AttrSessionID, ""); err != nil {
		c.logger.Warn("failed to clear session mirror", "participant_id", p.ID, "error", err)
	}

	occupancy := s.Occupancy()
	if err := c.history.Append(core.AssignmentRecord{
		ParticipantID: p.ID,
		SessionID:     s.ID,
		BatchID:       s.BatchID,
		Action:        core.ActionDetach,
		Timestamp:     time.Now().UTC(),
	}); err != nil {
		c.logger.Warn("failed to append detach record", "participant_id", p.ID, "error", err)
	}
	c.eventBus.Publish(core.NewDetachedEvent(p.ID, s.ID, s.BatchID, occupancy))
	if hookErr := c.hooks.Run(ctx, HookOnDetach, &HookContext{Participant: p, Session: s, BatchID: s.BatchID}); hookErr != nil {
		c.logger.Error("on-detach hook failed", "participant_id", p.ID, "error", hookErr)
	}
	c.logger.Info("participant detached", "participant_id", p.ID, "session_id", s.ID, "occupancy", occupancy)
	return nil
}

// Reassign atomically moves the participant: the detach and the subsequent
// assignment run as one serialized operation on the participant, so it never
// appears in two sessions and no interleaved operation on the same
// participant can observe a half-moved state.
func (c *Coordinator) Reassign(ctx context.Context, participantID string) (Result, error) {
	e, err := c.memberEntry(participantID)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.p.State() == core.ParticipantAssigned {
		if err := c.detachLocked(ctx, e); err != nil {
			return Result{Outcome: OutcomeFailed}, err
		}
	}
	return c.tryAssignLocked(ctx, e)
}

// openSessions snapshots the batch's placement candidates: non-ended
// sessions with spare capacity, in creation order, excluding candidates
// already tried in this operation.
func (c *Coordinator) openSessions(be *batchEntry, tried map[string]struct{}) []*core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	open := make([]*core.Session, 0, len(be.sessions))
	for _, s := range be.sessions {
		if _, skip := tried[s.ID]; skip {
			continue
		}
		capacity, _ := c.policy(s.Config())
		if s.Open(capacity) {
			open = append(open, s)
		}
	}
	return open
}
