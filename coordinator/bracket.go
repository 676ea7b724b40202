package coordinator

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hupe1980/groupmesh/core"
)

// FormBrackets runs group formation over the batch's waiting pool and
// commits every complete bracket as a new session. Batches whose strategy is
// not group-based are a no-op.
//
// Formation and commit run under a single formation mutex so the group
// validation acts on one consistent view of the pool: a bracket either
// commits with all of its members or not at all, and two concurrent
// formation passes can never claim the same participant. Participants left
// over after cutting complete brackets simply stay deferred.
func (c *Coordinator) FormBrackets(ctx context.Context, batchID string) ([]*core.Session, error) {
	be, err := c.batchEntry(batchID)
	if err != nil {
		return nil, err
	}
	group, ok := be.strategy.(core.GroupStrategy)
	if !ok {
		return nil, nil
	}
	if be.batch.State() != core.BatchRunning {
		return nil, core.ErrBatchNotRunning
	}

	c.formMu.Lock()
	defer c.formMu.Unlock()

	waiting := c.Waiting(batchID)
	for _, p := range waiting {
		attrs, err := c.store.Snapshot(ctx, core.KindParticipant, p.ID)
		if err != nil {
			return nil, err
		}
		p.SetAttrs(attrs)
	}

	var created []*core.Session
	for _, bracket := range group.FormGroups(waiting) {
		s, err := c.commitBracket(ctx, be, bracket)
		if errors.Is(err, core.ErrBatchSessionLimit) {
			// Remaining brackets stay deferred until a slot frees up.
			break
		}
		if err != nil {
			c.logger.Error("bracket commit failed", "batch_id", batchID, "error", err)
			continue
		}
		if s != nil {
			created = append(created, s)
		}
	}
	if len(created) > 0 {
		c.logger.Info("brackets committed", "batch_id", batchID, "sessions", len(created))
	}
	return created, nil
}

// commitBracket creates one session and attaches every bracket member to it
// as an all-or-nothing transaction. Members are locked in sorted ID order;
// a member claimed by a concurrent operation invalidates the whole bracket
// without error (nil session) so formation can move on. Callers hold formMu.
func (c *Coordinator) commitBracket(ctx context.Context, be *batchEntry, bracket core.Bracket) (*core.Session, error) {
	entries := make([]*memberEntry, 0, len(bracket.Members))
	for _, id := range bracket.Members {
		e, err := c.memberEntry(id)
		if err != nil {
			return nil, nil
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].p.ID < entries[j].p.ID })

	for _, e := range entries {
		e.opMu.Lock()
	}
	defer func() {
		for _, e := range entries {
			e.opMu.Unlock()
		}
	}()

	// Re-validate under the locks: formation ran on a snapshot and any
	// member may have been placed, reassigned or ended since.
	for _, e := range entries {
		if e.p.State() != core.ParticipantUnassigned || e.batchID != be.batch.ID {
			return nil, nil
		}
	}

	s, err := c.createSession(be, bracket.Config)
	if err != nil {
		return nil, err
	}

	// Group sizes are validated against capacity at batch creation; a
	// bracket that still exceeds the policy's capacity fails AddMember
	// below and rolls back.
	capacity, _ := c.policy(s.Config())

	if err := s.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.Release()

	attached := make([]*memberEntry, 0, len(entries))
	rollback := func() {
		for _, e := range attached {
			_, _ = e.p.Unbind()
			_ = s.RemoveMember(e.p.ID)
			_ = c.store.Set(ctx, core.KindParticipant, e.p.ID, core.AttrSessionID, "")
		}
		_ = s.AdvanceState(core.SessionEnded)
	}

	for _, e := range entries {
		p := e.p
		if err := s.AddMember(p.ID, capacity); err != nil {
			rollback()
			return nil, err
		}
		if err := p.Bind(s.ID, be.batch.ID); err != nil {
			_ = s.RemoveMember(p.ID)
			rollback()
			return nil, err
		}
		if err := c.store.Set(ctx, core.KindParticipant, p.ID, core.AttrSessionID, s.ID); err != nil {
			_, _ = p.Unbind()
			_ = s.RemoveMember(p.ID)
			rollback()
			return nil, err
		}
		attached = append(attached, e)
	}

	occupancy := s.Occupancy()
	for _, e := range entries {
		if err := c.history.Append(core.AssignmentRecord{
			ParticipantID: e.p.ID,
			SessionID:     s.ID,
			BatchID:       be.batch.ID,
			Action:        core.ActionAttach,
			Timestamp:     time.Now().UTC(),
		}); err != nil {
			c.logger.Warn("failed to append assignment record", "participant_id", e.p.ID, "error", err)
		}
		c.eventBus.Publish(core.NewAssignedEvent(e.p.ID, s.ID, be.batch.ID, occupancy))
	}

	c.lifecycle.CheckFormed(s)
	return s, nil
}
