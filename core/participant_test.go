package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantBindUnbind(t *testing.T) {
	p := NewParticipant("p1")
	assert.Equal(t, ParticipantUnassigned, p.State())

	require.NoError(t, p.Bind("sess-1", "batch-1"))
	assert.Equal(t, ParticipantAssigned, p.State())

	sessionID, ok := p.Session()
	require.True(t, ok)
	assert.Equal(t, "sess-1", sessionID)

	// Double bind is rejected, not silently rebound.
	assert.ErrorIs(t, p.Bind("sess-2", "batch-1"), ErrParticipantAlreadyAssigned)

	vacated, err := p.Unbind()
	require.NoError(t, err)
	assert.Equal(t, "sess-1", vacated)
	assert.Equal(t, ParticipantUnassigned, p.State())

	_, err = p.Unbind()
	assert.ErrorIs(t, err, ErrParticipantNotAssigned)
}

func TestParticipantBindAfterEnd(t *testing.T) {
	p := NewParticipant("p1")
	p.End()
	assert.ErrorIs(t, p.Bind("sess-1", "batch-1"), ErrParticipantEnded)
}

func TestParticipantBindClearsWaitingReason(t *testing.T) {
	p := NewParticipant("p1")
	p.SetWaitingReason("no eligible session")
	assert.Equal(t, "no eligible session", p.WaitingReason())

	require.NoError(t, p.Bind("sess-1", "batch-1"))
	assert.Empty(t, p.WaitingReason())
}

func TestParticipantAttrsSnapshot(t *testing.T) {
	p := NewParticipant("p1")
	p.SetAttrs(map[string]any{"skill": 42})

	v, ok := p.Attr("skill")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	attrs := p.Attrs()
	attrs["skill"] = 0
	v, _ = p.Attr("skill")
	assert.Equal(t, 42, v, "Attrs must return a defensive copy")
}
