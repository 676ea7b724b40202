package core

// DecisionKind categorizes the outcome of a matching strategy.
type DecisionKind int

const (
	// DecisionUseSession targets an existing open session.
	DecisionUseSession DecisionKind = iota
	// DecisionCreateSession requests on-demand creation of a new session.
	DecisionCreateSession
	// DecisionDefer places the participant in the waiting pool.
	DecisionDefer
)

// Decision is the assignment verdict returned by a matching strategy.
// Exactly one of the payload fields is meaningful depending on Kind.
type Decision struct {
	Kind      DecisionKind
	SessionID string        // DecisionUseSession
	Config    SessionConfig // DecisionCreateSession
	Reason    string        // DecisionDefer
}

// UseSession targets the session with the given ID.
func UseSession(sessionID string) Decision {
	return Decision{Kind: DecisionUseSession, SessionID: sessionID}
}

// CreateSession requests a new session with the given configuration snapshot.
func CreateSession(cfg SessionConfig) Decision {
	return Decision{Kind: DecisionCreateSession, Config: cfg}
}

// Defer leaves the participant waiting with a human-readable reason.
func Defer(reason string) Decision {
	return Decision{Kind: DecisionDefer, Reason: reason}
}

// Strategy decides which session (if any) an arriving participant should
// join. Implementations must be pure functions of their inputs with no
// hidden mutable state so the coordinator can retry them safely after a lost
// occupancy race: on retry the previously attempted candidate is removed
// from the open set and Select is invoked again.
//
// The coordinator short-circuits before invoking a strategy when the
// participant is already assigned, so implementations never see assigned
// participants.
type Strategy interface {
	// Name returns the strategy identifier used in logs and events.
	Name() string

	// Select returns the placement decision for one participant given the
	// currently open sessions. The open slice is a snapshot owned by the
	// caller; implementations must not retain or mutate it.
	Select(participant *Participant, open []*Session) Decision
}

// Bracket is a fixed-size group of participants matched together for
// simultaneous session creation. All members join one new session or the
// whole bracket fails together.
type Bracket struct {
	Members []string
	Config  SessionConfig
}

// GroupStrategy extends Strategy for policies that act on the waiting pool
// as a whole rather than per participant. FormGroups partitions the waiting
// set into complete brackets; partial brackets are simply not returned and
// their members remain deferred.
type GroupStrategy interface {
	Strategy

	// GroupSize returns the required bracket size.
	GroupSize() int

	// FormGroups partitions eligible waiting participants into complete
	// brackets. Like Select it must be pure: repeated invocations over an
	// unchanged waiting set return the same brackets.
	FormGroups(waiting []*Participant) []Bracket
}
