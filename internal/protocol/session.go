package protocol

// Exchange is one completed user/assistant turn kept in session history.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// SessionState carries everything the protocol engine knows about an ongoing
// counseling session. Guide never mutates it; Advance does, once per turn.
type SessionState struct {
	// ConversationCount is the number of completed exchanges so far.
	ConversationCount int `json:"conversation_count"`

	// Stage is the current counseling stage.
	Stage Stage `json:"current_stage"`

	// Severity is the highest severity observed in the session.
	Severity Severity `json:"severity_level"`

	// Protocol is the protocol selected on the most recent turn.
	Protocol Type `json:"protocol_type"`

	// IdentifiedIssues accumulates situation keywords seen across turns.
	IdentifiedIssues []string `json:"identified_issues,omitempty"`

	// Solution-focused session material, carried in exported state.
	// ScalingScores holds the 0-10 self-ratings answered to scaling
	// questions; the rest collect what the client names during the
	// strength and action stages.
	ScalingScores    []int    `json:"scaling_scores,omitempty"`
	Goals            []string `json:"goals,omitempty"`
	ExceptionsFound  []string `json:"exceptions_found,omitempty"`
	CopingStrategies []string `json:"coping_strategies,omitempty"`
}

// NewSessionState returns the initial state for a fresh session.
func NewSessionState() SessionState {
	return SessionState{
		Stage:    StageEmotionExploration,
		Severity: SeverityLow,
		Protocol: TypeIntegrated,
	}
}

// Reset returns the session to its initial state. Used when the user closes
// the session; the next turn starts a new counseling arc.
func (s *SessionState) Reset() {
	*s = NewSessionState()
}

// Advance records the outcome of a turn: the selected protocol and stage,
// a severity that only ratchets upward, and any newly identified issues.
func (s *SessionState) Advance(g Guidance) {
	s.ConversationCount++
	s.Stage = g.Stage
	s.Protocol = g.Protocol
	if g.Severity.Rank() > s.Severity.Rank() {
		s.Severity = g.Severity
	}
	for _, issue := range g.IdentifiedIssues {
		if !containsString(s.IdentifiedIssues, issue) {
			s.IdentifiedIssues = append(s.IdentifiedIssues, issue)
		}
	}
}

func containsString(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}
