// Package protocol implements the counseling protocol engine: protocol and
// stage selection, severity assessment, the answer-structure policy, and
// solution-focused follow-up questions. Everything in this package is a pure
// function of session state, the current input, and fixed keyword tables, so
// the same turn always yields the same guidance.
package protocol

import "strings"

// Type identifies the counseling protocol applied to a turn.
type Type string

const (
	// TypeSafety is the crisis protocol. It takes absolute precedence the
	// moment a crisis keyword appears.
	TypeSafety Type = "safety"

	// TypeSolutionFocused applies when the user asks for a way forward.
	TypeSolutionFocused Type = "solution_focused"

	// TypeIntegrated is the default blended protocol.
	TypeIntegrated Type = "integrated"
)

// Stage identifies the current counseling stage.
type Stage string

const (
	StageEmotionExploration Stage = "emotion_exploration"
	StageStrengthResources  Stage = "strength_resources"
	StageSolutionFocused    Stage = "solution_focused"
	StageActionPlan         Stage = "action_plan"
)

// Severity grades the emotional severity of a single input.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so session state can ratchet upward.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// stageGuidelines direct the answer generator for each stage.
var stageGuidelines = map[Stage]string{
	StageEmotionExploration: "내담자의 감정을 충분히 탐색하고 반영적 경청으로 공감을 전달하세요. " +
		"감정에 이름을 붙여 주고, 그 감정이 자연스러운 반응임을 인정해 주세요.",
	StageStrengthResources: "내담자가 지금까지 버텨온 방식과 가지고 있는 강점, 자원을 발견하도록 도우세요. " +
		"작은 성공 경험과 대처 능력을 구체적으로 짚어 격려하세요.",
	StageSolutionFocused: "문제의 원인 분석보다 원하는 변화와 실현 가능한 해결 방향에 집중하세요. " +
		"예외 상황과 이미 효과가 있었던 방법을 함께 찾아보세요.",
	StageActionPlan: "이번 주에 시도할 수 있는 작고 구체적인 행동 하나를 함께 정하세요. " +
		"실천 가능성을 확인하고 다음 만남에서 점검할 수 있도록 격려하세요.",
}

// crisisNotice is appended to answers when severity reaches high or critical.
const crisisNotice = "지금 많이 힘드신 것 같아 걱정됩니다. 혼자 견디지 마시고 " +
	"자살예방상담전화 1393 또는 정신건강위기상담 1577-0199로 꼭 연락해 주세요. " +
	"전문 상담사가 24시간 함께합니다."

// Guidance is the per-turn output of the protocol engine. The answer
// generator and the retrieval gate both consume it.
type Guidance struct {
	Protocol Type
	Stage    Stage
	Severity Severity

	// StageGuideline directs the tone and focus of the generated answer.
	StageGuideline string

	// FollowupQuestion is a solution-focused question to weave into the
	// answer when no richer structure applies.
	FollowupQuestion string

	// CrisisNotice carries the hotline guidance for high and critical
	// severity. Empty otherwise.
	CrisisNotice string

	// EmotionContext is the matched counseling vocabulary, space-joined,
	// passed to retrieval for emotion-aware scoring.
	EmotionContext string

	// HasEmotion and HasSituation describe the current input. Both true
	// means the turn carries enough detail for the full answer structure.
	HasEmotion   bool
	HasSituation bool

	// ShouldRetrieve gates the knowledge search for this turn.
	ShouldRetrieve bool

	// ForceAugmented keeps the retrieval-augmented path even when the top
	// similarity clears the direct-answer threshold.
	ForceAugmented bool

	// SearchQuery is the query to embed when ShouldRetrieve is set. It may
	// include situation context recovered from history.
	SearchQuery string

	// IdentifiedIssues are situation keywords detected on this turn.
	IdentifiedIssues []string
}

// Engine selects protocols and builds guidance. The zero value is not usable;
// construct with NewEngine.
type Engine struct {
	followups *followupRotation
}

// NewEngine returns an engine with randomized follow-up selection after the
// first turn.
func NewEngine() *Engine {
	return &Engine{followups: newFollowupRotation()}
}

// IsClosing reports whether the input asks to end the session.
func IsClosing(input string) bool {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return false
	}
	return containsAny(s, closingPhrases)
}

// AssessSeverity grades a single input by keyword tier. Critical keywords win
// over everything else.
func AssessSeverity(input string) Severity {
	s := strings.ToLower(input)
	switch {
	case containsAny(s, severityCritical):
		return SeverityCritical
	case containsAny(s, severityHigh):
		return SeverityHigh
	case containsAny(s, severityMedium):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SelectProtocol picks the protocol for an input. Crisis keywords select the
// safety protocol unconditionally; solution keywords select solution-focused;
// everything else is integrated.
func SelectProtocol(input string) Type {
	s := strings.ToLower(input)
	switch {
	case containsAny(s, crisisKeywords):
		return TypeSafety
	case containsAny(s, solutionKeywords):
		return TypeSolutionFocused
	default:
		return TypeIntegrated
	}
}

// Guide evaluates one turn. It never mutates state; callers apply the
// returned guidance via SessionState.Advance after the answer is produced.
func (e *Engine) Guide(state SessionState, input string, history []Exchange) Guidance {
	s := strings.ToLower(input)

	g := Guidance{
		Protocol: SelectProtocol(input),
		Severity: AssessSeverity(input),
	}

	g.HasEmotion = containsAny(s, emotionKeywords)
	g.HasSituation = containsAny(s, situationKeywords)
	g.IdentifiedIssues = matchAll(s, situationKeywords, 5)

	g.Stage = e.selectStage(state, s, g.Protocol)
	g.StageGuideline = stageGuidelines[g.Stage]
	g.FollowupQuestion = e.followups.pick(state.ConversationCount)

	if g.Severity == SeverityCritical || g.Severity == SeverityHigh {
		g.CrisisNotice = crisisNotice
	}

	if terms := matchAll(s, CounselingKeywords, 8); len(terms) > 0 {
		g.EmotionContext = strings.Join(terms, " ")
	}

	g.ForceAugmented = containsAny(s, retrievalPhrases)
	g.ShouldRetrieve = (g.HasEmotion && g.HasSituation) || g.ForceAugmented
	if g.ShouldRetrieve {
		g.SearchQuery = buildSearchQuery(input, s, g.HasSituation, history)
	}

	return g
}

// selectStage picks the stage from input keywords first, then from session
// progression. The safety protocol always stays in emotion exploration.
func (e *Engine) selectStage(state SessionState, lowered string, p Type) Stage {
	if p == TypeSafety {
		return StageEmotionExploration
	}
	switch {
	case containsAny(lowered, stageActionKeywords):
		return StageActionPlan
	case containsAny(lowered, solutionKeywords):
		return StageSolutionFocused
	case containsAny(lowered, stageStrengthKeywords):
		return StageStrengthResources
	}
	switch {
	case state.ConversationCount < 2:
		return StageEmotionExploration
	case state.ConversationCount < 4:
		return StageStrengthResources
	case state.ConversationCount < 6:
		return StageSolutionFocused
	default:
		return StageActionPlan
	}
}

// buildSearchQuery prepends situation context recovered from history when the
// current turn asks for a solution without restating the situation.
func buildSearchQuery(input, lowered string, hasSituation bool, history []Exchange) string {
	if hasSituation || !containsAny(lowered, solutionAskPhrases) {
		return input
	}
	for i := len(history) - 1; i >= 0; i-- {
		prev := strings.ToLower(history[i].User)
		if containsAny(prev, situationKeywords) {
			return history[i].User + " " + input
		}
	}
	return input
}
