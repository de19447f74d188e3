package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAssessSeverity(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Severity
	}{
		{"critical on suicidal ideation", "요즘 자꾸 죽고 싶다는 생각이 들어요", SeverityCritical},
		{"critical wins over lower tiers", "너무 힘들어서 자살까지 생각했어요", SeverityCritical},
		{"high on unbearable expressions", "더 이상 못 견디겠어요", SeverityHigh},
		{"medium on distress words", "요즘 스트레스를 많이 받아요", SeverityMedium},
		{"low otherwise", "오늘은 날씨가 좋네요", SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssessSeverity(tt.input); got != tt.want {
				t.Errorf("AssessSeverity(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSelectProtocol(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Type
	}{
		{"crisis selects safety", "이제 그냥 다 끝내고 싶어요", TypeSafety},
		{"crisis wins over solution ask", "죽고 싶어요 어떻게 해야 할까요", TypeSafety},
		{"solution ask selects solution focused", "이 상황을 개선할 방법이 있을까요", TypeSolutionFocused},
		{"default is integrated", "요즘 잠이 잘 안 와요", TypeIntegrated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectProtocol(tt.input); got != tt.want {
				t.Errorf("SelectProtocol(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsClosing(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"고마워", true},
		{"정말 고마워요", true},
		{"  종료  ", true},
		{"EXIT", true},
		{"안녕히 계세요", true},
		{"계속 이야기하고 싶어요", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsClosing(tt.input); got != tt.want {
			t.Errorf("IsClosing(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestEngine_Guide(t *testing.T) {
	engine := NewEngine()

	t.Run("crisis turn gets safety protocol and hotline notice", func(t *testing.T) {
		g := engine.Guide(NewSessionState(), "죽고 싶다는 생각뿐이에요", nil)

		if g.Protocol != TypeSafety {
			t.Errorf("protocol = %v, want safety", g.Protocol)
		}
		if g.Severity != SeverityCritical {
			t.Errorf("severity = %v, want critical", g.Severity)
		}
		if g.Stage != StageEmotionExploration {
			t.Errorf("stage = %v, want emotion exploration", g.Stage)
		}
		if !strings.Contains(g.CrisisNotice, "1393") {
			t.Errorf("crisis notice missing hotline: %q", g.CrisisNotice)
		}
	})

	t.Run("emotion with situation triggers retrieval", func(t *testing.T) {
		g := engine.Guide(NewSessionState(), "직장 상사 때문에 너무 힘들어요", nil)

		if !g.HasEmotion || !g.HasSituation {
			t.Errorf("HasEmotion = %v, HasSituation = %v, want both", g.HasEmotion, g.HasSituation)
		}
		if !g.ShouldRetrieve {
			t.Error("expected retrieval for emotion with situation")
		}
		if g.ForceAugmented {
			t.Error("statement without solution ask should not force augmentation")
		}
		if g.SearchQuery != "직장 상사 때문에 너무 힘들어요" {
			t.Errorf("search query = %q", g.SearchQuery)
		}
		if g.EmotionContext == "" {
			t.Error("expected emotion context from counseling vocabulary")
		}
	})

	t.Run("solution ask forces augmentation with history context", func(t *testing.T) {
		history := []Exchange{
			{User: "회사에서 발표를 크게 망쳤어요", Assistant: "많이 속상하셨겠어요."},
			{User: "네 맞아요", Assistant: "충분히 그러실 수 있어요."},
		}
		g := engine.Guide(SessionState{ConversationCount: 2}, "어떻게 해야 할까요", history)

		if !g.ForceAugmented || !g.ShouldRetrieve {
			t.Errorf("ForceAugmented = %v, ShouldRetrieve = %v, want both", g.ForceAugmented, g.ShouldRetrieve)
		}
		want := "회사에서 발표를 크게 망쳤어요 어떻게 해야 할까요"
		if g.SearchQuery != want {
			t.Errorf("search query = %q, want %q", g.SearchQuery, want)
		}
	})

	t.Run("small talk skips retrieval", func(t *testing.T) {
		g := engine.Guide(NewSessionState(), "오늘 날씨가 좋네요", nil)

		if g.ShouldRetrieve {
			t.Error("expected no retrieval for small talk")
		}
		if g.SearchQuery != "" {
			t.Errorf("search query = %q, want empty", g.SearchQuery)
		}
		if g.CrisisNotice != "" {
			t.Errorf("crisis notice = %q, want empty", g.CrisisNotice)
		}
	})

	t.Run("identified issues come from situation keywords", func(t *testing.T) {
		g := engine.Guide(NewSessionState(), "직장에서 동료와 갈등이 생겨 괴로워요", nil)

		if len(g.IdentifiedIssues) == 0 {
			t.Fatal("expected identified issues")
		}
		if g.IdentifiedIssues[0] != "직장" {
			t.Errorf("issues = %v", g.IdentifiedIssues)
		}
	})
}

func TestEngine_StageProgression(t *testing.T) {
	engine := NewEngine()
	neutral := "요즘 생각이 많네요"

	tests := []struct {
		count int
		want  Stage
	}{
		{0, StageEmotionExploration},
		{1, StageEmotionExploration},
		{2, StageStrengthResources},
		{3, StageStrengthResources},
		{4, StageSolutionFocused},
		{5, StageSolutionFocused},
		{6, StageActionPlan},
		{12, StageActionPlan},
	}

	for _, tt := range tests {
		state := SessionState{ConversationCount: tt.count}
		g := engine.Guide(state, neutral, nil)
		if g.Stage != tt.want {
			t.Errorf("count %d: stage = %v, want %v", tt.count, g.Stage, tt.want)
		}
	}

	t.Run("keywords override progression", func(t *testing.T) {
		g := engine.Guide(NewSessionState(), "이번 주부터 산책을 시작해볼게요", nil)
		if g.Stage != StageActionPlan {
			t.Errorf("stage = %v, want action plan", g.Stage)
		}

		g = engine.Guide(NewSessionState(), "지금까지 혼자 노력하며 버텨왔어요", nil)
		if g.Stage != StageStrengthResources {
			t.Errorf("stage = %v, want strength resources", g.Stage)
		}
	})

	t.Run("every stage has a guideline", func(t *testing.T) {
		for _, stage := range []Stage{
			StageEmotionExploration, StageStrengthResources,
			StageSolutionFocused, StageActionPlan,
		} {
			if stageGuidelines[stage] == "" {
				t.Errorf("stage %v has no guideline", stage)
			}
		}
	})
}

func TestFollowupRotation(t *testing.T) {
	t.Run("first turn is deterministic", func(t *testing.T) {
		r := newFollowupRotation()
		for i := 0; i < 5; i++ {
			if got := r.pick(0); got != followupSets[0][0] {
				t.Fatalf("pick(0) = %q, want %q", got, followupSets[0][0])
			}
		}
	})

	t.Run("archetype follows turn number", func(t *testing.T) {
		r := newFollowupRotation()
		r.pickIndex = func(int) int { return 0 }

		for count := 0; count < len(followupSets); count++ {
			got := r.pick(count)
			if got != followupSets[count][0] {
				t.Errorf("pick(%d) = %q, want from set %d", count, got, count)
			}
		}
	})

	t.Run("late turns use relational set", func(t *testing.T) {
		r := newFollowupRotation()
		r.pickIndex = func(int) int { return 1 }

		last := followupSets[len(followupSets)-1]
		if got := r.pick(9); got != last[1] {
			t.Errorf("pick(9) = %q, want from relational set", got)
		}
	})

	t.Run("random pick stays in bounds", func(t *testing.T) {
		r := newFollowupRotation()
		for i := 0; i < 50; i++ {
			q := r.pick(3)
			if !containsString(followupSets[3], q) {
				t.Fatalf("pick(3) = %q, not in archetype", q)
			}
		}
	})
}

func TestSessionState(t *testing.T) {
	t.Run("advance ratchets severity upward only", func(t *testing.T) {
		state := NewSessionState()

		state.Advance(Guidance{Severity: SeverityHigh, Stage: StageEmotionExploration, Protocol: TypeIntegrated})
		if state.Severity != SeverityHigh {
			t.Errorf("severity = %v, want high", state.Severity)
		}

		state.Advance(Guidance{Severity: SeverityMedium, Stage: StageStrengthResources, Protocol: TypeIntegrated})
		if state.Severity != SeverityHigh {
			t.Errorf("severity downgraded to %v", state.Severity)
		}
		if state.ConversationCount != 2 {
			t.Errorf("count = %d, want 2", state.ConversationCount)
		}
		if state.Stage != StageStrengthResources {
			t.Errorf("stage = %v", state.Stage)
		}
	})

	t.Run("advance deduplicates issues", func(t *testing.T) {
		state := NewSessionState()
		state.Advance(Guidance{Severity: SeverityLow, IdentifiedIssues: []string{"직장", "동료"}})
		state.Advance(Guidance{Severity: SeverityLow, IdentifiedIssues: []string{"직장", "가족"}})

		if len(state.IdentifiedIssues) != 3 {
			t.Errorf("issues = %v, want 3 unique", state.IdentifiedIssues)
		}
	})

	t.Run("reset restores initial state", func(t *testing.T) {
		state := NewSessionState()
		state.Advance(Guidance{Severity: SeverityCritical, Stage: StageActionPlan, Protocol: TypeSafety})

		state.Reset()
		if state.ConversationCount != 0 || state.Severity != SeverityLow ||
			state.Stage != StageEmotionExploration || state.Protocol != TypeIntegrated {
			t.Errorf("state after reset = %+v", state)
		}
	})

	t.Run("solution-focused material survives serialization and clears on reset", func(t *testing.T) {
		state := NewSessionState()
		state.ScalingScores = []int{4, 6}
		state.Goals = []string{"다시 출근하기"}
		state.ExceptionsFound = []string{"주말에는 잘 잤다"}
		state.CopingStrategies = []string{"산책"}

		raw, err := json.Marshal(state)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		for _, key := range []string{"scaling_scores", "goals", "exceptions_found", "coping_strategies"} {
			if !strings.Contains(string(raw), key) {
				t.Errorf("serialized state missing %q: %s", key, raw)
			}
		}

		state.Reset()
		if state.ScalingScores != nil || state.Goals != nil ||
			state.ExceptionsFound != nil || state.CopingStrategies != nil {
			t.Errorf("material not cleared: %+v", state)
		}
	})
}
