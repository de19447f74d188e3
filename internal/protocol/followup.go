package protocol

import "math/rand/v2"

// Follow-up questions rotate through solution-focused archetypes by turn
// number so consecutive answers never repeat the same question shape:
// scaling, exception finding, coping, the miracle question, then relational
// perspective for every later turn.
var followupSets = [][]string{
	{
		"지금 마음 상태를 0에서 10까지 점수로 표현한다면 몇 점쯤일까요?",
		"오늘 하루를 0에서 10까지 점수로 매긴다면 어느 정도였나요?",
		"그 힘든 정도를 숫자로 표현하면 10점 만점에 몇 점일까요?",
	},
	{
		"최근에 그 문제가 조금이라도 덜 힘들게 느껴졌던 순간이 있었나요?",
		"비슷한 상황에서 그래도 괜찮았던 때가 있었다면 언제였나요?",
		"그 어려움이 잠시라도 가벼워졌던 적이 있었을까요?",
	},
	{
		"그렇게 힘든 상황을 지금까지 어떻게 버텨 오셨나요?",
		"이 어려움 속에서도 하루하루를 지탱해 준 것은 무엇이었나요?",
		"지금까지 견뎌올 수 있었던 자신만의 방법이 있다면 무엇일까요?",
	},
	{
		"만약 자고 일어났더니 그 문제가 사라져 있다면, 무엇이 가장 먼저 달라져 있을까요?",
		"문제가 해결된 내일 아침을 상상해 본다면 어떤 모습일까요?",
		"그 고민이 없어진다면 가장 먼저 무엇을 해보고 싶으신가요?",
	},
	{
		"주변에서 당신을 아끼는 사람이라면 지금 상황을 뭐라고 말해줄까요?",
		"가까운 친구가 같은 고민을 한다면 어떤 이야기를 해주고 싶으세요?",
		"당신을 잘 아는 사람은 당신의 어떤 점을 강점이라고 말할까요?",
	},
}

// followupRotation picks one question from the archetype matching the turn
// number. The very first turn is deterministic so a session always opens with
// the same scaling question; later turns randomize within the archetype.
type followupRotation struct {
	// pickIndex is injectable for tests.
	pickIndex func(n int) int
}

func newFollowupRotation() *followupRotation {
	return &followupRotation{pickIndex: rand.IntN}
}

func (r *followupRotation) pick(conversationCount int) string {
	set := followupSets[len(followupSets)-1]
	if conversationCount < len(followupSets) {
		set = followupSets[conversationCount]
	}
	if conversationCount == 0 {
		return set[0]
	}
	return set[r.pickIndex(len(set))]
}
