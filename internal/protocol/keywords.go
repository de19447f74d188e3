package protocol

import "strings"

// Keyword tables driving protocol selection, severity assessment, and the
// answer-structure policy. Matching is substring containment on lowercased
// input; "not difficult" therefore still matches "difficult". That
// approximation is kept intentionally because the downstream branch behavior
// depends on it.

// crisisKeywords select the safety protocol regardless of anything else.
var crisisKeywords = []string{"죽고 싶", "자살", "자해", "끝내고 싶", "포기", "절망"}

// severityCritical short-circuits the severity assessment.
var severityCritical = []string{"죽고 싶", "자살", "자해", "끝내고 싶"}

var severityHigh = []string{"견딜 수 없", "미치겠", "한계", "더 이상 못", "불가능"}

var severityMedium = []string{"힘들", "어렵", "괴롭", "고통", "스트레스"}

// solutionKeywords select the solution-focused protocol.
var solutionKeywords = []string{"어떻게", "방법", "해결", "개선", "나아지", "변화"}

// emotionKeywords and situationKeywords drive the structure policy: both
// present means the input is detailed enough for a richer answer shape.
var emotionKeywords = []string{
	"힘들", "어렵", "괴롭", "슬프", "화나", "우울", "불안", "답답",
	"스트레스", "고통", "절망", "무기력", "초조", "걱정", "두려움",
	"짜증", "분노", "상처", "아픔", "외로움", "허탈", "실망",
}

var situationKeywords = []string{
	// 직장/일 관련
	"직장", "회사", "동료", "상사", "부장", "과장", "팀장", "업무", "일", "프로젝트",
	// 관계 관련
	"가족", "부모", "아버지", "어머니", "형제", "자매", "친구", "연인", "배우자", "이혼",
	// 상황 설명 패턴
	"때문에", "해서", "해서인지", "했는데", "했어", "했어요", "일어났", "발생했", "경험했",
	"문제", "상황", "사건", "때", "순간", "경우", "상황이", "문제가",
	// 구체적 명사
	"시험", "면접", "취업", "전입", "이사", "결혼", "이별", "병", "질병", "사고",
}

// retrievalPhrases force the retrieval-augmented path for how-to questions
// even when the turn carries no situation description of its own.
var retrievalPhrases = []string{
	"어떻게 해야", "어떻게 하면", "어떻게 해야할까", "어떻게 해야하나",
	"해야할까", "해야하나", "해야 하는",
	"방법", "해결", "어떻게", "어떤 방법", "무엇을 해야",
	"어떻게 해결", "어떻게 대처", "어떻게 처리",
	"해야", "해야할지", "해야하는지", "해결 방법", "대처 방법",
}

// solutionAskPhrases detect that the current turn asks for a way forward,
// used with history context to avoid re-asking for the situation.
var solutionAskPhrases = []string{
	"어떻게 해야", "어떻게 하면", "어떻게 해야할까", "어떻게 해야할지",
	"어떻게 해야 할지", "방법", "해결", "대처", "알려줘", "알려줘요",
	"알려주세요", "조언", "도움",
}

// closingPhrases end the session and reset its state.
var closingPhrases = []string{"exit", "고마워", "끝", "종료", "그만", "안녕"}

// stageStrengthKeywords suggest the user is describing their own effort or
// resources; stageActionKeywords suggest readiness to act.
var stageStrengthKeywords = []string{"버티", "버텼", "노력", "잘한", "잘했", "해냈", "극복", "견뎌"}

var stageActionKeywords = []string{"해볼게", "해보겠", "시작해", "실천", "시도해", "해볼래", "계획"}

// CounselingKeywords is the emotion/counseling lexicon shared with the
// retrieval layer for emotion-aware score boosting.
var CounselingKeywords = []string{
	// 기본 감정 키워드
	"힘들어", "상담", "짜증", "우울", "불안", "스트레스",
	"고민", "걱정", "슬프", "외로", "화나", "답답",
	"아들러", "adler", "counseling", "therapy", "help",
	"depressed", "anxious", "심리", "슬퍼",

	// 부정적 감정 키워드
	"절망", "포기", "무기력", "자책", "후회", "미안",
	"두려움", "공포", "불안감", "초조", "조마조마",
	"분노", "화남", "짜증나", "성가심", "불쾌",
	"슬픔", "비참", "절망적", "우울함", "침체",
	"외로움", "고독", "쓸쓸", "허전", "외톨이",
	"답답함", "막막", "막힘", "난처", "곤란",
	"피곤", "지침", "무력감", "의욕없음",
	"수치", "수치스럽", "수치심",
	"열받", "열받아", "화낼", "미치", "미쳐",
	"억울", "억울해", "억울함",
	"멍하", "멍하게",

	// 관계/대인관계 관련
	"갈등", "싸움", "다툼", "오해", "불화",
	"이별", "헤어짐", "이혼", "결별",
	"배신", "상처", "아픔", "서운",
	"소외", "왕따", "따돌림", "무시",
	"배제", "멀리하는", "겉돌고",
	"혼자", "남겨지는", "불편", "팀", "회사",

	// 직장/학업 스트레스
	"직장", "업무", "과로", "번아웃", "burnout",
	"시험", "공부", "학업", "성적", "압박",
	"실패", "좌절", "낙담", "실망",
	"상사", "팀장", "부장", "동기", "동료",
	"폭언", "인격모독", "인격 모독",
	"소리지르", "소리 지르", "화풀이",
	"그만두", "퇴사", "사직",
	"적응", "분위기", "문화", "익숙",
	"부담", "어울리", "소통",
	"환경", "출근", "긴장",
	"낯설", "규칙", "절차", "복잡",
	"회의", "의견", "표현",
	"출퇴근", "루틴", "리듬", "변화", "부담감", "프로젝트",

	// 자기존중감/자신감 관련
	"자존감", "자신감", "열등감", "비교", "열등",
	"자기비하", "자기혐오", "부족함",
	"능력부족", "무능력", "쓸모없음",

	// 트라우마/과거 상처
	"트라우마", "trauma", "과거", "기억",
	"악몽", "플래시백", "ptsd",

	// 신체 반응/증상
	"심장", "떨려", "떨림", "손떨림",
	"잠이 안 와", "불면", "수면장애", "수면",

	// 감정 조절/대처
	"감정조절", "감정 조절", "대처", "해결",

	// 자살 사고
	"죽고 싶", "자살", "suicide",

	// 영어 감정 키워드
	"sad", "angry", "lonely", "frustrated", "stressed",
	"worried", "scared", "afraid", "fear", "panic",
	"hopeless", "helpless", "worthless", "empty",
	"guilt", "shame", "regret", "remorse",
	"jealous", "envy", "resentment", "bitter",
	"tired", "exhausted", "overwhelmed",
	"confused", "lost",

	// 상담/치료 관련 용어
	"심리상담", "정신건강", "치료", "치유", "회복",
	"마음", "감정", "기분", "조언",
	"도움", "지원", "위로", "격려", "공감",
	"psychology", "mental health", "counselor", "therapist",
	"support", "comfort", "encouragement", "empathy",

	// 일상적 표현
	"안좋아", "안좋음", "나쁨", "최악", "끔찍",
	"괴로워", "괴롭", "아파", "고통",
	"힘듦", "어려움", "난감", "막막함",

	// 통제/주도권 관련
	"통제", "주도권", "독단적", "경직",
	"inflexible", "overbearing", "control",

	// 가족 관계 관련
	"아버지", "어머니", "부모", "가족", "father", "mother", "parent", "family",

	// 완벽주의 관련
	"완벽", "완벽주의", "perfect", "perfectionism",

	// 불안정/신뢰 관련
	"불안정", "insecure", "instability",
	"불신", "신뢰", "믿음", "trust", "mistrust",
}

// containsAny reports whether any keyword occurs as a substring of s.
// s must already be lowercased.
func containsAny(s string, keywords []string) bool {
	return firstMatch(s, keywords) != ""
}

// firstMatch returns the first keyword occurring as a substring of s, or "".
func firstMatch(s string, keywords []string) string {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return k
		}
	}
	return ""
}

// matchAll returns every keyword occurring as a substring of s, capped at max.
func matchAll(s string, keywords []string, max int) []string {
	var out []string
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			out = append(out, k)
			if len(out) >= max {
				break
			}
		}
	}
	return out
}
