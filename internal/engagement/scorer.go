package engagement

import (
	"strings"
	"unicode"
)

// Tier 是消息质量的有序分级，从 noise 到 breakthrough 递增。
type Tier string

const (
	TierNoise        Tier = "noise"
	TierGenuine      Tier = "genuine"
	TierResonance    Tier = "resonance"
	TierClarity      Tier = "clarity"
	TierBreakthrough Tier = "breakthrough"
)

// NeutralTier 是零资金池结算等场景使用的中性分级。
const NeutralTier = TierGenuine

// multiplierTenths 以十分位整数保存各分级的报酬倍率，
// 结算走整数运算，避免浮点带来的不确定性。
var multiplierTenths = map[Tier]int64{
	TierNoise:        0,
	TierGenuine:      10,
	TierResonance:    20,
	TierClarity:      35,
	TierBreakthrough: 50,
}

// MultiplierTenths 返回分级对应的倍率（十分位整数）。
// 未知分级按 genuine 处理。
func MultiplierTenths(tier Tier) int64 {
	if tenths, ok := multiplierTenths[tier]; ok {
		return tenths
	}
	return multiplierTenths[TierGenuine]
}

// Multiplier 返回分级倍率的浮点表示，仅用于展示。
func Multiplier(tier Tier) float64 {
	return float64(MultiplierTenths(tier)) / 10
}

// ValidTier 判断字符串是否为已定义的分级。
func ValidTier(raw string) bool {
	_, ok := multiplierTenths[Tier(raw)]
	return ok
}

// Score 是一条消息的质量评估。三个子分均在 [0, 1] 区间。
type Score struct {
	Depth    float64 `json:"depth"`
	Kindness float64 `json:"kindness"`
	Novelty  float64 `json:"novelty"`
	Tier     Tier    `json:"tier"`
}

// Multiplier 返回该评估对应的报酬倍率。
func (s Score) Multiplier() float64 {
	return Multiplier(s.Tier)
}

// 加权组合的分级切点。
const (
	cutNoise     = 0.15
	cutGenuine   = 0.45
	cutResonance = 0.65
	cutClarity   = 0.85
)

// Scorer 计算消息质量。无外部依赖，同一输入永远得到同一输出。
type Scorer struct{}

// NewScorer 创建评分器。
func NewScorer() *Scorer {
	return &Scorer{}
}

// Evaluate 对消息打分。vocabulary 是该参与者历史词汇集合，
// 用于计算新颖度；由调用方负责读取与更新。
func (s *Scorer) Evaluate(message string, vocabulary map[string]struct{}) Score {
	words := Words(message)

	depth := depthScore(message, words)
	kindness := kindnessScore(words)
	novelty := noveltyScore(words, vocabulary)

	combined := 0.4*depth + 0.3*kindness + 0.3*novelty

	return Score{
		Depth:    depth,
		Kindness: kindness,
		Novelty:  novelty,
		Tier:     tierOf(combined),
	}
}

func tierOf(combined float64) Tier {
	switch {
	case combined < cutNoise:
		return TierNoise
	case combined < cutGenuine:
		return TierGenuine
	case combined < cutResonance:
		return TierResonance
	case combined < cutClarity:
		return TierClarity
	default:
		return TierBreakthrough
	}
}

// depthScore 由长度与结构信号组成：词数占七成，
// 多句、提问、因果连接词等结构特征占三成。
func depthScore(message string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	length := float64(len(words)) / 50
	if length > 1 {
		length = 1
	}

	structure := 0.0
	if strings.Count(message, ".")+strings.Count(message, "!")+strings.Count(message, "?") >= 2 {
		structure += 0.4
	}
	if strings.Contains(message, "?") {
		structure += 0.3
	}
	for _, connective := range []string{"because", "therefore", "however", "although"} {
		if containsWord(words, connective) {
			structure += 0.3
			break
		}
	}
	if structure > 1 {
		structure = 1
	}

	return 0.7*length + 0.3*structure
}

// 极性词表。命中温暖词加分，命中攻击词扣分。
var warmWords = map[string]struct{}{
	"thank": {}, "thanks": {}, "grateful": {}, "appreciate": {}, "love": {},
	"beautiful": {}, "wonderful": {}, "together": {}, "hope": {}, "care": {},
	"kind": {}, "gentle": {}, "honor": {}, "respect": {}, "welcome": {},
}

var harshWords = map[string]struct{}{
	"hate": {}, "stupid": {}, "idiot": {}, "useless": {}, "worthless": {},
	"shut": {}, "garbage": {}, "trash": {}, "pathetic": {}, "disgusting": {},
}

// kindnessScore 以 0.5 为中性基线，按极性词加减。
// 没有可评估的词时计 0，不套用中性基线。
func kindnessScore(words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	score := 0.5
	for _, word := range words {
		if _, ok := warmWords[word]; ok {
			score += 0.1
		}
		if _, ok := harshWords[word]; ok {
			score -= 0.15
		}
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// noveltyScore 是未出现在历史词汇中的词占比。
// 词数不足 8 时按比例衰减，避免一两个生词撑高整条消息。
func noveltyScore(words []string, vocabulary map[string]struct{}) float64 {
	meaningful := 0
	fresh := 0
	for _, word := range words {
		if _, stop := stopWords[word]; stop {
			continue
		}
		meaningful++
		if _, seen := vocabulary[word]; !seen {
			fresh++
		}
	}
	if meaningful == 0 {
		return 0
	}
	ratio := float64(fresh) / float64(meaningful)
	if meaningful < 8 {
		ratio *= float64(meaningful) / 8
	}
	return ratio
}

// Words 将消息切分为小写词序列，去掉标点，保留长度 ≥ 3 的词。
// 参与者词汇集合的写入方与评分方必须使用同一种切分。
func Words(message string) []string {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})

	words := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, "'")
		if len(field) >= 3 {
			words = append(words, field)
		}
	}
	return words
}

// MeaningfulWords 返回去掉停用词后的词集合，供词汇存储使用。
func MeaningfulWords(message string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, word := range Words(message) {
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return out
}

func containsWord(words []string, target string) bool {
	for _, word := range words {
		if word == target {
			return true
		}
	}
	return false
}

// stopWords 是不携带主题信息的常见英文词。
var stopWords = func() map[string]struct{} {
	list := []string{
		"the", "and", "but", "for", "with", "about", "against", "between",
		"through", "during", "before", "after", "above", "below", "from",
		"down", "out", "off", "over", "under", "again", "further", "then",
		"once", "here", "there", "when", "where", "why", "how", "all",
		"both", "each", "few", "more", "most", "other", "some", "such",
		"nor", "not", "only", "own", "same", "than", "too", "very", "can",
		"will", "just", "don't", "should", "now", "this", "that", "these",
		"those", "was", "were", "been", "being", "have", "has", "had",
		"having", "does", "did", "doing", "what", "which", "who", "whom",
		"you", "your", "yours", "yourself", "they", "them", "their",
		"theirs", "because", "until", "while", "also", "would", "could",
		"might", "shall", "may", "much", "many", "like", "get", "got",
		"going", "went", "come", "came", "make", "made", "take", "took",
		"know", "knew", "think", "thought", "say", "said", "tell", "told",
		"see", "saw", "want", "need", "use", "used", "try", "find", "give",
		"way", "thing", "things", "something", "anything", "everything",
		"nothing", "one", "two", "even", "still", "well", "back", "really",
		"right", "good", "new", "first", "last", "long", "great", "little",
		"old", "big", "high", "small", "large", "next", "early", "young",
		"important", "let", "keep", "kind", "seem", "help", "put", "lot",
		"look", "time", "people", "into", "year", "call", "sit", "day",
		"any", "work", "part", "mean", "means", "i'm", "i've", "don't",
		"that's", "you're", "it's", "can't", "won't", "there's", "what's",
		"he's", "she's", "they're", "you've",
	}
	set := make(map[string]struct{}, len(list))
	for _, word := range list {
		set[word] = struct{}{}
	}
	return set
}()
