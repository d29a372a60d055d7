package capability

import (
	"regexp"
	"strings"

	"github.com/germanamz/promptforge/pkg/settings"
)

// Reasoning indicators looked for in a probe reply, matched case-insensitively
// as substrings. The Chinese entries match replies to localized prompts.
var (
	explicitMarkers = []string{"<thinking>", "thinking:", "analysis:", "reasoning:", "思考：", "分析：", "推理："}

	stepWords = []string{
		"first,", "then,", "next,", "finally,", "step 1", "step 2", "step 3",
		"首先", "然后", "接着", "最后", "第一步", "第二步", "第三步", "步骤1", "步骤2",
	}

	computationWords = []string{
		"calculate", "calculation", "derive", "verify", "original price", "final price",
		"计算", "计算过程", "解题", "推导", "验证", "原价", "打折", "折扣", "最终价格",
	}

	discourseWords = []string{
		"let me", "i need to", "let's", "consider", "therefore", "it follows that",
		"based on", "according to", "assuming",
		"让我", "我需要", "我们来", "分析一下", "考虑到", "因此", "所以", "由此可见", "可以得出",
		"根据", "基于", "考虑", "假设", "如果", "那么",
	}

	// Phrases that count as reasoning on their own.
	decisivePhrases = []string{"<thinking>", "分析过程", "reasoning process"}

	logicalWords = []string{"因为", "所以", "然而", "但是", "因此", "由于", "由此", "可见"}
)

var (
	numberedList      = regexp.MustCompile(`[1-9]\.|[一二三四五]\s*、|步骤\s*[1-9]|(?i:step)\s*[1-9]`)
	logicalWordsLatin = regexp.MustCompile(`(?i)\b(because|however|but|therefore|since|hence|thus)\b`)

	mathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d+\s*[×*]\s*\d+`),
		regexp.MustCompile(`\d+\s*[÷/]\s*\d+`),
		regexp.MustCompile(`\d+\s*\+\s*\d+`),
		regexp.MustCompile(`\d+\s*-\s*\d+`),
		regexp.MustCompile(`=\s*\d+`),
		regexp.MustCompile(`0\.\d+`),
		regexp.MustCompile(`\d+%`),
		regexp.MustCompile(`打.*折`),
		regexp.MustCompile(`折扣|(?i:\bdiscount)`),
	}
)

// indicatorPhrases is every phrase counted by IndicatorCount.
var indicatorPhrases = concat(explicitMarkers, stepWords, computationWords, discourseWords)

// IndicatorCount returns how many distinct indicator phrases occur in text.
func IndicatorCount(text string) int {
	lower := strings.ToLower(text)

	n := 0
	for _, phrase := range indicatorPhrases {
		if strings.Contains(lower, phrase) {
			n++
		}
	}
	return n
}

// HasStructuredThinking reports a numbered list, or more than two non-empty
// lines together with at least two distinct logical connectives.
func HasStructuredThinking(text string) bool {
	if numberedList.MatchString(text) {
		return true
	}

	lines := 0
	for line := range strings.SplitSeq(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	if lines <= 2 {
		return false
	}

	connectives := 0
	for _, w := range logicalWords {
		if strings.Contains(text, w) {
			connectives++
		}
	}

	seen := map[string]bool{}
	for _, m := range logicalWordsLatin.FindAllString(text, -1) {
		seen[strings.ToLower(m)] = true
	}
	connectives += len(seen)

	return connectives >= 2
}

// HasMathematicalReasoning reports an arithmetic expression, a decimal
// fraction, a percentage or discount vocabulary.
func HasMathematicalReasoning(text string) bool {
	for _, re := range mathPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// DetectOpenAIThinking classifies a reply to the arithmetic probe. It is
// positive for at least two indicators plus structure, at least three
// indicators, any arithmetic pattern, or an explicit reasoning marker.
func DetectOpenAIThinking(text string) bool {
	count := IndicatorCount(text)
	if count >= 3 {
		return true
	}
	if count >= 2 && HasStructuredThinking(text) {
		return true
	}
	if HasMathematicalReasoning(text) {
		return true
	}

	lower := strings.ToLower(text)
	for _, phrase := range decisivePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// HasThinkingTags reports a complete <thinking>...</thinking> pair.
func HasThinkingTags(text string) bool {
	return strings.Contains(text, "<thinking>") && strings.Contains(text, "</thinking>")
}

var (
	claudeThinkingModels = []string{"claude-3.5", "claude-3.7", "claude-4", "sonnet", "opus"}
	geminiThinkingModels = []string{"gemini-2.", "gemini-pro", "thinking", "exp"}
)

// IsClaudeThinkingModel reports model ids known to reason in thinking tags.
func IsClaudeThinkingModel(modelID string) bool {
	return settings.ContainsAny(modelID, claudeThinkingModels...)
}

// IsGeminiThinkingModel reports model ids known to emit thought parts.
func IsGeminiThinkingModel(modelID string) bool {
	return settings.ContainsAny(modelID, geminiThinkingModels...)
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
