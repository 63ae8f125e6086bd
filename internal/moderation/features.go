package moderation

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// textFeatures 启发式规则可引用的文本统计量
type textFeatures struct {
	Length     int
	Letters    int
	Upper      int
	Punct      int
	Digits     int
	Words      int
	MaxRun     int
	nonSpace   int
	normalized string
	tokenText  string
}

// extractFeatures 一次遍历计算所有统计量
func extractFeatures(text string) *textFeatures {
	f := &textFeatures{}

	var prev rune
	run := 0
	for _, r := range text {
		f.Length++
		if unicode.IsSpace(r) {
			run = 0
			prev = 0
			continue
		}
		f.nonSpace++

		switch {
		case unicode.IsLetter(r):
			f.Letters++
			if unicode.IsUpper(r) {
				f.Upper++
			}
		case unicode.IsDigit(r):
			f.Digits++
		case unicode.IsPunct(r):
			f.Punct++
		}

		if r == prev {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > f.MaxRun {
			f.MaxRun = run
		}
	}

	f.Words = len(strings.Fields(text))
	f.normalized = normalizeText(text)
	f.tokenText = tokenize(f.normalized)
	return f
}

// CapsRatio 大写字母占全部字母的比例
func (f *textFeatures) CapsRatio() float64 {
	if f.Letters == 0 {
		return 0
	}
	return float64(f.Upper) / float64(f.Letters)
}

// PunctRatio 标点占非空白字符的比例
func (f *textFeatures) PunctRatio() float64 {
	if f.nonSpace == 0 {
		return 0
	}
	return float64(f.Punct) / float64(f.nonSpace)
}

// parameters 供 govaluate 表达式使用的变量表
func (f *textFeatures) parameters() map[string]interface{} {
	return map[string]interface{}{
		"length":      float64(f.Length),
		"letters":     float64(f.Letters),
		"digits":      float64(f.Digits),
		"words":       float64(f.Words),
		"max_run":     float64(f.MaxRun),
		"caps_ratio":  f.CapsRatio(),
		"punct_ratio": f.PunctRatio(),
	}
}

// featureNames 表达式中允许出现的变量
var featureNames = map[string]struct{}{
	"length":      {},
	"letters":     {},
	"digits":      {},
	"words":       {},
	"max_run":     {},
	"caps_ratio":  {},
	"punct_ratio": {},
}

// normalizeText 小写化、去除变音符号并折叠空白
func normalizeText(text string) string {
	// transform.Chain 有内部状态，每次调用都要重新构建
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, text)
	if err != nil {
		folded = text
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// tokenize 按非字母数字切分后以单个空格拼接，用于整词匹配
func tokenize(normalized string) string {
	return strings.Join(strings.FieldsFunc(normalized, isTokenSeparator), " ")
}

func isTokenSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
