package moderation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"
)

// RuleSpec 审核规则声明
//
// 每条规则只能声明一种检测方式：关键词列表、正则表达式或基于文本统计量的表达式。
type RuleSpec struct {
	Name     string   `yaml:"name" json:"name"`
	Flag     FlagKind `yaml:"flag" json:"flag"`
	Severity Severity `yaml:"severity" json:"severity"`
	Weight   int      `yaml:"weight" json:"weight"`
	Message  string   `yaml:"message" json:"message,omitempty"`

	Keywords       []string `yaml:"keywords" json:"keywords,omitempty"`
	MatchWholeWord bool     `yaml:"match_whole_word" json:"matchWholeWord,omitempty"`
	Pattern        string   `yaml:"pattern" json:"pattern,omitempty"`
	Expression     string   `yaml:"expression" json:"expression,omitempty"`
}

// compiledRule 预编译后的规则
type compiledRule struct {
	spec     RuleSpec
	keywords []string
	pattern  *regexp.Regexp
	expr     *govaluate.EvaluableExpression
}

// compileRule 校验并预编译单条规则
func compileRule(spec RuleSpec) (*compiledRule, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("规则名称不能为空")
	}
	if spec.Weight <= 0 {
		return nil, fmt.Errorf("规则 %s 的权重必须为正整数", spec.Name)
	}
	if !spec.Flag.IsKnown() {
		return nil, fmt.Errorf("规则 %s 的类别无效: %q", spec.Name, spec.Flag)
	}
	if spec.Severity != SeverityWarn && spec.Severity != SeverityBlock {
		return nil, fmt.Errorf("规则 %s 的严重程度无效: %q", spec.Name, spec.Severity)
	}

	predicates := 0
	rule := &compiledRule{spec: spec}

	if len(spec.Keywords) > 0 {
		predicates++
		for _, kw := range spec.Keywords {
			n := normalizeText(kw)
			if spec.MatchWholeWord {
				n = tokenize(n)
			}
			if n == "" {
				return nil, fmt.Errorf("规则 %s 含有空关键词", spec.Name)
			}
			rule.keywords = append(rule.keywords, n)
		}
	}

	if spec.Pattern != "" {
		predicates++
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("规则 %s 正则编译失败: %w", spec.Name, err)
		}
		rule.pattern = re
	}

	if spec.Expression != "" {
		predicates++
		expr, err := govaluate.NewEvaluableExpression(spec.Expression)
		if err != nil {
			return nil, fmt.Errorf("规则 %s 表达式解析失败: %w", spec.Name, err)
		}
		for _, v := range expr.Vars() {
			if _, ok := featureNames[v]; !ok {
				return nil, fmt.Errorf("规则 %s 引用了未知变量: %s", spec.Name, v)
			}
		}
		rule.expr = expr
	}

	if predicates != 1 {
		return nil, fmt.Errorf("规则 %s 必须且只能声明一种检测方式", spec.Name)
	}
	return rule, nil
}

// matches 判断规则是否命中
func (r *compiledRule) matches(text string, f *textFeatures) bool {
	switch {
	case r.keywords != nil:
		return r.matchKeywords(f)
	case r.pattern != nil:
		return r.pattern.MatchString(text)
	case r.expr != nil:
		result, err := r.expr.Evaluate(f.parameters())
		if err != nil {
			return false
		}
		hit, ok := result.(bool)
		return ok && hit
	}
	return false
}

func (r *compiledRule) matchKeywords(f *textFeatures) bool {
	for _, kw := range r.keywords {
		if r.spec.MatchWholeWord {
			if strings.Contains(" "+f.tokenText+" ", " "+kw+" ") {
				return true
			}
			continue
		}
		if strings.Contains(f.normalized, kw) {
			return true
		}
	}
	return false
}

// ============================================================================
// 内置规则表
// ============================================================================

// DefaultRules 返回内置规则表，顺序即评估与提示输出的顺序
func DefaultRules() []RuleSpec {
	return []RuleSpec{
		{
			Name:           "threats",
			Flag:           FlagThreat,
			Severity:       SeverityBlock,
			Weight:         100,
			Keywords:       []string{"kill you", "i will hurt you", "burn your house", "you deserve to die", "going to find you"},
			MatchWholeWord: true,
		},
		{
			Name:           "profanity",
			Flag:           FlagProfanity,
			Severity:       SeverityWarn,
			Weight:         15,
			Message:        "Please keep language respectful for the community",
			Keywords:       []string{"fuck", "shit", "bastard", "bitch", "asshole", "crap", "damn"},
			MatchWholeWord: true,
		},
		{
			Name:     "spam_phrases",
			Flag:     FlagSpam,
			Severity: SeverityWarn,
			Weight:   20,
			Message:  "This looks like promotional content",
			Keywords: []string{"buy now", "cheap followers", "click here", "free money", "limited offer", "work from home", "earn cash", "crypto giveaway", "100% free"},
		},
		{
			Name:     "scam_phrases",
			Flag:     FlagScam,
			Severity: SeverityWarn,
			Weight:   30,
			Message:  "Never share passwords or payment details with other members",
			Keywords: []string{"send me your password", "bank details", "wire transfer", "gift card", "verify your account"},
		},
		{
			Name:     "phone_number",
			Flag:     FlagContactInfo,
			Severity: SeverityWarn,
			Weight:   10,
			Message:  "Consider not sharing phone numbers publicly",
			Pattern:  `(?:\+\d{1,3}[\s.-]?)?(?:\(\d{3}\)\s?|\b\d{3}[\s.-])\d{3}[\s.-]\d{4}\b|\b\d{3}[.-]\d{4}\b|\b\d{10,12}\b`,
		},
		{
			Name:     "email_address",
			Flag:     FlagContactInfo,
			Severity: SeverityWarn,
			Weight:   10,
			Message:  "Consider not sharing email addresses publicly",
			Pattern:  `[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`,
		},
		{
			Name:     "external_link",
			Flag:     FlagLink,
			Severity: SeverityWarn,
			Weight:   5,
			Pattern:  `\bhttps?://|\bwww\.`,
		},
		{
			Name:     "link_shortener",
			Flag:     FlagSpam,
			Severity: SeverityWarn,
			Weight:   15,
			Message:  "Shortened links hide their destination",
			Pattern:  `\b(?:bit\.ly|tinyurl\.com|goo\.gl|t\.co|ow\.ly|is\.gd)/`,
		},
		{
			Name:     "punctuation_run",
			Flag:     FlagExcessivePunctuation,
			Severity: SeverityWarn,
			Weight:   5,
			Pattern:  `[!?]{3,}`,
		},
		{
			Name:       "punctuation_density",
			Flag:       FlagExcessivePunctuation,
			Severity:   SeverityWarn,
			Weight:     10,
			Message:    "Too much punctuation makes posts hard to read",
			Expression: "length >= 10 && punct_ratio > 0.3",
		},
		{
			Name:       "shouting",
			Flag:       FlagExcessiveCaps,
			Severity:   SeverityWarn,
			Weight:     10,
			Message:    "Writing in capitals reads as shouting",
			Expression: "letters >= 10 && caps_ratio > 0.7",
		},
		{
			Name:       "repeated_characters",
			Flag:       FlagRepeatedCharacters,
			Severity:   SeverityWarn,
			Weight:     5,
			Expression: "max_run >= 6",
		},
	}
}
