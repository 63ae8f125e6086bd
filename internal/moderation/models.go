package moderation

import "strings"

// ============================================================================
// 规则类别与严重程度
// ============================================================================

// FlagKind 命中规则的类别标签
type FlagKind string

const (
	FlagProfanity            FlagKind = "profanity"             // 粗俗用语
	FlagThreat               FlagKind = "threat"                // 威胁、仇恨言论
	FlagSpam                 FlagKind = "spam"                  // 广告引流
	FlagScam                 FlagKind = "scam"                  // 诈骗话术
	FlagContactInfo          FlagKind = "contact_info"          // 电话、邮箱等联系方式泄露
	FlagLink                 FlagKind = "link"                  // 外部链接
	FlagExcessiveCaps        FlagKind = "excessive_caps"        // 大写字母过多
	FlagExcessivePunctuation FlagKind = "excessive_punctuation" // 标点过密
	FlagRepeatedCharacters   FlagKind = "repeated_characters"   // 连续重复字符
)

var knownFlags = map[FlagKind]struct{}{
	FlagProfanity:            {},
	FlagThreat:               {},
	FlagSpam:                 {},
	FlagScam:                 {},
	FlagContactInfo:          {},
	FlagLink:                 {},
	FlagExcessiveCaps:        {},
	FlagExcessivePunctuation: {},
	FlagRepeatedCharacters:   {},
}

// IsKnown 是否为已登记的类别
func (f FlagKind) IsKnown() bool {
	_, ok := knownFlags[f]
	return ok
}

// Severity 规则严重程度
type Severity string

const (
	SeverityWarn  Severity = "warn"  // 计分并给出提示
	SeverityBlock Severity = "block" // 直接拦截
)

// ============================================================================
// 评估结果
// ============================================================================

// Verdict 单段文本的审核结论，按次计算，不落库
type Verdict struct {
	RiskScore int        `json:"riskScore"`
	Flags     []FlagKind `json:"flags"`
	Warnings  []string   `json:"warnings"`
	IsBlocked bool       `json:"isBlocked"`
}

// HasFlag 判断是否命中某个类别
func (v Verdict) HasFlag(flag FlagKind) bool {
	for _, f := range v.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// ============================================================================
// 账户风险
// ============================================================================

// AccountType 账户类型
type AccountType string

const (
	AccountIndividual AccountType = "INDIVIDUAL"
	AccountCharity    AccountType = "CHARITY"
	AccountCompany    AccountType = "COMPANY"
)

// ParseAccountType 解析账户类型，大小写不敏感
func ParseAccountType(s string) (AccountType, bool) {
	switch AccountType(strings.ToUpper(strings.TrimSpace(s))) {
	case AccountIndividual:
		return AccountIndividual, true
	case AccountCharity:
		return AccountCharity, true
	case AccountCompany:
		return AccountCompany, true
	}
	return "", false
}

// AccountRiskInput 作者账户元信息
type AccountRiskInput struct {
	AccountAgeDays int         `json:"accountAgeDays"`
	IsAdmin        bool        `json:"isAdmin"`
	AccountType    AccountType `json:"accountType"`
}

// ============================================================================
// 决策结果
// ============================================================================

// BlockedReason 拦截时返回给调用方的固定原因
const BlockedReason = "Content contains prohibited material"

// DefaultReviewThreshold 默认人工复核阈值
const DefaultReviewThreshold = 40

// Decision 审核决策
type Decision struct {
	Allowed     bool       `json:"allowed"`
	Blocked     bool       `json:"blocked"`
	NeedsReview bool       `json:"needsReview"`
	RiskScore   int        `json:"riskScore"`
	Flags       []FlagKind `json:"flags"`
	Warnings    []string   `json:"warnings,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// FlagStrings 以字符串形式返回类别，便于持久化
func (d Decision) FlagStrings() []string {
	out := make([]string, 0, len(d.Flags))
	for _, f := range d.Flags {
		out = append(out, string(f))
	}
	return out
}
