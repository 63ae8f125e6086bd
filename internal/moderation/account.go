package moderation

import (
	"fmt"
	"sort"
)

// AgeTier 账户年龄分档：年龄小于 BelowDays 天时计 Score 分
type AgeTier struct {
	BelowDays int `yaml:"below_days" json:"belowDays"`
	Score     int `yaml:"score" json:"score"`
}

// AccountPolicy 账户风险策略表
type AccountPolicy struct {
	AgeTiers        []AgeTier           `yaml:"age_tiers" json:"ageTiers"`
	TypeAdjustments map[AccountType]int `yaml:"type_adjustments" json:"typeAdjustments"`
	Ceiling         int                 `yaml:"ceiling" json:"ceiling"`
}

// DefaultAccountPolicy 内置账户策略
func DefaultAccountPolicy() AccountPolicy {
	return AccountPolicy{
		AgeTiers: []AgeTier{
			{BelowDays: 1, Score: 25},
			{BelowDays: 7, Score: 15},
			{BelowDays: 30, Score: 10},
			{BelowDays: 90, Score: 5},
		},
		TypeAdjustments: map[AccountType]int{
			AccountCharity: -5,
			AccountCompany: 5,
		},
		Ceiling: 25,
	}
}

// Validate 校验策略表
func (p AccountPolicy) Validate() error {
	if p.Ceiling < 0 {
		return fmt.Errorf("账户风险上限不能为负数")
	}
	for _, t := range p.AgeTiers {
		if t.BelowDays <= 0 {
			return fmt.Errorf("年龄分档天数必须为正整数: %d", t.BelowDays)
		}
		if t.Score < 0 {
			return fmt.Errorf("年龄分档分值不能为负数: %d", t.Score)
		}
	}
	for typ := range p.TypeAdjustments {
		if _, ok := ParseAccountType(string(typ)); !ok {
			return fmt.Errorf("未知账户类型: %s", typ)
		}
	}
	return nil
}

// AccountScorer 账户风险评分器
type AccountScorer struct {
	tiers       []AgeTier
	adjustments map[AccountType]int
	ceiling     int
}

// NewAccountScorer 根据策略创建评分器
func NewAccountScorer(policy AccountPolicy) (*AccountScorer, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	tiers := append([]AgeTier(nil), policy.AgeTiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].BelowDays < tiers[j].BelowDays })

	adjustments := make(map[AccountType]int, len(policy.TypeAdjustments))
	for k, v := range policy.TypeAdjustments {
		adjustments[k] = v
	}

	return &AccountScorer{
		tiers:       tiers,
		adjustments: adjustments,
		ceiling:     policy.Ceiling,
	}, nil
}

// Score 计算账户风险分，管理员恒为 0，结果落在 [0, ceiling]
func (s *AccountScorer) Score(input AccountRiskInput) int {
	if input.IsAdmin {
		return 0
	}

	age := input.AccountAgeDays
	if age < 0 {
		age = 0
	}

	score := 0
	for _, t := range s.tiers {
		if age < t.BelowDays {
			score = t.Score
			break
		}
	}
	score += s.adjustments[input.AccountType]

	if score < 0 {
		score = 0
	}
	if score > s.ceiling {
		score = s.ceiling
	}
	return score
}
