package moderation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultReportThreshold 待处理举报达到该数量时帖子进入审核队列
const DefaultReportThreshold = 3

// Policy 审核策略：规则表、阈值与账户策略
type Policy struct {
	ReviewThreshold int           `yaml:"review_threshold" json:"reviewThreshold"`
	ReportThreshold int           `yaml:"report_threshold" json:"reportThreshold"`
	Rules           []RuleSpec    `yaml:"rules" json:"rules"`
	Account         AccountPolicy `yaml:"account" json:"account"`
}

// DefaultPolicy 内置策略
func DefaultPolicy() Policy {
	return Policy{
		ReviewThreshold: DefaultReviewThreshold,
		ReportThreshold: DefaultReportThreshold,
		Rules:           DefaultRules(),
		Account:         DefaultAccountPolicy(),
	}
}

// Validate 校验策略，规则本身在编译时校验
func (p Policy) Validate() error {
	if p.ReviewThreshold <= 0 {
		return fmt.Errorf("复核阈值必须为正整数")
	}
	if p.ReportThreshold <= 0 {
		return fmt.Errorf("举报阈值必须为正整数")
	}
	if len(p.Rules) == 0 {
		return fmt.Errorf("规则表不能为空")
	}
	return p.Account.Validate()
}

// LoadPolicy 从 YAML 文件加载策略
//
// 文件中缺省的字段沿用内置策略；rules 一旦出现则整体替换内置规则表。
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("读取审核策略文件失败: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy 解析 YAML 策略内容
func ParsePolicy(data []byte) (Policy, error) {
	policy := DefaultPolicy()
	// 先清空规则表，避免 yaml 按下标合并到内置规则上
	defaults := policy.Rules
	policy.Rules = nil

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("解析审核策略失败: %w", err)
	}
	if len(policy.Rules) == 0 {
		policy.Rules = defaults
	}

	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	if _, err := NewEvaluator(policy.Rules); err != nil {
		return Policy{}, err
	}
	return policy, nil
}
