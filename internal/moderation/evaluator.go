package moderation

import "fmt"

// Evaluator 内容风险评估器
//
// 规则在构造时一次性编译，之后只读，可在多个 goroutine 中并发调用 Evaluate。
type Evaluator struct {
	rules []*compiledRule
}

// NewEvaluator 根据规则表创建评估器
func NewEvaluator(specs []RuleSpec) (*Evaluator, error) {
	seen := make(map[string]struct{}, len(specs))
	rules := make([]*compiledRule, 0, len(specs))
	for _, spec := range specs {
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("规则名称重复: %s", spec.Name)
		}
		seen[spec.Name] = struct{}{}

		rule, err := compileRule(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return &Evaluator{rules: rules}, nil
}

// Evaluate 对文本运行全部规则
//
// 所有命中规则的权重累加为风险分；类别去重并保持首次命中顺序；
// warn 级别且带提示语的规则依次追加提示；任一 block 规则命中即标记拦截。
func (e *Evaluator) Evaluate(text string) Verdict {
	verdict := Verdict{
		Flags:    []FlagKind{},
		Warnings: []string{},
	}

	features := extractFeatures(text)
	seen := make(map[FlagKind]struct{})

	for _, rule := range e.rules {
		if !rule.matches(text, features) {
			continue
		}

		verdict.RiskScore += rule.spec.Weight
		if _, ok := seen[rule.spec.Flag]; !ok {
			seen[rule.spec.Flag] = struct{}{}
			verdict.Flags = append(verdict.Flags, rule.spec.Flag)
		}

		switch rule.spec.Severity {
		case SeverityBlock:
			verdict.IsBlocked = true
		case SeverityWarn:
			if rule.spec.Message != "" {
				verdict.Warnings = append(verdict.Warnings, rule.spec.Message)
			}
		}
	}

	return verdict
}

// RuleNames 返回规则名称，顺序与评估顺序一致
func (e *Evaluator) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.spec.Name
	}
	return names
}
