package moderation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline 审核决策流水线：文本风险 + 账户风险
type Pipeline struct {
	evaluator       *Evaluator
	scorer          *AccountScorer
	reviewThreshold int
	tracer          trace.Tracer
}

// NewPipeline 根据策略构建流水线
func NewPipeline(policy Policy) (*Pipeline, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	evaluator, err := NewEvaluator(policy.Rules)
	if err != nil {
		return nil, err
	}
	scorer, err := NewAccountScorer(policy.Account)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		evaluator:       evaluator,
		scorer:          scorer,
		reviewThreshold: policy.ReviewThreshold,
		tracer:          otel.Tracer("communityhub/internal/moderation"),
	}, nil
}

// ReviewThreshold 当前复核阈值
func (p *Pipeline) ReviewThreshold() int {
	return p.reviewThreshold
}

// Evaluator 返回内容评估器
func (p *Pipeline) Evaluator() *Evaluator {
	return p.evaluator
}

// Decide 对一次提交给出审核决策，不产生任何副作用
func (p *Pipeline) Decide(text string, account AccountRiskInput) Decision {
	verdict := p.evaluator.Evaluate(text)
	total := verdict.RiskScore + p.scorer.Score(account)

	if verdict.IsBlocked {
		return Decision{
			Allowed:   false,
			Blocked:   true,
			RiskScore: total,
			Flags:     verdict.Flags,
			Reason:    BlockedReason,
		}
	}

	return Decision{
		Allowed:     true,
		Blocked:     false,
		NeedsReview: total >= p.reviewThreshold,
		RiskScore:   total,
		Flags:       verdict.Flags,
		Warnings:    verdict.Warnings,
	}
}

// DecideContext 与 Decide 相同，额外记录追踪 span
func (p *Pipeline) DecideContext(ctx context.Context, text string, account AccountRiskInput) Decision {
	_, span := p.tracer.Start(ctx, "moderation.Decide")
	defer span.End()

	d := p.Decide(text, account)
	span.SetAttributes(
		attribute.Int("moderation.risk_score", d.RiskScore),
		attribute.Bool("moderation.blocked", d.Blocked),
		attribute.Bool("moderation.needs_review", d.NeedsReview),
		attribute.StringSlice("moderation.flags", d.FlagStrings()),
	)
	return d
}
