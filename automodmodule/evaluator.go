package automodmodule

import (
	"context"
	"log/slog"
	"time"
)

// Evaluator runs rules in order and reports the first one a message breaks
type Evaluator struct {
	Rules []Rule
}

// NewEvaluator creates an evaluator with the default rule order
func NewEvaluator(store RateStore, log *slog.Logger) *Evaluator {
	return &Evaluator{Rules: DefaultRules(store, log)}
}

// Evaluate returns nil if the message breaks no rule. Later rules are not checked once one matches,
// so a message only touches rate state if it reaches the spam rule.
func (e *Evaluator) Evaluate(ctx context.Context, msg *Message, cfg *RuleConfig) *Violation {
	start := time.Now()
	defer func() {
		evaluationDuration.Observe(time.Since(start).Seconds())
	}()
	messagesEvaluated.Inc()

	for _, r := range e.Rules {
		detail, ok := r.Check(ctx, msg, cfg)
		if !ok {
			continue
		}
		violationCount.WithLabelValues(r.Kind().String()).Inc()
		return &Violation{
			Kind:    r.Kind(),
			User:    msg.AuthorID,
			Channel: msg.ChannelID,
			Guild:   msg.GuildID,
			Message: msg.ID,
			Detail:  detail,
		}
	}
	return nil
}
