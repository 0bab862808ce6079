package automodmodule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	bot "github.com/erikmcclure/sweetiemod/sweetiebot"
	"github.com/lmittmann/tint"
)

// Actions are the platform calls the enforcer makes. Each call may fail independently.
type Actions interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	TimeoutUser(ctx context.Context, guildID, userID string, d time.Duration) error
	// SendTransientNotice posts text to a channel and removes it again after display
	SendTransientNotice(ctx context.Context, channelID, text string, display time.Duration) error
	SendMessage(ctx context.Context, channelID, text string) error
}

// AuditLog persists violations. CheckStatus reports whether the log can currently be written to.
type AuditLog interface {
	CheckStatus() bool
	AddViolation(ctx context.Context, v *bot.ViolationRecord) error
}

// Enforcer applies the penalty for a violation
type Enforcer struct {
	Actions Actions
	Audit   AuditLog
	Log     *slog.Logger
}

// Enforce deletes the offending message, tells the author why, and times them out for spam.
// Every step is attempted even if an earlier one failed.
func (e *Enforcer) Enforce(ctx context.Context, v *Violation, cfg *RuleConfig) {
	if err := e.Actions.DeleteMessage(ctx, v.Channel, v.Message); err != nil {
		e.failed("delete", v, err)
	}

	notice := fmt.Sprintf("%s, your message was removed for %s.", bot.DiscordUser(v.User).Display(), v.Kind.Describe())
	if err := e.Actions.SendTransientNotice(ctx, v.Channel, notice, cfg.NoticeDuration); err != nil {
		e.failed("notice", v, err)
	}

	if v.Kind == RuleSpam {
		if err := e.Actions.TimeoutUser(ctx, v.Guild, v.User, cfg.SpamTimeout); err != nil {
			e.failed("timeout", v, err)
		} else if len(cfg.ModChannel) > 0 {
			alert := fmt.Sprintf("Alert: %s was timed out for %s for spamming in %s.", bot.DiscordUser(v.User).Display(), bot.TimeDiff(cfg.SpamTimeout), bot.DiscordChannel(v.Channel).Display())
			if err := e.Actions.SendMessage(ctx, cfg.ModChannel, alert); err != nil {
				e.failed("alert", v, err)
			}
		}
	}

	if e.Audit != nil && e.Audit.CheckStatus() {
		record := &bot.ViolationRecord{
			Guild:   v.Guild,
			Channel: v.Channel,
			User:    v.User,
			Message: v.Message,
			Rule:    v.Kind.String(),
			Detail:  v.Detail,
		}
		if err := e.Audit.AddViolation(ctx, record); err != nil {
			e.failed("audit", v, err)
		}
	}
}

func (e *Enforcer) failed(action string, v *Violation, err error) {
	actionFailures.WithLabelValues(action).Inc()
	e.Log.Warn("automod action failed", "action", action, "rule", v.Kind.String(), "guild", v.Guild, "user", v.User, "message", v.Message, tint.Err(err))
}
