package automodmodule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	bot "github.com/erikmcclure/sweetiemod/sweetiebot"
)

// EvaluationTimeout bounds the rate store and REST calls made for a single message
const EvaluationTimeout = 10 * time.Second

// AutoModModule checks every message against the spam, caps, link and banned word rules and removes offending ones
type AutoModModule struct {
	Evaluator *Evaluator
	Enforcer  *Enforcer
	Timeout   time.Duration
}

// New creates an automod module. The same module can be registered on every guild, since rate state is keyed by guild.
func New(store RateStore, actions Actions, audit AuditLog, log *slog.Logger) *AutoModModule {
	return &AutoModModule{
		Evaluator: NewEvaluator(store, log),
		Enforcer:  &Enforcer{Actions: actions, Audit: audit, Log: log},
		Timeout:   EvaluationTimeout,
	}
}

// Name of the module
func (w *AutoModModule) Name() string {
	return "AutoMod"
}

// Commands in the module
func (w *AutoModModule) Commands() []bot.Command {
	return []bot.Command{
		&autoModCommand{},
		&setCapsCommand{},
		&setSpamCommand{},
		&addBannedWordCommand{},
		&removeBannedWordCommand{},
		&bannedWordsCommand{},
		&allowLinkCommand{},
		&disallowLinkCommand{},
		&modLogCommand{},
	}
}

// Description of the module
func (w *AutoModModule) Description(info *bot.GuildInfo) string {
	return "Automatically removes messages that break one of four rules, checked in this order: sending too many messages too quickly, " +
		"messages that are mostly capital letters, links or invites that aren't on the allowlist, and banned words. Only the first rule a message breaks is applied. " +
		"The author is told why their message was removed, and spammers are timed out. Moderators can post any link, but are still subject to the other rules.\n\n" +
		"Example usage:\n```" + info.Prefix() + "setspam 5 5 10\n" + info.Prefix() + "addbannedword \"bad phrase\"\n" + info.Prefix() + "allowlink youtube.com```"
}

// OnMessageCreate discord hook
func (w *AutoModModule) OnMessageCreate(info *bot.GuildInfo, m *discordgo.Message) {
	w.process(info, m, false)
}

// OnMessageUpdate discord hook. Edits don't count towards the spam rule.
func (w *AutoModModule) OnMessageUpdate(info *bot.GuildInfo, m *discordgo.Message) {
	w.process(info, m, true)
}

// OnCommand discord hook. Commands that break a rule are removed and never run.
func (w *AutoModModule) OnCommand(info *bot.GuildInfo, m *discordgo.Message) bool {
	return w.process(info, m, false)
}

func (w *AutoModModule) process(info *bot.GuildInfo, m *discordgo.Message, edited bool) bool {
	if m.Author == nil || bot.DiscordUser(m.Author.ID) == info.Bot.SelfID() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.Timeout)
	defer cancel()

	info.ConfigLock.RLock()
	cfg := NewRuleConfig(&info.Config)
	info.ConfigLock.RUnlock()

	msg := &Message{
		ID:                        m.ID,
		AuthorID:                  m.Author.ID,
		GuildID:                   info.ID,
		ChannelID:                 m.ChannelID,
		Content:                   m.Content,
		Timestamp:                 messageTime(m, edited),
		AuthorHasBypassPermission: hasBypass(info, m),
		Edited:                    edited,
	}

	v := w.Evaluator.Evaluate(ctx, msg, &cfg)
	if v == nil {
		return false
	}
	info.Logger().Info("automod violation", "rule", v.Kind.String(), "user", v.User, "channel", v.Channel, "detail", v.Detail)
	w.Enforcer.Enforce(ctx, v, &cfg)
	return true
}

func messageTime(m *discordgo.Message, edited bool) time.Time {
	if edited && m.EditedTimestamp != nil {
		return *m.EditedTimestamp
	}
	if m.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return m.Timestamp
}

// hasBypass returns true for admins, moderators, and anyone allowed to manage messages in the channel
func hasBypass(info *bot.GuildInfo, m *discordgo.Message) bool {
	user := bot.DiscordUser(m.Author.ID)
	if info.UserIsAdmin(user) || info.UserIsMod(user) {
		return true
	}
	perms, err := info.Bot.DG.State.UserChannelPermissions(m.Author.ID, m.ChannelID)
	return err == nil && perms&discordgo.PermissionManageMessages != 0
}

func formatSet(m map[string]bool, sep string) string {
	if len(m) == 0 {
		return "(none)"
	}
	return strings.Join(bot.MapToSlice(m), sep)
}

func describeConfig(c *bot.AutoModConfig) string {
	return fmt.Sprintf("Caps ratio: %v\nSpam: %s in %s, timeout %s\nNotice shown for: %s\nBanned words: %v\nLink allowlist: %s\nInvite markers: %s",
		c.CapsRatio,
		bot.Pluralize(int64(c.SpamMessages), " message"),
		bot.TimeDiff(time.Duration(c.SpamWindow)*time.Second),
		bot.TimeDiff(time.Duration(c.SpamTimeout)*time.Minute),
		bot.TimeDiff(time.Duration(c.NoticeDuration)*time.Second),
		len(c.BannedWords),
		formatSet(c.LinkAllowlist, ", "),
		formatSet(c.InviteMarkers, ", "))
}
