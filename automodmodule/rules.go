package automodmodule

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	bot "github.com/erikmcclure/sweetiemod/sweetiebot"
	"golang.org/x/text/cases"
)

// RuleKind identifies which rule a message violated
type RuleKind int

const (
	RuleSpam RuleKind = iota
	RuleCaps
	RuleLink
	RuleBannedWord
)

func (k RuleKind) String() string {
	switch k {
	case RuleSpam:
		return "spam"
	case RuleCaps:
		return "caps"
	case RuleLink:
		return "link"
	case RuleBannedWord:
		return "bannedword"
	}
	return "unknown"
}

// Describe returns the text shown to the user when their message is removed
func (k RuleKind) Describe() string {
	switch k {
	case RuleSpam:
		return "sending messages too quickly"
	case RuleCaps:
		return "excessive capital letters"
	case RuleLink:
		return "posting a link that isn't allowed here"
	case RuleBannedWord:
		return "using a banned word"
	}
	return "breaking a rule"
}

// minCapsLength is the shortest message, in runes, the caps rule looks at
const minCapsLength = 8

// Message is the platform-independent view of a chat message that the rules evaluate
type Message struct {
	ID                        string
	AuthorID                  string
	GuildID                   string
	ChannelID                 string
	Content                   string
	Timestamp                 time.Time
	AuthorHasBypassPermission bool
	Edited                    bool
}

// Violation is the first rule a message broke
type Violation struct {
	Kind    RuleKind
	User    string
	Channel string
	Guild   string
	Message string
	Detail  string // matched word or link, kept for the audit log
}

// RuleConfig is an immutable snapshot of a guild's automod settings
type RuleConfig struct {
	CapsRatio      float64
	SpamMessages   int
	SpamWindow     time.Duration
	SpamTimeout    time.Duration
	NoticeDuration time.Duration
	BannedWords    []string // case folded
	LinkAllowlist  []string // lowercase
	InviteMarkers  []string // lowercase
	ModChannel     string
}

// NewRuleConfig copies the guild config into a snapshot. The caller must hold the guild's ConfigLock.
func NewRuleConfig(config *bot.BotConfig) RuleConfig {
	c := &config.AutoMod
	fold := cases.Fold()
	words := make([]string, 0, len(c.BannedWords))
	for _, w := range bot.MapToSlice(c.BannedWords) {
		if w = fold.String(w); len(w) > 0 {
			words = append(words, w)
		}
	}
	return RuleConfig{
		CapsRatio:      c.CapsRatio,
		SpamMessages:   c.SpamMessages,
		SpamWindow:     time.Duration(c.SpamWindow) * time.Second,
		SpamTimeout:    time.Duration(c.SpamTimeout) * time.Minute,
		NoticeDuration: time.Duration(c.NoticeDuration) * time.Second,
		BannedWords:    words,
		LinkAllowlist:  lowerSet(c.LinkAllowlist),
		InviteMarkers:  lowerSet(c.InviteMarkers),
		ModChannel:     config.Basic.ModChannel.String(),
	}
}

func lowerSet(m map[string]bool) []string {
	s := make([]string, 0, len(m))
	for k := range m {
		if k = strings.ToLower(k); len(k) > 0 {
			s = append(s, k)
		}
	}
	sort.Strings(s)
	return s
}

// Rule is a single automod check. Check returns a detail string for the audit log when the message matches.
type Rule interface {
	Kind() RuleKind
	Check(ctx context.Context, msg *Message, cfg *RuleConfig) (string, bool)
}

// SpamRule counts messages per author in a fixed window and triggers on the message that reaches the threshold
type SpamRule struct {
	Store RateStore
	Log   *slog.Logger
}

func (r *SpamRule) Kind() RuleKind { return RuleSpam }

func (r *SpamRule) Check(ctx context.Context, msg *Message, cfg *RuleConfig) (string, bool) {
	if msg.Edited || cfg.SpamMessages < 1 {
		return "", false
	}
	count, err := r.Store.Hit(ctx, msg.GuildID, msg.AuthorID, msg.Timestamp, cfg.SpamWindow)
	if err != nil {
		rateStoreErrors.Inc()
		r.Log.Warn("rate store failed, skipping spam check", "guild", msg.GuildID, "user", msg.AuthorID, "err", err)
		return "", false
	}
	if count < cfg.SpamMessages {
		return "", false
	}
	if err := r.Store.Reset(ctx, msg.GuildID, msg.AuthorID); err != nil {
		r.Log.Warn("failed to reset rate window", "guild", msg.GuildID, "user", msg.AuthorID, "err", err)
	}
	return bot.Pluralize(int64(count), " message") + " in " + cfg.SpamWindow.String(), true
}

// CapsRule triggers when the share of uppercase letters in a long enough message exceeds the threshold
type CapsRule struct{}

func (r *CapsRule) Kind() RuleKind { return RuleCaps }

func (r *CapsRule) Check(ctx context.Context, msg *Message, cfg *RuleConfig) (string, bool) {
	total := utf8.RuneCountInString(msg.Content)
	if total < minCapsLength {
		return "", false
	}
	upper := 0
	for _, c := range msg.Content {
		if unicode.IsUpper(c) {
			upper++
		}
	}
	return "", float64(upper)/float64(total) > cfg.CapsRatio
}

// LinkRule triggers on any link or invite that doesn't contain an allowlisted substring. Moderators are exempt.
type LinkRule struct{}

func (r *LinkRule) Kind() RuleKind { return RuleLink }

func (r *LinkRule) Check(ctx context.Context, msg *Message, cfg *RuleConfig) (string, bool) {
	if msg.AuthorHasBypassPermission {
		return "", false
	}
	for _, token := range strings.Fields(msg.Content) {
		token = strings.ToLower(token)
		if isLink(token, cfg.InviteMarkers) && !containsAny(token, cfg.LinkAllowlist) {
			return token, true
		}
	}
	return "", false
}

func isLink(token string, markers []string) bool {
	return strings.Contains(token, "http://") || strings.Contains(token, "https://") || containsAny(token, markers)
}

func containsAny(s string, substrings []string) bool {
	for _, v := range substrings {
		if strings.Contains(s, v) {
			return true
		}
	}
	return false
}

// BannedWordRule triggers when the message contains any banned word, ignoring case
type BannedWordRule struct{}

func (r *BannedWordRule) Kind() RuleKind { return RuleBannedWord }

func (r *BannedWordRule) Check(ctx context.Context, msg *Message, cfg *RuleConfig) (string, bool) {
	if len(cfg.BannedWords) == 0 {
		return "", false
	}
	content := cases.Fold().String(msg.Content)
	for _, w := range cfg.BannedWords {
		if strings.Contains(content, w) {
			return w, true
		}
	}
	return "", false
}

// DefaultRules returns the rules in priority order: spam, caps, link, banned word
func DefaultRules(store RateStore, log *slog.Logger) []Rule {
	return []Rule{
		&SpamRule{Store: store, Log: log},
		&CapsRule{},
		&LinkRule{},
		&BannedWordRule{},
	}
}
