package automodmodule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	bot "github.com/erikmcclure/sweetiemod/sweetiebot"
)

const maxModLogResults = 50

var errEmptyBannedWord = errors.New("Can't add an empty banned word!")
var errEmptyDomain = errors.New("You must specify a domain, like youtube.com")

// updateAutoMod applies fn to the guild's automod settings and saves them. If fn or the save fails, the settings are left unchanged.
func updateAutoMod(info *bot.GuildInfo, fn func(c *bot.AutoModConfig) error) error {
	info.ConfigLock.Lock()
	defer info.ConfigLock.Unlock()
	old := info.Config.AutoMod.Clone()
	if err := fn(&info.Config.AutoMod); err != nil {
		info.Config.AutoMod = old
		return err
	}
	if err := info.SaveConfig(); err != nil {
		info.Config.AutoMod = old
		return err
	}
	return nil
}

func normalizeEntry(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type autoModCommand struct{}

func (c *autoModCommand) Info() *bot.CommandInfo {
	return &bot.CommandInfo{
		Name:      "AutoMod",
		Usage:     "Shows the current automod settings.",
		Sensitive: true,
	}
}
func (c *autoModCommand) Process(args []string, msg *discordgo.Message, indices []int, info *bot.GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	info.ConfigLock.RLock()
	s := describeConfig(&info.Config.AutoMod)
	modchannel := info.Config.Basic.ModChannel
	info.ConfigLock.RUnlock()
	if modchannel != bot.ChannelEmpty {
		s += "\nSpam alerts go to: " + modchannel.Show(info)
	}
	return "```\n" + bot.SanitizeOutput(s) + "```", false, nil
}
func (c *autoModCommand) Usage(info *bot.GuildInfo) *bot.CommandUsage {
	return &bot.CommandUsage{
		Desc: "Displays the rule thresholds, the number of banned words, and the link allowlist.",
	}
}

type setCapsCommand struct{}

func (c *setCapsCommand) Info() *bot.CommandInfo {
	return &bot.CommandInfo{
		Name:      "SetCaps",
		Usage:     "Sets the caps ratio threshold.",
		Sensitive: true,
	}
}
func (c *setCapsCommand) Process(args []string, msg *discordgo.Message, indices []int, info *bot.GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	if len(args) < 1 {
		return "```\nYou must specify a ratio between 0 and 1, like 0.7```", false, nil
	}
	ratio, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "```\n" + bot.SanitizeOutput(args[0]) + " is not a number.```", false, nil
	}
	if err := bot.ValidateCapsRatio(ratio); err != nil {
		return bot.ReturnError(err)
	}
	if err := updateAutoMod(info, func(c *bot.AutoModConfig) error {
		c.CapsRatio = ratio
		return nil
	}); err != nil {
		return bot.ReturnError(err)
	}
	return fmt.Sprintf("```\nMessages of at least %v characters that are more than %v%% capital letters will now be removed.```", minCapsLength, ratio*100), false, nil
}
func (c *setCapsCommand) Usage(info *bot.GuildInfo) *bot.CommandUsage {
	return &bot.CommandUsage{
		Desc: "Messages whose share of capital letters is strictly greater than [ratio] will be removed. Short messages are never checked.",
		Params: []bot.CommandUsageParam{
			{Name: "ratio", Desc: "A number between 0 and 1. 0.7 means 70% of the message must be capital letters.", Optional: false},
		},
	}
}

type setSpamCommand struct{}

func (c *setSpamCommand) Info() *bot.CommandInfo {
	return &bot.CommandInfo{
		Name:      "SetSpam",
		Usage:     "Sets the spam threshold and timeout.",
		Sensitive: true,
	}
}
func (c *setSpamCommand) Process(args []string, msg *discordgo.Message, indices []int, info *bot.GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	if len(args) < 2 {
		return "```\nYou must specify both a message count and a window in seconds.```", false, nil
	}
	messages, err := strconv.Atoi(args[0])
	if err != nil {
		return "```\n" + bot.SanitizeOutput(args[0]) + " is not an integer.```", false, nil
	}
	window, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "```\n" + bot.SanitizeOutput(args[1]) + " is not an integer.```", false, nil
	}
	if err := bot.ValidateSpamLimit(messages, window); err != nil {
		return bot.ReturnError(err)
	}
	timeout := int64(-1)
	if len(args) > 2 {
		if timeout, err = strconv.ParseInt(args[2], 10, 64); err != nil {
			return "```\n" + bot.SanitizeOutput(args[2]) + " is not an integer.```", false, nil
		}
		if err := bot.ValidateSpamTimeout(timeout); err != nil {
			return bot.ReturnError(err)
		}
	}

	var current int64
	if err := updateAutoMod(info, func(c *bot.AutoModConfig) error {
		c.SpamMessages = messages
		c.SpamWindow = window
		if timeout > 0 {
			c.SpamTimeout = timeout
		}
		current = c.SpamTimeout
		return nil
	}); err != nil {
		return bot.ReturnError(err)
	}
	return fmt.Sprintf("```\nSending %s within %s will now remove the message and time the author out for %s.```",
		bot.Pluralize(int64(messages), " message"),
		bot.TimeDiff(time.Duration(window)*time.Second),
		bot.TimeDiff(time.Duration(current)*time.Minute)), false, nil
}
func (c *setSpamCommand) Usage(info *bot.GuildInfo) *bot.CommandUsage {
	return &bot.CommandUsage{
		Desc: "When a user sends [messages] messages within [window] seconds, the last one is removed and the user is timed out.",
		Params: []bot.CommandUsageParam{
			{Name: "messages", Desc: "Number of messages that triggers the rule. Must be at least 2.", Optional: false},
			{Name: "window", Desc: "Length of the window in seconds, up to an hour.", Optional: false},
			{Name: "timeout", Desc: "How many minutes to time the user out for. Keeps the current timeout if omitted.", Optional: true},
		},
	}
}

type addBannedWordCommand struct{}

func (c *addBannedWordCommand) Info() *bot.CommandInfo {
	return &bot.CommandInfo{
		Name:      "AddBannedWord",
		Usage:     "Adds words or phrases to the banned word list.",
		Sensitive: true,
	}
}
func (c *addBannedWordCommand) Process(args []string, msg *discordgo.Message, indices []int, info *bot.GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	if len(args) < 1 {
		return "```\nNo words given. Put phrases with spaces in quotes.```", false, nil
	}
	total := 0
	err := updateAutoMod(info, func(c *bot.AutoModConfig) error {
		if c.BannedWords == nil {
			c.BannedWords = make(map[string]bool)
		}
		for _, v := range args {
			v = normalizeEntry(v)
			if len(v) == 0 {
				return errEmptyBannedWord
			}
			c.BannedWords[v] = true
		}
		total = len(c.BannedWords)
		return nil
	})
	if err != nil {
		return bot.ReturnError(err)
	}
	return fmt.Sprintf("```\nAdded %s. There are now %s.```", bot.Pluralize(int64(len(args)), " word"), bot.Pluralize(int64(total), " banned word")), false, nil
}
func (c *addBannedWordCommand) Usage(info *bot.GuildInfo) *bot.CommandUsage {
	return &bot.CommandUsage{
		Desc: "Adds each argument to the banned word list. Matching ignores case and also finds the word inside other words.",
		Params: []bot.CommandUsageParam{
			{Name: "words", Desc: "Words or quoted phrases to ban.", Optional: false, Variadic: true},
		},
	}
}

type removeBannedWordCommand struct{}

func (c *removeBannedWordCommand) Info() *bot.CommandInfo {
	return &bot.CommandInfo{
		Name:      "RemoveBannedWord",
		Usage:     "Removes words or phrases from the banned word list.",
		Sensitive: true,
	}
}
func (c *removeBannedWordCommand) Process(args []string, msg *discordgo.Message, indices []int, info *bot.GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	if len(args) < 1 {
		return "```\nCan't remove an empty string!```", false, nil
	}
	missing := []string{}
	err := updateAutoMod(info, func(c *bot.AutoModConfig) error {
		for _, v := range args {
			v = normalizeEntry(v)
			if _, ok := c.BannedWords[v]; !ok {
				missing = append(missing, v)
				continue
			}
			delete(c.BannedWords, v)
		}
		if len(missing) == len(args) {
			return fmt.Errorf("Could not find %s!", strings.Join(missing, ", "))
		}
		return nil
	})
	if err != nil {
		return bot.ReturnError(err)
	}
	s := "Removed " + bot.Pluralize(int64(len(args)-len(missing)), " word") + "."
	if len(missing) > 0 {
		s += " Could not find " + strings.Join(missing, ", ") + "."
	}
	return "```\n" + bot.SanitizeOutput(s) + "```", false, nil
}
func (c *removeBannedWordCommand) Usage(info *bot.GuildInfo) *bot.CommandUsage {
	return &bot.CommandUsage{
		Desc: "Removes each argument from the banned word list.",
		Params: []bot.CommandUsageParam{
			{Name: "words", Desc: "Words or quoted phrases to remove.", Optional: false, Variadic: true},
		},
	}
}

type bannedWordsCommand struct{}

func (c *bannedWordsCommand) Info() *bot.CommandInfo {
	return &bot.CommandInfo{
		Name:      "BannedWords",
		Usage:     "Searches the banned word list.",
		Sensitive: true,
	}
}
func (c *bannedWordsCommand) Process(args []string, msg *discordgo.Message, indices []int, info *bot.GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	info.ConfigLock.RLock()
	words := bot.MapToSlice(info.Config.AutoMod.BannedWords)
	info.ConfigLock.RUnlock()

	results := words
	if len(args) > 0 {
		arg := normalizeEntry(msg.Content[indices[0]:])
		results = []string{}
		for _, v := range words {
			if strings.Contains(v, arg) {
				results = append(results, v)
			}
		}
	}

	if len(results) > 0 {
		return "```\nThe following banned words match your query:\n" + bot.SanitizeOutput(strings.Join(results, "\n")) + "```", len(results) > 6, nil
	}
	if len(words) == 0 {
		return "```\nThere are no banned words.```", false, nil
	}
	return "```\nNo results found.```", false, nil
}
func (c *bannedWordsCommand) Usage(info *bot.GuildInfo) *bot.CommandUsage {
	return &bot.CommandUsage{
		Desc: "Lists every banned word that contains [search], or the whole list if no search is given. Long results are sent in a private message.",
		Params: []bot.CommandUsageParam{
			{Name: "search", Desc: "Arbitrary string to search for.", Optional: true},
		},
	}
}

type allowLinkCommand struct{}

func (c *allowLinkCommand) Info() *bot.CommandInfo {
	return &bot.CommandInfo{
		Name:      "AllowLink",
		Usage:     "Adds a domain to the link allowlist.",
		Sensitive: true,
	}
}
func (c *allowLinkCommand) Process(args []string, msg *discordgo.Message, indices []int, info *bot.GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	if len(args) < 1 {
		return bot.ReturnError(errEmptyDomain)
	}
	domain := normalizeEntry(args[0])
	err := updateAutoMod(info, func(c *bot.AutoModConfig) error {
		if len(domain) == 0 {
			return errEmptyDomain
		}
		if c.LinkAllowlist == nil {
			c.LinkAllowlist = make(map[string]bool)
		}
		c.LinkAllowlist[domain] = true
		return nil
	})
	if err != nil {
		return bot.ReturnError(err)
	}
	return "```\nLinks containing " + bot.SanitizeOutput(domain) + " are now allowed.```", false, nil
}
func (c *allowLinkCommand) Usage(info *bot.GuildInfo) *bot.CommandUsage {
	return &bot.CommandUsage{
		Desc: "Any link or invite containing [domain] will no longer be removed.",
		Params: []bot.CommandUsageParam{
			{Name: "domain", Desc: "A domain or any other substring of allowed links, like youtube.com", Optional: false},
		},
	}
}

type disallowLinkCommand struct{}

func (c *disallowLinkCommand) Info() *bot.CommandInfo {
	return &bot.CommandInfo{
		Name:      "DisallowLink",
		Usage:     "Removes a domain from the link allowlist.",
		Sensitive: true,
	}
}
func (c *disallowLinkCommand) Process(args []string, msg *discordgo.Message, indices []int, info *bot.GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	if len(args) < 1 {
		return bot.ReturnError(errEmptyDomain)
	}
	domain := normalizeEntry(args[0])
	err := updateAutoMod(info, func(c *bot.AutoModConfig) error {
		if _, ok := c.LinkAllowlist[domain]; !ok {
			return fmt.Errorf("%s is not on the allowlist.", domain)
		}
		delete(c.LinkAllowlist, domain)
		return nil
	})
	if err != nil {
		return bot.ReturnError(err)
	}
	return "```\nLinks containing " + bot.SanitizeOutput(domain) + " will now be removed.```", false, nil
}
func (c *disallowLinkCommand) Usage(info *bot.GuildInfo) *bot.CommandUsage {
	return &bot.CommandUsage{
		Desc: "Removes [domain] from the link allowlist.",
		Params: []bot.CommandUsageParam{
			{Name: "domain", Desc: "An entry on the allowlist.", Optional: false},
		},
	}
}

type modLogCommand struct{}

func (c *modLogCommand) Info() *bot.CommandInfo {
	return &bot.CommandInfo{
		Name:      "ModLog",
		Usage:     "Shows recent automod violations.",
		Sensitive: true,
	}
}
func (c *modLogCommand) Process(args []string, msg *discordgo.Message, indices []int, info *bot.GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	db := info.Bot.DB
	if !db.CheckStatus() {
		return "```\nThe violation log is unavailable because the database isn't connected.```", false, nil
	}

	user := bot.UserEmpty
	count := 10
	if len(args) > 0 {
		// A small number on its own is a result count rather than a user ID
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 && n <= maxModLogResults && len(args) == 1 {
			count = n
		} else {
			u, err := bot.ParseUser(args[0], info)
			if err != nil {
				return bot.ReturnError(err)
			}
			user = u
		}
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return "```\n" + bot.SanitizeOutput(args[1]) + " is not a positive integer.```", false, nil
		}
		count = n
	}
	if count > maxModLogResults {
		count = maxModLogResults
	}

	ctx, cancel := context.WithTimeout(context.Background(), EvaluationTimeout)
	defer cancel()
	records, err := db.GetViolations(ctx, info.ID, user.String(), count)
	if err != nil {
		return bot.ReturnError(err)
	}
	if len(records) == 0 {
		return "```\nNo violations found.```", false, nil
	}

	lines := make([]string, 0, len(records)+1)
	if user != bot.UserEmpty {
		n, err := db.CountViolations(ctx, info.ID, user.String(), time.Now().UTC().Add(-24*time.Hour))
		if err == nil {
			lines = append(lines, info.GetUserName(user)+" has "+bot.Pluralize(int64(n), " violation")+" in the last 24 hours.")
		}
	}
	for _, v := range records {
		line := fmt.Sprintf("[%s] %s broke the %s rule in %s", info.ApplyTimezone(v.Timestamp).Format("Jan 02 15:04"), info.GetUserName(bot.DiscordUser(v.User)), v.Rule, bot.DiscordChannel(v.Channel).Show(info))
		if len(v.Detail) > 0 {
			line += ": " + v.Detail
		}
		lines = append(lines, line)
	}
	return "```\n" + bot.SanitizeOutput(strings.Join(lines, "\n")) + "```", len(records) > 6, nil
}
func (c *modLogCommand) Usage(info *bot.GuildInfo) *bot.CommandUsage {
	return &bot.CommandUsage{
		Desc: "Lists the most recent violations recorded by the automod, newest first. Long results are sent in a private message.",
		Params: []bot.CommandUsageParam{
			{Name: "user", Desc: "Only show violations by this user.", Optional: true},
			{Name: "count", Desc: "Maximum number of violations to show, up to 50. Defaults to 10.", Optional: true},
		},
	}
}
