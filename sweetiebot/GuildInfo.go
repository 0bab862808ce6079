package sweetiebot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"4d63.com/tz"
	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// GuildInfo Stores state information about a guild
type GuildInfo struct {
	ID           string // Cache the ID because it doesn't change
	Name         string // Cache the name to reduce locking
	OwnerID      DiscordUser
	lastlogerr   int64
	commandlimit *SaturationLimit
	logmirror    *rate.Limiter
	ConfigLock   sync.RWMutex
	Config       BotConfig
	hooks        moduleHooks
	Modules      []Module
	commands     map[CommandID]Command
	commandmap   map[CommandID]ModuleID // Exists entirely so the help command can match commands to their parent module
	Bot          *SweetieBot
	log          *slog.Logger
}

var errOwnerExclusive = errors.New("Only the owner of the bot can run this command!")
var errNoPermissions = errors.New("You don't have permission to run this command!")
var errIgnored = errors.New("a module is ignoring this command")
var errDisabled = errors.New("this command is disabled")
var errInvalidChannel = errors.New("Attempted to send message to channel on a different server.")
var errConfigFileTooLarge = errors.New("Error saving config file: Config file is too large!")

// NewGuildInfo spawns a new GuildInfo object with a default configuration
func NewGuildInfo(sb *SweetieBot, g *discordgo.Guild) *GuildInfo {
	info := &GuildInfo{
		ID:           g.ID,
		Name:         g.Name,
		OwnerID:      DiscordUser(g.OwnerID),
		commandlimit: NewSaturationLimit(3),
		logmirror:    rate.NewLimiter(rate.Every(2*time.Second), 5),
		commands:     make(map[CommandID]Command),
		commandmap:   make(map[CommandID]ModuleID),
		Bot:          sb,
		Config:       *DefaultConfig(),
		log:          sb.Logger.With("guild", g.ID),
	}
	info.Config.AutoMod = sb.AutoModDefaults.Clone()
	return info
}

// Logger returns the structured logger for this guild
func (info *GuildInfo) Logger() *slog.Logger {
	return info.log
}

// AddCommand adds a command to the guild
func (info *GuildInfo) AddCommand(c Command, m Module) {
	name := CommandID(strings.ToLower(c.Info().Name))
	info.commands[name] = c
	info.commandmap[name] = ModuleID(strings.ToLower(m.Name()))
}

// GetCommand looks up a command by name, ignoring case
func (info *GuildInfo) GetCommand(name string) (Command, bool) {
	c, ok := info.commands[CommandID(strings.ToLower(name))]
	return c, ok
}

func (info *GuildInfo) configPath() string {
	return filepath.Join(info.Bot.ConfigDir, info.ID+".json")
}

// SaveConfig saves the config file to disk. The caller must hold ConfigLock.
func (info *GuildInfo) SaveConfig() error {
	data, err := json.Marshal(info.Config)
	if err != nil {
		info.Log("Error writing json: ", err.Error())
		return err
	}
	if len(data) > info.Bot.MaxConfigSize {
		info.Log("Error saving config file: Config file is too large! Config files cannot exceed " + strconv.Itoa(info.Bot.MaxConfigSize) + " bytes.")
		return errConfigFileTooLarge
	}
	if err = os.WriteFile(info.configPath(), data, 0664); err != nil {
		info.Log("Error saving config file: ", err.Error())
	}
	return err
}

// LoadConfig reads this guild's config file if it exists and migrates it to the current version.
// A guild without a config file gets the defaults, with sensitive commands restricted to the mod role.
func (info *GuildInfo) LoadConfig() error {
	info.ConfigLock.Lock()
	defer info.ConfigLock.Unlock()
	data, err := os.ReadFile(info.configPath())
	if errors.Is(err, os.ErrNotExist) {
		info.Config = *DefaultConfig()
		info.Config.AutoMod = info.Bot.AutoModDefaults.Clone()
		return info.SaveConfig()
	}
	if err != nil {
		return err
	}
	if len(data) > info.Bot.MaxConfigSize {
		return errConfigFileTooLarge
	}
	return info.MigrateSettings(data)
}

// SendEmbed sends an embed message to the channel, splitting it into multiple messages if necessary
func (info *GuildInfo) SendEmbed(channelID DiscordChannel, embed *discordgo.MessageEmbed) error {
	if !info.ownsChannel(channelID) {
		return errInvalidChannel
	}
	fields := embed.Fields
	for len(fields) > 25 {
		embed.Fields = fields[:25]
		fields = fields[25:]
		if _, err := info.Bot.DG.ChannelMessageSendEmbed(channelID.String(), embed); err != nil {
			return err
		}
	}
	embed.Fields = fields
	_, err := info.Bot.DG.ChannelMessageSendEmbed(channelID.String(), embed)
	return err
}

// ownsChannel returns false only if the state knows the channel belongs to a different guild or can't hold messages
func (info *GuildInfo) ownsChannel(channelID DiscordChannel) bool {
	ch, err := info.Bot.DG.State.Channel(channelID.String())
	if err != nil {
		return true
	}
	if ch.Type == discordgo.ChannelTypeDM || ch.Type == discordgo.ChannelTypeGroupDM {
		return true
	}
	return ch.GuildID == info.ID && ch.Type != discordgo.ChannelTypeGuildVoice && ch.Type != discordgo.ChannelTypeGuildCategory
}

// SendMessage sends a message to the given channel, splitting it into multiple messages if necessary
func (info *GuildInfo) SendMessage(channelID DiscordChannel, message string) error {
	if !info.ownsChannel(channelID) {
		return errInvalidChannel
	}
	var err error
	send := func(s string) {
		if _, e := info.Bot.DG.ChannelMessageSend(channelID.String(), s); e != nil {
			info.log.Warn("failed to send message", "channel", channelID, "err", e)
			err = e
		}
	}

	for len(message) > 1999 { // discord has a 2000 character limit
		if message[0:3] == "```" && message[len(message)-3:] == "```" {
			index := strings.LastIndex(message[:1995], "\n")
			if index < 10 { // Ensure we process at least 10 characters to prevent an infinite loop
				index = 1995
			}
			send(message[:index] + "```")
			message = "```\n" + message[index:]
		} else {
			index := strings.LastIndex(message[:1999], "\n")
			if index < 10 {
				index = 1999
			}
			send(message[:index])
			message = message[index:]
		}
	}
	send(message)
	return err
}

// ProcessModule returns true if a module should process events on this channel
func (info *GuildInfo) ProcessModule(channelID DiscordChannel, m Module) bool {
	info.ConfigLock.RLock()
	defer info.ConfigLock.RUnlock()
	id := ModuleID(strings.ToLower(m.Name()))
	if _, disabled := info.Config.Modules.Disabled[id]; disabled {
		return false
	}
	if channelID == ChannelEmpty {
		return true
	}

	collection := info.Config.Modules.Channels[id]
	if len(collection) > 0 {
		_, reverse := collection[ChannelExclusion]
		_, ok := collection[channelID]
		return ok != reverse
	}
	return true
}

// Log the given arguments to the structured logger and mirror them to the guild's log channel.
// Mirrored lines are rate limited; anything over the limit only reaches the logger.
func (info *GuildInfo) Log(args ...interface{}) {
	s := fmt.Sprint(args...)
	info.log.Info(s)
	if info.Config.Log.Channel != ChannelEmpty && info.Bot.DG != nil && info.logmirror.Allow() {
		info.SendMessage(info.Config.Log.Channel, "```\n"+SanitizeOutput(s)+"```")
	}
}

// LogError logs an error only if it exists
func (info *GuildInfo) LogError(msg string, err error) {
	if err != nil {
		info.log.Error(msg, "err", err)
		info.Log(msg, err.Error())
	}
}

// SendError prints an error message with a saturation limit
func (info *GuildInfo) SendError(channelID DiscordChannel, message string, t int64) {
	info.ConfigLock.RLock()
	cooldown := info.Config.Log.Cooldown
	info.ConfigLock.RUnlock()
	if RateLimit(&info.lastlogerr, cooldown, t) { // Don't print more than one error message every n seconds.
		info.SendMessage(channelID, "```\n"+message+"```")
	}
}

// UserHasRole returns true if the specified user ID has the given role ID (both in strings)
func (info *GuildInfo) UserHasRole(userID DiscordUser, role DiscordRole) bool {
	if m, err := info.Bot.DG.GetMember(userID, info.ID); err == nil {
		return MemberHasRole(m, role)
	}
	return false
}

// UserIsAdmin returns true if the user is an admin or the owner of the bot. Always prefers returning false if any kind of error happens.
func (info *GuildInfo) UserIsAdmin(userID DiscordUser) bool {
	if userID == info.Bot.Owner || userID == info.OwnerID {
		return true
	}
	perms, err := info.Bot.DG.UserPermissions(userID, info.ID)
	return err == nil && ((perms & discordgo.PermissionAdministrator) != 0)
}

// UserIsMod returns true if the user is a mod
func (info *GuildInfo) UserIsMod(userID DiscordUser) bool {
	info.ConfigLock.RLock()
	modrole := info.Config.Basic.ModRole
	info.ConfigLock.RUnlock()
	return modrole != RoleEmpty && info.UserHasRole(userID, modrole)
}

// UserCanUseCommand returns nil if the user can use the command, or an error explaining why they can't.
// The boolean marks whether or not they bypass restrictions. Note that even moderators cannot use restricted commands, only the owner of the bot can.
func (info *GuildInfo) UserCanUseCommand(userID DiscordUser, command Command, ignore bool) (bypass bool, err error) {
	if info.Bot.Owner == userID {
		bypass = true
		return
	}
	dat := command.Info()
	if dat.Restricted {
		err = errOwnerExclusive
		return
	}
	isAdmin := info.UserIsAdmin(userID)
	isSelf := userID == info.Bot.SelfID()
	bypass = isAdmin || isSelf
	if isAdmin { // Admins can run disabled commands
		return
	}
	name := CommandID(strings.ToLower(dat.Name))

	info.ConfigLock.RLock()
	_, disabled := info.Config.Modules.CommandDisabled[name]
	roles, restricted := info.Config.Modules.CommandRoles[name]
	roles = cloneRoles(roles)
	info.ConfigLock.RUnlock()

	if disabled {
		err = errDisabled
		return
	}
	if isSelf { // The bot can always run any command that isn't disabled or restricted
		return
	}
	isMod := info.UserIsMod(userID)
	if ignore && !isMod {
		err = errIgnored
		return
	}
	if !restricted {
		if dat.Sensitive && !isMod {
			err = errNoPermissions
		}
		return
	}
	if info.Bot.DG.UserHasAnyRole(userID, info.ID, roles) {
		return
	}
	err = errors.New("You don't have permission to run this command! Allowed Roles: " + info.GetRoles(name))
	return
}

func cloneRoles(m map[DiscordRole]bool) map[DiscordRole]bool {
	if m == nil {
		return nil
	}
	n := make(map[DiscordRole]bool, len(m))
	for k, v := range m {
		n[k] = v
	}
	return n
}

// GetRoles constructs a string describing the allowed roles for a command
func (info *GuildInfo) GetRoles(command CommandID) string {
	info.ConfigLock.RLock()
	m := cloneRoles(info.Config.Modules.CommandRoles[command])
	info.ConfigLock.RUnlock()
	if len(m) == 0 {
		return ""
	}

	_, reverse := m[RoleExclusion]
	s := make([]string, 0, len(m))
	for k := range m {
		if k != RoleExclusion {
			s = append(s, k.Show(info))
		}
	}

	sort.Strings(s)

	if reverse {
		return "Any role except " + strings.Join(s, ", ")
	}
	return strings.Join(s, ", ")
}

// FormatUsage constructs a help string for the given command based on it's usage
func (info *GuildInfo) FormatUsage(c Command, usage *CommandUsage) *discordgo.MessageEmbed {
	name := CommandID(strings.ToLower(c.Info().Name))
	r := info.GetRoles(name)
	fields := make([]*discordgo.MessageEmbedField, 0, len(usage.Params))
	use := "> " + info.Prefix() + string(name)
	for _, v := range usage.Params {
		opt := ""
		if v.Optional {
			opt = " [OPTIONAL]"
			use += fmt.Sprintf(" [%s]", v.Name)
		} else {
			use += fmt.Sprintf(" {%s}", v.Name)
		}
		if v.Variadic {
			opt = " (...) " + opt
			use += "..."
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "**" + v.Name + "**" + opt, Value: v.Desc, Inline: false})
	}

	embed := &discordgo.MessageEmbed{
		Type: "rich",
		Author: &discordgo.MessageEmbedAuthor{
			Name: c.Info().Name + " Command",
		},
		Color:       0xaaaaaa,
		Description: fmt.Sprintf("```\n%s```\n%s", use, usage.Desc),
		Fields:      fields,
	}

	if len(r) > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Only usable by: " + r}
	} else if c.Info().Sensitive {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Only usable by moderators"}
	}
	return embed
}

// Prefix returns the command prefix for this guild
func (info *GuildInfo) Prefix() string {
	info.ConfigLock.RLock()
	defer info.ConfigLock.RUnlock()
	return info.Config.Basic.CommandPrefix
}

// GetTimezone gets the time.Location configured for this guild, otherwise returns time.UTC
func (info *GuildInfo) GetTimezone() *time.Location {
	info.ConfigLock.RLock()
	location := info.Config.Basic.Timezone
	info.ConfigLock.RUnlock()
	if location == "" {
		return time.UTC
	}
	if loc, err := tz.LoadLocation(string(location)); err == nil {
		return loc
	}
	return time.UTC
}

// ApplyTimezone transforms the given UTC time into the guild's local time
func (info *GuildInfo) ApplyTimezone(t time.Time) time.Time {
	return t.In(info.GetTimezone())
}

// GetUserName returns a string representation of the user's name if possible, otherwise pings them.
func (info *GuildInfo) GetUserName(user DiscordUser) string {
	m, err := info.Bot.DG.State.Member(info.ID, user.String())
	if err != nil || m.User == nil {
		return user.Display()
	}
	return info.GetMemberName(m)
}

// GetMemberName gets either the nickname or username of a member
func (info *GuildInfo) GetMemberName(m *discordgo.Member) string {
	if len(m.Nick) > 0 {
		return m.Nick
	}
	return m.User.Username
}

// GetGuild returns the guild object associated with this info object
func (info *GuildInfo) GetGuild() (*discordgo.Guild, error) {
	if info.Bot.DG == nil {
		return nil, discordgo.ErrNilState
	}
	return info.Bot.DG.State.Guild(info.ID)
}

// Clean out all commands or modules that no longer exist. The caller must hold ConfigLock.
func (info *GuildInfo) Clean() {
	modules := make(map[ModuleID]bool, len(info.Modules))
	for _, m := range info.Modules {
		modules[ModuleID(strings.ToLower(m.Name()))] = true
	}
	for k := range info.Config.Modules.Channels {
		if !modules[k] {
			delete(info.Config.Modules.Channels, k)
		}
	}
	for k := range info.Config.Modules.Disabled {
		if !modules[k] {
			delete(info.Config.Modules.Disabled, k)
		}
	}
	for k := range info.Config.Modules.CommandRoles {
		if _, ok := info.commands[k]; !ok {
			delete(info.Config.Modules.CommandRoles, k)
		}
	}
	for k := range info.Config.Modules.CommandDisabled {
		if _, ok := info.commands[k]; !ok {
			delete(info.Config.Modules.CommandDisabled, k)
		}
	}
}

// safeCall runs a module hook, recovering and counting any panic so one bad message can't kill the event loop
func (info *GuildInfo) safeCall(hook string, module string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			hookPanics.WithLabelValues(hook).Inc()
			info.log.Error("module hook panicked", "hook", hook, "module", module, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (info *GuildInfo) checkOnCommand(m *discordgo.Message) (ignore bool) {
	for _, h := range info.hooks.OnCommand {
		if info.ProcessModule(DiscordChannel(m.ChannelID), h) {
			info.safeCall("OnCommand", h.Name(), func() { ignore = h.OnCommand(info, m) || ignore })
		}
	}
	return
}

func (info *GuildInfo) runOnMessageCreate(m *discordgo.Message) {
	for _, h := range info.hooks.OnMessageCreate {
		if info.ProcessModule(DiscordChannel(m.ChannelID), h) {
			info.safeCall("OnMessageCreate", h.Name(), func() { h.OnMessageCreate(info, m) })
		}
	}
}

func (info *GuildInfo) runOnMessageUpdate(m *discordgo.Message) {
	for _, h := range info.hooks.OnMessageUpdate {
		if info.ProcessModule(DiscordChannel(m.ChannelID), h) {
			info.safeCall("OnMessageUpdate", h.Name(), func() { h.OnMessageUpdate(info, m) })
		}
	}
}
