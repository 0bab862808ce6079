package sweetiebot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// ModuleLoader registers every feature module on a newly attached guild
type ModuleLoader func(*GuildInfo)

// Options configures a new SweetieBot
type Options struct {
	Token           string
	Owner           DiscordUser
	ConfigDir       string
	Version         string
	Logger          *slog.Logger
	DB              *BotDB
	AutoModDefaults *AutoModConfig
	Loader          ModuleLoader
}

// SweetieBot is the main bot object
type SweetieBot struct {
	DG              *DiscordGoSession
	DB              *BotDB
	Logger          *slog.Logger
	selfLock        sync.RWMutex
	selfID          DiscordUser
	selfName        string
	Owner           DiscordUser
	AppName         string
	Version         string
	ConfigDir       string
	MaxConfigSize   int
	StartTime       time.Time
	AutoModDefaults AutoModConfig
	GuildsLock      sync.RWMutex
	Guilds          map[DiscordGuild]*GuildInfo
	loader          ModuleLoader
}

var errNoToken = errors.New("a discord bot token is required")

// New creates a bot and its discord session, without connecting to the gateway
func New(opts Options) (*SweetieBot, error) {
	if len(opts.Token) == 0 {
		return nil, errNoToken
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ConfigDir == "" {
		opts.ConfigDir = "."
	}
	if err := os.MkdirAll(opts.ConfigDir, 0775); err != nil {
		return nil, err
	}
	sb := &SweetieBot{
		DB:              opts.DB,
		Logger:          opts.Logger,
		Owner:           opts.Owner,
		AppName:         "Sweetie Bot",
		Version:         opts.Version,
		ConfigDir:       opts.ConfigDir,
		MaxConfigSize:   1000000,
		StartTime:       time.Now().UTC(),
		AutoModDefaults: DefaultAutoModConfig(),
		Guilds:          make(map[DiscordGuild]*GuildInfo),
		loader:          opts.Loader,
	}
	if opts.AutoModDefaults != nil {
		sb.AutoModDefaults = opts.AutoModDefaults.Clone()
	}

	dg, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMembers | discordgo.IntentsMessageContent
	dg.State.TrackMembers = true
	sb.DG = &DiscordGoSession{dg}

	dg.AddHandler(sb.OnReady)
	dg.AddHandler(sb.OnGuildCreate)
	dg.AddHandler(sb.OnGuildDelete)
	dg.AddHandler(sb.OnMessageCreate)
	dg.AddHandler(sb.OnMessageUpdate)
	return sb, nil
}

// Run connects to the gateway and blocks until the context is cancelled
func (sb *SweetieBot) Run(ctx context.Context) error {
	if err := sb.DG.Open(); err != nil {
		return err
	}
	sb.Logger.Info("connected to discord gateway")
	<-ctx.Done()
	sb.Logger.Info("shutting down")
	err := sb.DG.Close()
	sb.DB.Close()
	return err
}

// OnReady records who we are once the gateway session is established
func (sb *SweetieBot) OnReady(s *discordgo.Session, r *discordgo.Ready) {
	sb.SetSelf(DiscordUser(r.User.ID), r.User.Username)
	sb.Logger.Info("ready", "user", r.User.Username, "id", r.User.ID, "guilds", len(r.Guilds))
}

// SetSelf records the bot's own user
func (sb *SweetieBot) SetSelf(id DiscordUser, name string) {
	sb.selfLock.Lock()
	sb.selfID = id
	sb.selfName = name
	sb.selfLock.Unlock()
}

// SelfID returns the bot's own user ID, which is empty until the gateway is ready
func (sb *SweetieBot) SelfID() DiscordUser {
	sb.selfLock.RLock()
	defer sb.selfLock.RUnlock()
	return sb.selfID
}

// SelfName returns the bot's own username
func (sb *SweetieBot) SelfName() string {
	sb.selfLock.RLock()
	defer sb.selfLock.RUnlock()
	return sb.selfName
}

// GetGuildInfo returns the attached guild, or nil
func (sb *SweetieBot) GetGuildInfo(guildID string) *GuildInfo {
	sb.GuildsLock.RLock()
	defer sb.GuildsLock.RUnlock()
	return sb.Guilds[DiscordGuild(guildID)]
}

// AttachToGuild loads the config for a guild and registers all modules on it
func (sb *SweetieBot) AttachToGuild(g *discordgo.Guild) *GuildInfo {
	sb.GuildsLock.Lock()
	defer sb.GuildsLock.Unlock()
	if info, ok := sb.Guilds[DiscordGuild(g.ID)]; ok {
		info.Name = g.Name
		info.OwnerID = DiscordUser(g.OwnerID)
		return info
	}

	info := NewGuildInfo(sb, g)
	info.RegisterModule(&ConfigModule{})
	info.RegisterModule(&InfoModule{})
	if sb.loader != nil {
		sb.loader(info)
	}
	if err := info.LoadConfig(); err != nil {
		info.log.Error("failed to load config, using defaults", tint.Err(err))
	}
	info.ConfigLock.Lock()
	info.Clean()
	info.ConfigLock.Unlock()

	sb.Guilds[DiscordGuild(g.ID)] = info
	guildsConnected.Set(float64(len(sb.Guilds)))
	info.log.Info("attached to guild", "name", g.Name, "version", sb.Version)
	return info
}

// OnGuildCreate attaches to guilds as they become available
func (sb *SweetieBot) OnGuildCreate(s *discordgo.Session, m *discordgo.GuildCreate) {
	if m.Guild == nil || m.Unavailable {
		return
	}
	sb.AttachToGuild(m.Guild)
}

// OnGuildDelete detaches from a guild when the bot is removed from it. Outages only mark a guild unavailable and are ignored.
func (sb *SweetieBot) OnGuildDelete(s *discordgo.Session, m *discordgo.GuildDelete) {
	if m.Guild == nil || m.Unavailable {
		return
	}
	sb.GuildsLock.Lock()
	delete(sb.Guilds, DiscordGuild(m.ID))
	guildsConnected.Set(float64(len(sb.Guilds)))
	sb.GuildsLock.Unlock()
	sb.Logger.Info("removed from guild", "guild", m.ID)
}

// shouldIgnore drops our own messages, DMs, and other bots unless the guild listens to them
func (sb *SweetieBot) shouldIgnore(m *discordgo.Message) (*GuildInfo, bool) {
	if m.Author == nil || DiscordUser(m.Author.ID) == sb.SelfID() || len(m.GuildID) == 0 {
		return nil, true
	}
	info := sb.GetGuildInfo(m.GuildID)
	if info == nil {
		return nil, true
	}
	if m.Author.Bot {
		info.ConfigLock.RLock()
		listen := info.Config.Basic.ListenToBots
		info.ConfigLock.RUnlock()
		if !listen {
			return info, true
		}
	}
	return info, false
}

// OnMessageCreate routes commands to the command dispatcher and everything else to module hooks
func (sb *SweetieBot) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	info, ignore := sb.shouldIgnore(m.Message)
	if ignore {
		return
	}
	prefix := info.Prefix()
	if len(m.Content) > 1 && strings.HasPrefix(m.Content, prefix) && m.Content[1:2] != prefix { // We check for > 1 here because a single character can't possibly be a valid command
		sb.ProcessCommand(info, m.Message)
		return
	}
	info.runOnMessageCreate(m.Message)
}

// OnMessageUpdate runs module hooks on edited messages
func (sb *SweetieBot) OnMessageUpdate(s *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Message == nil || m.Author == nil { // Discord sends an update message with an empty author when certain media links are posted
		return
	}
	info, ignore := sb.shouldIgnore(m.Message)
	if ignore {
		return
	}
	info.runOnMessageUpdate(m.Message)
}

// ProcessCommand parses and runs a command message
func (sb *SweetieBot) ProcessCommand(info *GuildInfo, m *discordgo.Message) {
	t := time.Now().UTC().Unix()
	channel := DiscordChannel(m.ChannelID)
	args, indices := ParseArguments(m.Content[1:])
	if len(args) == 0 {
		return
	}
	for k := range indices {
		indices[k]++ // Account for the prefix so indices point into m.Content
	}

	if info.checkOnCommand(m) { // A module wants us to ignore this command
		commandsRejected.WithLabelValues("ignored").Inc()
		return
	}

	c, ok := info.GetCommand(args[0])
	if !ok {
		info.ConfigLock.RLock()
		quiet := info.Config.Basic.IgnoreInvalidCommands
		prefix := info.Config.Basic.CommandPrefix
		info.ConfigLock.RUnlock()
		if !quiet {
			info.SendError(channel, "Sorry, "+SanitizeOutput(args[0])+" is not a valid command.\nFor a list of valid commands, type "+prefix+"help.", t)
		}
		commandsRejected.WithLabelValues("unknown").Inc()
		return
	}

	bypass, err := info.UserCanUseCommand(DiscordUser(m.Author.ID), c, false)
	if err != nil {
		commandsRejected.WithLabelValues("permission").Inc()
		info.SendError(channel, err.Error(), t)
		return
	}

	if !bypass {
		info.ConfigLock.RLock()
		per := info.Config.Modules.CommandPerDuration
		duration := info.Config.Modules.CommandMaxDuration
		info.ConfigLock.RUnlock()
		if per > 0 && info.commandlimit.Check(per, duration, t) { // if we've hit the saturation limit, post an error (which itself will only post if the error saturation limit hasn't been hit)
			commandsRejected.WithLabelValues("ratelimit").Inc()
			info.SendError(channel, "You can't input more than "+Pluralize(int64(per), " command")+" every "+TimeDiff(time.Duration(duration)*time.Second)+"!", t)
			return
		}
		info.commandlimit.Append(t)
	}

	name := strings.ToLower(c.Info().Name)
	commandsProcessed.WithLabelValues(name).Inc()
	module := string(info.commandmap[CommandID(name)])
	var result string
	var usepm bool
	var embed *discordgo.MessageEmbed
	info.safeCall("Command", module, func() {
		result, usepm, embed = c.Process(args[1:], m, indices[1:], info)
	})

	target := channel
	if usepm {
		if ch, err := sb.DG.UserChannelCreate(m.Author.ID); err == nil {
			target = DiscordChannel(ch.ID)
		} else {
			info.log.Warn("error opening private channel", "user", m.Author.ID, tint.Err(err))
		}
	}
	if embed != nil {
		info.LogError("Error sending embed: ", info.SendEmbed(target, embed))
	} else if len(result) > 0 {
		info.SendMessage(target, result)
	}
}
