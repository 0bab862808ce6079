package sweetiebot

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// InfoModule contains help and about commands
type InfoModule struct {
}

// Name of the module
func (w *InfoModule) Name() string {
	return "Information"
}

// Commands in the module
func (w *InfoModule) Commands() []Command {
	return []Command{
		&helpCommand{},
		&aboutCommand{},
	}
}

// Description of the module
func (w *InfoModule) Description(info *GuildInfo) string {
	return "Contains commands for getting information about the bot, commands, or configuration options."
}

type helpCommand struct {
}

func (c *helpCommand) Info() *CommandInfo {
	return &CommandInfo{
		Name:  "Help",
		Usage: "Lists all commands, or shows help for a module, command or config option.",
	}
}

func (info *GuildInfo) moduleDisabled(m Module) string {
	info.ConfigLock.RLock()
	defer info.ConfigLock.RUnlock()
	return info.Config.IsModuleDisabled(m)
}

func (info *GuildInfo) commandDisabled(c Command) string {
	info.ConfigLock.RLock()
	defer info.ConfigLock.RUnlock()
	return info.Config.IsCommandDisabled(c)
}

// DumpCommandsModules lists every module along with the commands the author of msg can use
func DumpCommandsModules(info *GuildInfo, footer string, msg *discordgo.Message) *discordgo.MessageEmbed {
	showdisabled := info.UserIsMod(DiscordUser(msg.Author.ID))
	fields := make([]*discordgo.MessageEmbedField, 0, len(info.Modules))
	for _, v := range info.Modules {
		disabled := info.moduleDisabled(v)
		if len(disabled) > 0 && !showdisabled {
			continue
		}
		s := []string{}
		for _, c := range v.Commands() {
			if _, err := info.UserCanUseCommand(DiscordUser(msg.Author.ID), c, false); err == nil {
				s = append(s, c.Info().Name+info.commandDisabled(c))
			}
		}
		value := "*[no commands]*"
		if len(s) > 0 {
			value = strings.Join(s, "\n")
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "**" + v.Name() + disabled + "**", Value: value, Inline: true})
	}
	return &discordgo.MessageEmbed{
		Type: "rich",
		Author: &discordgo.MessageEmbedAuthor{
			Name: info.Bot.AppName + " Commands",
		},
		Color:  0x3e92e5,
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: footer,
		},
	}
}

func (c *helpCommand) Process(args []string, msg *discordgo.Message, indices []int, info *GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	footer := "For more information on a specific command, type " + info.Prefix() + "help [command]."
	if len(args) == 0 {
		return "", false, DumpCommandsModules(info, footer, msg)
	}
	arg := strings.ToLower(args[0])
	for _, v := range info.Modules {
		if strings.ToLower(v.Name()) != arg {
			continue
		}
		cmds := v.Commands()
		fields := make([]*discordgo.MessageEmbedField, 0, len(cmds))
		for _, c := range cmds {
			if _, err := info.UserCanUseCommand(DiscordUser(msg.Author.ID), c, false); err == nil {
				fields = append(fields, &discordgo.MessageEmbedField{Name: "**" + c.Info().Name + "**" + info.commandDisabled(c), Value: c.Info().Usage, Inline: false})
			}
		}
		color := 0x56d34f
		disabled := info.moduleDisabled(v)
		if len(disabled) > 0 {
			color = 0xd54141
		}
		return "", false, &discordgo.MessageEmbed{
			Type: "rich",
			Author: &discordgo.MessageEmbedAuthor{
				Name: v.Name() + " Module Command List" + disabled,
			},
			Color:       color,
			Description: v.Description(info),
			Fields:      fields,
			Footer:      &discordgo.MessageEmbedFooter{Text: footer},
		}
	}
	v, ok := info.GetCommand(arg)
	if !ok {
		if parts := strings.Split(arg, "."); len(parts) > 1 {
			if s, ok := getConfigHelp(parts[0], parts[1]); ok {
				return "", false, &discordgo.MessageEmbed{
					Type:        "rich",
					Author:      &discordgo.MessageEmbedAuthor{Name: arg},
					Color:       0x414141,
					Description: s,
				}
			}
		}
		return "```\nI don't recognize that command, module or config option. Type " + info.Prefix() + "help with no arguments to list all commands.```", false, nil
	}
	return "", false, info.FormatUsage(v, v.Usage(info))
}
func (c *helpCommand) Usage(info *GuildInfo) *CommandUsage {
	return &CommandUsage{
		Desc: "Lists all available commands, or gives information about the given command, module or config option.",
		Params: []CommandUsageParam{
			{Name: "command/module", Desc: "The command or module to display help for. You do not need to include a command's parent module, just the command name itself. A config option like `automod.capsratio` shows the help text for that option.", Optional: true},
		},
	}
}

type aboutCommand struct {
}

func (c *aboutCommand) Info() *CommandInfo {
	return &CommandInfo{
		Name:  "About",
		Usage: "Displays information about the bot.",
	}
}
func (c *aboutCommand) Process(args []string, msg *discordgo.Message, indices []int, info *GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	info.Bot.GuildsLock.RLock()
	guilds := len(info.Bot.Guilds)
	info.Bot.GuildsLock.RUnlock()
	embed := &discordgo.MessageEmbed{
		Type: "rich",
		Author: &discordgo.MessageEmbedAuthor{
			Name: info.Bot.AppName + " " + info.Bot.Version,
		},
		Color: 0x3e92e5,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "**Library**", Value: "discordgo " + discordgo.VERSION, Inline: true},
			{Name: "**Owner ID**", Value: info.Bot.Owner.String(), Inline: true},
			{Name: "**Presence**", Value: Pluralize(int64(guilds), " server"), Inline: true},
			{Name: "**Uptime**", Value: TimeDiff(time.Since(info.Bot.StartTime)), Inline: true},
		},
	}
	return "", false, embed
}
func (c *aboutCommand) Usage(info *GuildInfo) *CommandUsage {
	return &CommandUsage{
		Desc: "Displays the version, owner and uptime of " + info.Bot.AppName + ".",
	}
}
