package sweetiebot

import (
	"github.com/bwmarrin/discordgo"
)

// Module is a unit of guild functionality. Besides its commands, a module receives the message
// events for each hook interface it implements.
type Module interface {
	Name() string
	Commands() []Command
	Description(*GuildInfo) string
}

// ModuleOnMessageCreate receives every new guild message, commands included
type ModuleOnMessageCreate interface {
	Module
	OnMessageCreate(*GuildInfo, *discordgo.Message)
}

// ModuleOnMessageUpdate receives edits that carry content
type ModuleOnMessageUpdate interface {
	Module
	OnMessageUpdate(*GuildInfo, *discordgo.Message)
}

// ModuleOnCommand sees a command before it runs. Returning true drops the command, which is how a
// message that broke a rule is kept from also being executed.
type ModuleOnCommand interface {
	Module
	OnCommand(*GuildInfo, *discordgo.Message) bool
}

// CommandUsageParam is one parameter line in help output
type CommandUsageParam struct {
	Name     string
	Desc     string
	Optional bool
	Variadic bool
}

// CommandUsage is the help text shown for a command
type CommandUsage struct {
	Desc   string
	Params []CommandUsageParam
}

// CommandInfo names a command and says who may run it
type CommandInfo struct {
	Name       string
	Usage      string // one line summary for help listings
	Sensitive  bool   // mods only, unless Modules.CommandRoles opens it up
	Restricted bool   // bot owner only
}

// Command is invoked by prefix. Process returns the reply text, whether to send it by DM, and an optional embed.
type Command interface {
	Info() *CommandInfo
	Process([]string, *discordgo.Message, []int, *GuildInfo) (string, bool, *discordgo.MessageEmbed)
	Usage(*GuildInfo) *CommandUsage
}

type moduleHooks struct {
	OnMessageCreate []ModuleOnMessageCreate
	OnMessageUpdate []ModuleOnMessageUpdate
	OnCommand       []ModuleOnCommand
}

// RegisterModule adds a module's commands and hooks to this guild
func (info *GuildInfo) RegisterModule(m Module) {
	info.Modules = append(info.Modules, m)
	if h, ok := m.(ModuleOnMessageCreate); ok {
		info.hooks.OnMessageCreate = append(info.hooks.OnMessageCreate, h)
	}
	if h, ok := m.(ModuleOnMessageUpdate); ok {
		info.hooks.OnMessageUpdate = append(info.hooks.OnMessageUpdate, h)
	}
	if h, ok := m.(ModuleOnCommand); ok {
		info.hooks.OnCommand = append(info.hooks.OnCommand, h)
	}
	for _, c := range m.Commands() {
		info.AddCommand(c, m)
	}
}
