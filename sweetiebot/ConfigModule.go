package sweetiebot

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ConfigModule lets moderators inspect and edit a guild's settings, including every automod threshold
type ConfigModule struct{}

// Name of the module
func (w *ConfigModule) Name() string {
	return "Configuration"
}

// Commands returns setconfig and getconfig
func (w *ConfigModule) Commands() []Command {
	return []Command{
		&setConfigCommand{},
		&getConfigCommand{},
	}
}

// Description of the module
func (w *ConfigModule) Description(info *GuildInfo) string {
	return "Reads and changes this server's moderation settings. Every change is validated before it is saved."
}

type setConfigCommand struct{}

func (c *setConfigCommand) Info() *CommandInfo {
	return &CommandInfo{
		Name:      "SetConfig",
		Usage:     "Changes a moderation setting.",
		Sensitive: true,
	}
}
func (c *setConfigCommand) Process(args []string, msg *discordgo.Message, indices []int, info *GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	if len(args) < 1 {
		return "```\nNo configuration parameter given. Try " + info.Config.Basic.CommandPrefix + "getconfig to see them all.```", false, nil
	}
	if len(args) < 2 {
		return "```\nNo value to set! To clear " + args[0] + ", pass \"\" as the value.```", false, nil
	}
	info.ConfigLock.Lock()
	defer info.ConfigLock.Unlock()
	var err error
	args[0], err = FixRequest(args[0], reflect.ValueOf(&info.Config).Elem())
	if err != nil {
		return ReturnError(err)
	}
	n, ok := info.Config.SetConfig(info, args, indices, msg.Content)
	if !ok {
		return "```\n" + n + "```", false, nil
	}
	if err = info.SaveConfig(); err != nil {
		return ReturnError(err)
	}
	return "```\nSuccessfully set " + args[0] + " to " + SanitizeOutput(n) + ".```", false, nil
}
func (c *setConfigCommand) Usage(info *GuildInfo) *CommandUsage {
	return &CommandUsage{
		Desc: "Changes a setting named `Category.Option`, such as `AutoMod.SpamMessages`. The category can be left off when the option name is unique. The whole configuration is checked after the change; if any automod threshold ends up out of range, the old value is kept and nothing is saved. Quote values that contain spaces, like banned phrases.",
		Params: []CommandUsageParam{
			{Name: "[option] [value]", Desc: "Sets a single value, such as `AutoMod.CapsRatio 0.8` or `Basic.ModRole @Mods`. Option names ignore case.", Optional: true},
			{Name: "[list option] [value]", Desc: "Replaces a list, such as `AutoMod.LinkAllowlist youtube.com \"docs.example.com\"`. Pass no values to empty it.", Optional: true, Variadic: true},
			{Name: "[map option] [key] [value]", Desc: "Sets one key of a map, such as the role allowed to use a command.", Optional: true},
			{Name: "[maplist option] [key] [value]", Desc: "Sets the list stored under one key, such as the channels a module is limited to: `Modules.Channels automod #general #media`.", Optional: true, Variadic: true},
		},
	}
}

type getConfigCommand struct{}

func (c *getConfigCommand) Info() *CommandInfo {
	return &CommandInfo{
		Name:      "GetConfig",
		Usage:     "Shows moderation settings.",
		Sensitive: true,
	}
}

// fieldKind tags collection options so moderators know how setconfig expects their values
func fieldKind(f reflect.Value) string {
	switch {
	case f.Kind() == reflect.Slice || isListMap(f.Type()):
		return " [list]"
	case isMapList(f.Type()):
		return " [maplist]"
	case f.Kind() == reflect.Map:
		return " [map]"
	}
	return ""
}

func (c *getConfigCommand) Process(args []string, msg *discordgo.Message, indices []int, info *GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	info.ConfigLock.RLock()
	defer info.ConfigLock.RUnlock()
	t := reflect.ValueOf(&info.Config).Elem()
	n := t.NumField()
	if len(args) < 1 {
		fields := make([]*discordgo.MessageEmbedField, 0, n)
		for i := 0; i < n; i++ {
			f := t.Field(i)
			if f.Kind() != reflect.Struct {
				continue
			}
			s := make([]string, 0, f.NumField())
			for j := 0; j < f.NumField(); j++ {
				s = append(s, f.Type().Field(j).Name+fieldKind(f.Field(j)))
			}
			fields = append(fields, &discordgo.MessageEmbedField{Name: "**" + t.Type().Field(i).Name + "**", Value: strings.Join(s, "\n"), Inline: true})
		}
		return "", false, &discordgo.MessageEmbed{
			Type:   "rich",
			Author: &discordgo.MessageEmbedAuthor{Name: info.Bot.AppName + " Config Options"},
			Color:  0x3e92e5,
			Fields: fields,
		}
	}
	var err error
	args[0], err = FixRequest(args[0], t)
	if err != nil {
		return ReturnError(err)
	}
	arg := strings.SplitN(strings.ToLower(args[0]), ".", 3)
	if len(args) > 1 {
		arg = append(arg, args[1])
	}

	for i := 0; i < n; i++ {
		if strings.ToLower(t.Type().Field(i).Name) != arg[0] || t.Field(i).Kind() != reflect.Struct {
			continue
		}
		f := t.Field(i)
		if len(arg) > 1 {
			for j := 0; j < f.NumField(); j++ {
				if strings.ToLower(f.Type().Field(j).Name) == arg[1] {
					lines := getSubStruct(arg, f, j, info)
					if len(lines) == 0 {
						return fmt.Sprintf("```\n%s.%s: [empty]```", arg[0], arg[1]), false, nil
					} else if len(lines) == 1 {
						return fmt.Sprintf("```\n%s.%s: %s```", arg[0], arg[1], SanitizeOutput(lines[0])), false, nil
					}
					return fmt.Sprintf("```\n--- %s.%s ---\n%s```", arg[0], arg[1], SanitizeOutput(strings.Join(lines, "\n"))), false, nil
				}
			}
			continue
		}
		fields := make([]*discordgo.MessageEmbedField, 0, f.NumField())
		dump := []string{}
		for j := 0; j < f.NumField(); j++ {
			desc, ok := getConfigHelp(t.Type().Field(i).Name, f.Type().Field(j).Name)
			if !ok {
				desc = "\u200b"
			}
			fields = append(fields, &discordgo.MessageEmbedField{Name: "**" + f.Type().Field(j).Name + "**", Value: desc, Inline: false})

			lines := getSubStruct(arg, f, j, info)
			switch len(lines) {
			case 0:
				dump = append(dump, fmt.Sprintf("%s: [empty]", f.Type().Field(j).Name))
			case 1:
				dump = append(dump, fmt.Sprintf("%s: %s", f.Type().Field(j).Name, SanitizeOutput(lines[0])))
			default:
				dump = append(dump, fmt.Sprintf("%s: [%v items]", f.Type().Field(j).Name, len(lines)))
			}
		}
		return "", false, &discordgo.MessageEmbed{
			Type:        "rich",
			Author:      &discordgo.MessageEmbedAuthor{Name: t.Type().Field(i).Name + " Config Category"},
			Description: "```\n" + strings.Join(dump, "\n") + "```",
			Color:       0x3e92e5,
			Fields:      fields,
		}
	}

	prefix := info.Config.Basic.CommandPrefix
	return "```\nThat's not a recognized config option! Type " + prefix + "getconfig without any arguments to list all possible config options. Use \".\" to specify which category of options you want - for example, \"AutoMod.CapsRatio\". Using " + prefix + "getconfig with just a category will list help for that category, e.g. \"" + prefix + "getconfig AutoMod\".```", false, nil
}
func (c *getConfigCommand) Usage(info *GuildInfo) *CommandUsage {
	return &CommandUsage{
		Desc: "With no arguments, lists every setting grouped by category. With a category such as `AutoMod`, shows each option's current value and what it controls. With a single option, shows just that value.",
		Params: []CommandUsageParam{
			{Name: "option", Desc: "A category like `AutoMod`, or one option like `AutoMod.BannedWords`.", Optional: true},
			{Name: "key", Desc: "For map options, only shows this key, such as a module name for `Modules.Channels`.", Optional: true},
		},
	}
}
