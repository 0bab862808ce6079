package sweetiebot

import (
	"github.com/bwmarrin/discordgo"
)

type testCommand struct {
	info CommandInfo
}

func (c *testCommand) Info() *CommandInfo { return &c.info }
func (c *testCommand) Process(args []string, msg *discordgo.Message, indices []int, info *GuildInfo) (string, bool, *discordgo.MessageEmbed) {
	return "ran " + c.info.Name, false, nil
}
func (c *testCommand) Usage(info *GuildInfo) *CommandUsage {
	return &CommandUsage{Desc: "test", Params: []CommandUsageParam{
		{Name: "arg", Desc: "an argument"},
		{Name: "rest", Desc: "everything else", Optional: true, Variadic: true},
	}}
}

func mockCommand(name string) *testCommand {
	return &testCommand{CommandInfo{Name: name}}
}

func mockSensitiveCommand(name string) *testCommand {
	return &testCommand{CommandInfo{Name: name, Sensitive: true}}
}

func mockRestrictedCommand(name string) *testCommand {
	return &testCommand{CommandInfo{Name: name, Restricted: true}}
}

type testModule struct {
	name     string
	commands []Command
	created  []*discordgo.Message
	updated  []*discordgo.Message
	ignore   bool
	panics   bool
}

func (m *testModule) Name() string                       { return m.name }
func (m *testModule) Commands() []Command                { return m.commands }
func (m *testModule) Description(info *GuildInfo) string { return "test module" }

func (m *testModule) OnMessageCreate(info *GuildInfo, msg *discordgo.Message) {
	if m.panics {
		panic("test module exploded")
	}
	m.created = append(m.created, msg)
}

func (m *testModule) OnMessageUpdate(info *GuildInfo, msg *discordgo.Message) {
	m.updated = append(m.updated, msg)
}

func (m *testModule) OnCommand(info *GuildInfo, msg *discordgo.Message) bool {
	return m.ignore
}

func mockModule(name string, commands ...Command) *testModule {
	return &testModule{name: name, commands: commands}
}

func mockMessage(author string, channel string, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "1",
		ChannelID: channel,
		GuildID:   TestServer,
		Content:   content,
		Author:    &discordgo.User{ID: author},
	}
}
