package sweetiebot

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type sentMessage struct {
	channel string
	content string
	embed   *discordgo.MessageEmbed
}

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// mockREST answers every REST call locally and records the messages the bot sends
func mockREST(t *testing.T, sb *SweetieBot) chan sentMessage {
	s, err := discordgo.New("Bot test")
	require.NoError(t, err)
	s.State = sb.DG.State
	s.MaxRestRetries = 0
	sent := make(chan sentMessage, 50)
	s.Client = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
		}
		parts := strings.Split(r.URL.Path, "/")
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/users/@me/channels") {
			return jsonResponse(http.StatusOK, `{"id": "400000000000000001", "type": 1}`), nil
		}
		if r.Method == http.MethodPost && len(parts) > 2 && parts[len(parts)-1] == "messages" {
			channel := parts[len(parts)-2]
			var m struct {
				Content string                    `json:"content"`
				Embeds  []*discordgo.MessageEmbed `json:"embeds"`
				Embed   *discordgo.MessageEmbed   `json:"embed"`
			}
			require.NoError(t, json.Unmarshal(body, &m))
			msg := sentMessage{channel: channel, content: m.Content, embed: m.Embed}
			if len(m.Embeds) > 0 {
				msg.embed = m.Embeds[0]
			}
			sent <- msg
			return jsonResponse(http.StatusOK, `{"id": "500", "channel_id": "`+channel+`"}`), nil
		}
		return jsonResponse(http.StatusNotFound, `{"message": "Unknown", "code": 0}`), nil
	})}
	sb.DG = &DiscordGoSession{s}
	return sent
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := New(Options{})
	Check(err, errNoToken, t)

	defaults := DefaultAutoModConfig()
	defaults.CapsRatio = 0.9
	sb, err := New(Options{Token: "test", ConfigDir: t.TempDir(), Version: "1.0", AutoModDefaults: &defaults})
	require.NoError(t, err)
	require.NotNil(t, sb.DG)
	Check(sb.AutoModDefaults.CapsRatio, 0.9, t)
	Check(sb.MaxConfigSize, 1000000, t)
	Check(sb.Version, "1.0", t)
	assert.NotNil(t, sb.Logger)
	assert.True(t, sb.DG.State.TrackMembers)
	assert.NotZero(t, sb.DG.Identify.Intents&discordgo.IntentsMessageContent)

	defaults.BannedWords["shared"] = true
	assert.Empty(t, sb.AutoModDefaults.BannedWords)
}

func TestOnReady(t *testing.T) {
	t.Parallel()
	sb := MockSweetieBot(t)
	sb.OnReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "123", Username: "Sweetie"}})
	Check(sb.SelfID(), DiscordUser("123"), t)
	Check(sb.SelfName(), "Sweetie", t)
}

func TestOnReadyDuringDispatch(t *testing.T) {
	t.Parallel()
	info := MockGuildInfo(t)
	sb := info.Bot
	m := mockModule("Hooks")
	info.RegisterModule(m)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			sb.OnReady(nil, &discordgo.Ready{User: &discordgo.User{ID: TestSelf, Username: "Sweetie Bot"}})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			sb.OnMessageCreate(nil, &discordgo.MessageCreate{Message: mockMessage(TestSelf, TestChannel, "hello")})
			sb.OnMessageCreate(nil, &discordgo.MessageCreate{Message: mockMessage(TestUser, TestChannel, "hello")})
		}
	}()
	wg.Wait()
	Check(len(m.created), 50, t)
}

func TestAttachToGuild(t *testing.T) {
	t.Parallel()
	sb := MockSweetieBot(t)
	loaded := 0
	sb.loader = func(info *GuildInfo) {
		loaded++
		info.RegisterModule(mockModule("AutoMod", mockSensitiveCommand("SetCaps")))
	}
	info := sb.AttachToGuild(MockGuild())
	Check(loaded, 1, t)
	Check(len(info.Modules), 3, t)
	for _, name := range []string{"setconfig", "getconfig", "help", "about", "setcaps"} {
		_, ok := info.GetCommand(name)
		assert.True(t, ok, name)
	}
	assert.FileExists(t, info.configPath())
	Check(sb.GetGuildInfo(TestServer), info, t)
	assert.Nil(t, sb.GetGuildInfo("42"))

	renamed := MockGuild()
	renamed.Name = "Renamed"
	Check(sb.AttachToGuild(renamed), info, t)
	Check(info.Name, "Renamed", t)
	Check(loaded, 1, t)
}

func TestAttachToGuildCleansConfig(t *testing.T) {
	t.Parallel()
	sb := MockSweetieBot(t)
	old := NewGuildInfo(sb, MockGuild())
	old.Config.Modules.Disabled["gone"] = true
	old.Config.Modules.CommandDisabled["help"] = true
	require.NoError(t, old.SaveConfig())

	info := sb.AttachToGuild(MockGuild())
	Check(info.Config.Modules.Disabled, map[ModuleID]bool{}, t)
	Check(info.Config.Modules.CommandDisabled, map[CommandID]bool{"help": true}, t)
}

func TestOnGuildEvents(t *testing.T) {
	t.Parallel()
	sb := MockSweetieBot(t)
	sb.OnGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: TestServer, Unavailable: true}})
	assert.Nil(t, sb.GetGuildInfo(TestServer))
	sb.OnGuildCreate(nil, &discordgo.GuildCreate{Guild: MockGuild()})
	assert.NotNil(t, sb.GetGuildInfo(TestServer))

	sb.OnGuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: TestServer, Unavailable: true}})
	assert.NotNil(t, sb.GetGuildInfo(TestServer), "outages don't detach")
	sb.OnGuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: TestServer}})
	assert.Nil(t, sb.GetGuildInfo(TestServer))
}

func TestMessageRouting(t *testing.T) {
	t.Parallel()
	info := MockGuildInfo(t)
	sb := info.Bot
	sent := mockREST(t, sb)
	m := mockModule("Hooks", mockCommand("echo"))
	info.RegisterModule(m)

	create := func(msg *discordgo.Message) { sb.OnMessageCreate(nil, &discordgo.MessageCreate{Message: msg}) }
	create(mockMessage(TestUser, TestChannel, "hello"))
	create(mockMessage(TestUser, TestChannel, "!!not a command"))
	create(mockMessage(TestUser, TestChannel, "!"))
	Check(len(m.created), 3, t)

	create(mockMessage(TestUser, TestChannel, "!echo"))
	Check(len(m.created), 3, t)
	s := <-sent
	Check(s.channel, TestChannel, t)
	Check(s.content, "ran echo", t)

	create(mockMessage(TestSelf, TestChannel, "hello"))
	dm := mockMessage(TestUser, TestChannel, "hello")
	dm.GuildID = ""
	create(dm)
	other := mockMessage(TestUser, TestChannel, "hello")
	other.GuildID = "42"
	create(other)
	bot := mockMessage("77", TestChannel, "hello")
	bot.Author.Bot = true
	create(bot)
	Check(len(m.created), 3, t)

	info.Config.Basic.ListenToBots = true
	create(bot)
	Check(len(m.created), 4, t)

	sb.OnMessageUpdate(nil, &discordgo.MessageUpdate{Message: &discordgo.Message{ID: "1", GuildID: TestServer, ChannelID: TestChannel}})
	Check(len(m.updated), 0, t)
	sb.OnMessageUpdate(nil, &discordgo.MessageUpdate{Message: mockMessage(TestUser, TestChannel, "edited")})
	Check(len(m.updated), 1, t)
	assert.Len(t, sent, 0)
}

func TestProcessCommandErrors(t *testing.T) {
	t.Parallel()
	info := MockGuildInfo(t)
	sent := mockREST(t, info.Bot)
	info.Bot.ProcessCommand(info, mockMessage(TestUser, TestChannel, "!nothing"))
	s := <-sent
	assert.Contains(t, s.content, "Sorry, nothing is not a valid command.")
	assert.Contains(t, s.content, "type !help")

	info = MockGuildInfo(t)
	sent = mockREST(t, info.Bot)
	info.Config.Basic.IgnoreInvalidCommands = true
	info.Bot.ProcessCommand(info, mockMessage(TestUser, TestChannel, "!nothing"))
	assert.Len(t, sent, 0)

	info = MockGuildInfo(t)
	sent = mockREST(t, info.Bot)
	info.Bot.ProcessCommand(info, mockMessage(TestUser, TestChannel, "!setconfig automod.capsratio 0.1"))
	s = <-sent
	assert.Contains(t, s.content, errNoPermissions.Error())
	Check(info.Config.AutoMod.CapsRatio, 0.7, t)
}

func TestProcessCommandIgnored(t *testing.T) {
	t.Parallel()
	info := MockGuildInfo(t)
	sent := mockREST(t, info.Bot)
	m := mockModule("Blocker", mockCommand("echo"))
	m.ignore = true
	info.RegisterModule(m)
	info.Bot.ProcessCommand(info, mockMessage(TestUser, TestChannel, "!echo"))
	assert.Len(t, sent, 0)
}

func TestProcessCommandRateLimit(t *testing.T) {
	t.Parallel()
	info := MockGuildInfo(t)
	sent := mockREST(t, info.Bot)
	info.RegisterModule(mockModule("test", mockCommand("echo")))
	for i := 0; i < 4; i++ {
		info.Bot.ProcessCommand(info, mockMessage(TestUser, TestChannel, "!echo"))
	}
	for i := 0; i < 3; i++ {
		Check((<-sent).content, "ran echo", t)
	}
	assert.Contains(t, (<-sent).content, "You can't input more than 3 commands every 15 seconds!")

	for i := 0; i < 4; i++ {
		info.Bot.ProcessCommand(info, mockMessage(TestAdmin, TestChannel, "!echo"))
	}
	for i := 0; i < 4; i++ {
		Check((<-sent).content, "ran echo", t)
	}
}

func TestProcessCommandSetConfig(t *testing.T) {
	t.Parallel()
	info := MockGuildInfo(t)
	sent := mockREST(t, info.Bot)
	info.Bot.ProcessCommand(info, mockMessage(TestMod, TestChannel, "!setconfig capsratio 0.25"))
	s := <-sent
	Check(s.content, "```\nSuccessfully set automod.capsratio to 0.25.```", t)
	Check(info.Config.AutoMod.CapsRatio, 0.25, t)

	info.Bot.ProcessCommand(info, mockMessage(TestMod, TestChannel, "!help"))
	s = <-sent
	require.NotNil(t, s.embed)
	Check(s.embed.Author.Name, "Sweetie Bot Commands", t)
}
