package sweetiebot

import (
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	TestServer      = "300000000000000001"
	TestChannel     = "300000000000000002"
	TestChannelMods = "300000000000000003"
	TestVoice       = "300000000000000004"
	TestOwnerBot    = "300000000000000009"
	TestOwnerServer = "300000000000000010"
	TestMod         = "300000000000000011"
	TestUser        = "300000000000000012"
	TestAdmin       = "300000000000000013"
	TestNick        = "300000000000000014"
	TestRoleMod     = "300000000000000020"
	TestRoleAdmin   = "300000000000000021"
	TestSelf        = "300000000000000099"
)

func Check(result interface{}, expected interface{}, t *testing.T) {
	t.Helper()
	assert.Equal(t, expected, result)
}

func CheckNot(result interface{}, expected interface{}, t *testing.T) {
	t.Helper()
	assert.NotEqual(t, expected, result)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mockMember(id string, name string, nick string, roles ...string) *discordgo.Member {
	return &discordgo.Member{
		GuildID: TestServer,
		Nick:    nick,
		User:    &discordgo.User{ID: id, Username: name},
		Roles:   roles,
	}
}

// MockGuild returns the guild that MockSweetieBot puts in its state
func MockGuild() *discordgo.Guild {
	return &discordgo.Guild{ID: TestServer, Name: "Test Server", OwnerID: TestOwnerServer}
}

// MockSweetieBot builds a bot whose session state already knows about one guild, so nothing touches the network
func MockSweetieBot(t *testing.T) *SweetieBot {
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(MockGuild()))
	require.NoError(t, state.RoleAdd(TestServer, &discordgo.Role{ID: TestServer, Name: "@everyone", Permissions: discordgo.PermissionSendMessages}))
	require.NoError(t, state.RoleAdd(TestServer, &discordgo.Role{ID: TestRoleMod, Name: "Mods", Permissions: discordgo.PermissionManageMessages}))
	require.NoError(t, state.RoleAdd(TestServer, &discordgo.Role{ID: TestRoleAdmin, Name: "Admins", Permissions: discordgo.PermissionAdministrator}))
	require.NoError(t, state.ChannelAdd(&discordgo.Channel{ID: TestChannel, GuildID: TestServer, Name: "general", Type: discordgo.ChannelTypeGuildText}))
	require.NoError(t, state.ChannelAdd(&discordgo.Channel{ID: TestChannelMods, GuildID: TestServer, Name: "mods", Type: discordgo.ChannelTypeGuildText}))
	require.NoError(t, state.ChannelAdd(&discordgo.Channel{ID: TestVoice, GuildID: TestServer, Name: "voice", Type: discordgo.ChannelTypeGuildVoice}))
	for _, m := range []*discordgo.Member{
		mockMember(TestOwnerServer, "serverowner", ""),
		mockMember(TestMod, "moderator", "", TestRoleMod),
		mockMember(TestUser, "user", ""),
		mockMember(TestAdmin, "admin", "", TestRoleAdmin),
		mockMember(TestNick, "nicknamed", "Cool Nick"),
		mockMember(TestSelf, "Sweetie Bot", ""),
	} {
		require.NoError(t, state.MemberAdd(m))
	}

	sb := &SweetieBot{
		DG:              &DiscordGoSession{Session: &discordgo.Session{State: state}},
		Logger:          discardLogger(),
		Owner:           TestOwnerBot,
		AppName:         "Sweetie Bot",
		ConfigDir:       t.TempDir(),
		MaxConfigSize:   1000000,
		AutoModDefaults: DefaultAutoModConfig(),
		Guilds:          make(map[DiscordGuild]*GuildInfo),
	}
	sb.SetSelf(TestSelf, "Sweetie Bot")
	return sb
}

// MockGuildInfo attaches a guild to a mock bot with the mod role configured
func MockGuildInfo(t *testing.T) *GuildInfo {
	sb := MockSweetieBot(t)
	info := NewGuildInfo(sb, MockGuild())
	info.RegisterModule(&ConfigModule{})
	info.RegisterModule(&InfoModule{})
	info.Config.Basic.ModRole = TestRoleMod
	info.Config.Basic.ModChannel = TestChannelMods
	sb.Guilds[TestServer] = info
	return info
}

// internalSetConfig runs a setconfig line the way the command does, without saving
func internalSetConfig(info *GuildInfo, s ...string) (string, bool) {
	for k := range s {
		if len(s[k]) == 0 {
			s[k] = "\"\""
		}
	}
	message := strings.Join(s, " ")
	args, indices := ParseArguments(message)
	name, err := FixRequest(args[0], reflect.ValueOf(&info.Config).Elem())
	if err != nil {
		return err.Error(), false
	}
	args[0] = name
	return info.Config.SetConfig(info, args, indices, message)
}
