package automodmodule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	bot "github.com/erikmcclure/sweetiemod/sweetiebot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGuild      = "200000000000000001"
	testChannel    = "200000000000000002"
	testModChannel = "200000000000000003"
	testOwner      = "200000000000000010"
	testMod        = "200000000000000011"
	testUser       = "200000000000000012"
	testManager    = "200000000000000013"
	testModRole    = "200000000000000020"
	testManageRole = "200000000000000021"
	testBotID      = "200000000000000099"
)

var errMock = errors.New("mock failure")

type MockCall []interface{}
type MockAny struct{}

func (a MockCall) Compare(b MockCall) bool {
	if len(a) != len(b) {
		return false
	}
	any := reflect.TypeOf(MockAny{})
	for k := range a {
		ta := reflect.TypeOf(a[k])
		tb := reflect.TypeOf(b[k])
		if ta == any || tb == any {
			continue
		}
		if ta != tb || !reflect.DeepEqual(a[k], b[k]) {
			return false
		}
	}
	return true
}

func (a MockCall) String() string {
	args := make([]string, len(a))
	for i, arg := range a {
		args[i] = fmt.Sprint(arg)
	}
	return "[" + strings.Join(args, ", ") + "]"
}

// mockActions records every enforcement call and fails the ones listed in errors
type mockActions struct {
	lock    sync.Mutex
	history []MockCall
	errors  map[string]error
}

func newMockActions() *mockActions {
	return &mockActions{errors: make(map[string]error)}
}

func (m *mockActions) input(args ...interface{}) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.history = append(m.history, args)
	return m.errors[args[0].(string)]
}

func (m *mockActions) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return m.input("delete", channelID, messageID)
}

func (m *mockActions) TimeoutUser(ctx context.Context, guildID, userID string, d time.Duration) error {
	return m.input("timeout", guildID, userID, d)
}

func (m *mockActions) SendTransientNotice(ctx context.Context, channelID, text string, display time.Duration) error {
	return m.input("notice", channelID, text, display)
}

func (m *mockActions) SendMessage(ctx context.Context, channelID, text string) error {
	return m.input("send", channelID, text)
}

// Check asserts that exactly the expected calls were made, in order
func (m *mockActions) Check(t *testing.T, expected ...MockCall) {
	t.Helper()
	m.lock.Lock()
	defer m.lock.Unlock()
	require.Len(t, m.history, len(expected), "history: %v", m.history)
	for i := range expected {
		assert.True(t, m.history[i].Compare(expected[i]), "call %d was %v, expected %v", i, m.history[i], expected[i])
	}
}

type mockAudit struct {
	up      bool
	err     error
	records []bot.ViolationRecord
}

func (m *mockAudit) CheckStatus() bool { return m.up }

func (m *mockAudit) AddViolation(ctx context.Context, v *bot.ViolationRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, *v)
	return nil
}

// brokenStore fails every call, like an unreachable redis
type brokenStore struct{}

func (brokenStore) Hit(ctx context.Context, guild, user string, now time.Time, window time.Duration) (int, error) {
	return 0, errMock
}

func (brokenStore) Reset(ctx context.Context, guild, user string) error {
	return errMock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMember(id string, name string, roles ...string) *discordgo.Member {
	return &discordgo.Member{
		GuildID: testGuild,
		User:    &discordgo.User{ID: id, Username: name},
		Roles:   roles,
	}
}

// newTestGuild builds a guild whose members, roles and channels all live in the session state, so nothing touches the network
func newTestGuild(t *testing.T) *bot.GuildInfo {
	state := discordgo.NewState()
	g := &discordgo.Guild{ID: testGuild, Name: "Test Guild", OwnerID: testOwner}
	require.NoError(t, state.GuildAdd(g))
	require.NoError(t, state.RoleAdd(testGuild, &discordgo.Role{ID: testGuild, Name: "@everyone", Permissions: discordgo.PermissionSendMessages}))
	require.NoError(t, state.RoleAdd(testGuild, &discordgo.Role{ID: testModRole, Name: "Mods", Permissions: discordgo.PermissionSendMessages}))
	require.NoError(t, state.RoleAdd(testGuild, &discordgo.Role{ID: testManageRole, Name: "Janitors", Permissions: discordgo.PermissionManageMessages}))
	require.NoError(t, state.ChannelAdd(&discordgo.Channel{ID: testChannel, GuildID: testGuild, Name: "general", Type: discordgo.ChannelTypeGuildText}))
	require.NoError(t, state.ChannelAdd(&discordgo.Channel{ID: testModChannel, GuildID: testGuild, Name: "mods", Type: discordgo.ChannelTypeGuildText}))
	for _, m := range []*discordgo.Member{
		testMember(testOwner, "owner"),
		testMember(testMod, "moderator", testModRole),
		testMember(testUser, "user"),
		testMember(testManager, "janitor", testManageRole),
		testMember(testBotID, "Sweetie Bot"),
	} {
		require.NoError(t, state.MemberAdd(m))
	}

	sb := &bot.SweetieBot{
		DG:              &bot.DiscordGoSession{Session: &discordgo.Session{State: state}},
		Logger:          discardLogger(),
		ConfigDir:       t.TempDir(),
		MaxConfigSize:   1000000,
		AutoModDefaults: bot.DefaultAutoModConfig(),
		Guilds:          make(map[bot.DiscordGuild]*bot.GuildInfo),
	}
	sb.SetSelf(bot.DiscordUser(testBotID), "Sweetie Bot")
	info := bot.NewGuildInfo(sb, g)
	info.Config.Basic.ModRole = bot.DiscordRole(testModRole)
	info.Config.Basic.ModChannel = bot.DiscordChannel(testModChannel)
	sb.Guilds[bot.DiscordGuild(testGuild)] = info
	return info
}

func testMessage(id string, author string, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: testChannel,
		GuildID:   testGuild,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Author:    &discordgo.User{ID: author},
	}
}

// runCommand parses a command line the way the dispatcher does and runs it
func runCommand(c bot.Command, info *bot.GuildInfo, line string) string {
	content := "!" + line
	args, indices := bot.ParseArguments(content[1:])
	for k := range indices {
		indices[k]++
	}
	if len(args) > 0 {
		args, indices = args[1:], indices[1:]
	}
	msg := testMessage("1", testMod, content)
	s, _, _ := c.Process(args, msg, indices, info)
	return s
}
