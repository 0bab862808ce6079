package sweetiebot

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordChannel(t *testing.T) {
	t.Parallel()
	ch := DiscordChannel("")
	Check(ch.Display(), "<#>", t)
	Check(ch.Equals(""), false, t)
	Check(ch, ChannelEmpty, t)
	Check(ch.String(), "", t)
	ch = DiscordChannel("1")
	Check(ch.Display(), "<#1>", t)
	Check(ch.Equals("1"), true, t)
	Check(ch.Equals("2"), false, t)
	Check(ch.String(), "1", t)
}

func TestDiscordRole(t *testing.T) {
	t.Parallel()
	r := DiscordRole("")
	Check(r.Display(), "<@&>", t)
	Check(r.Equals(""), false, t)
	r = DiscordRole("1")
	Check(r.Display(), "<@&1>", t)
	Check(r.Equals("1"), true, t)
	Check(r.String(), "1", t)
}

func TestDiscordUser(t *testing.T) {
	t.Parallel()
	u := DiscordUser("")
	Check(u.Display(), "<@>", t)
	Check(u.Equals(""), false, t)
	u = DiscordUser("1")
	Check(u.Display(), "<@1>", t)
	Check(u.Equals("1"), true, t)
	Check(u.String(), "1", t)
}

func TestDiscordGuild(t *testing.T) {
	t.Parallel()
	g := DiscordGuild("")
	Check(g.Equals(""), false, t)
	g = DiscordGuild("1")
	Check(g.Equals("1"), true, t)
	Check(g.String(), "1", t)
}

func TestShow(t *testing.T) {
	t.Parallel()
	info := MockGuildInfo(t)
	Check(DiscordChannel(TestChannel).Show(info), "#general", t)
	Check(DiscordChannel("42").Show(info), "<#42>", t)
	Check(DiscordRole(TestRoleMod).Show(info), "@Mods", t)
	Check(DiscordRole("42").Show(info), "<@&42>", t)
}

func TestUnmarshalSnowflake(t *testing.T) {
	t.Parallel()
	var v struct {
		Channel DiscordChannel `json:"channel"`
		Role    DiscordRole    `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"channel": 123456789012345678, "role": "42"}`), &v))
	Check(v.Channel, DiscordChannel("123456789012345678"), t)
	Check(v.Role, DiscordRole("42"), t)
	assert.Error(t, json.Unmarshal([]byte(`{"channel": true}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"role": -1}`), &v))
}

func ambiguousGuild() *discordgo.Guild {
	return &discordgo.Guild{
		ID: TestServer,
		Channels: []*discordgo.Channel{
			{ID: "1", Name: "general"},
			{ID: "2", Name: "Dup"},
			{ID: "3", Name: "dup"},
		},
		Roles: []*discordgo.Role{
			{ID: "4", Name: "Mods"},
			{ID: "5", Name: "dup"},
			{ID: "6", Name: "DUP"},
		},
	}
}

func TestParseChannel(t *testing.T) {
	t.Parallel()
	nilresults := []string{"!!", "akjhdfkj", "akjh dfkj", "<", "<>", "<#>", "<#a>", "#a"}
	for _, g := range []*discordgo.Guild{nil, ambiguousGuild()} {
		for _, v := range nilresults {
			ch, err := ParseChannel(v, g)
			Check(ch, ChannelEmpty, t)
			assert.Error(t, err, v)
		}
		ch, err := ParseChannel("", g)
		Check(ch, ChannelEmpty, t)
		Check(err, nil, t)
		ch, err = ParseChannel("!", g)
		Check(ch, ChannelExclusion, t)
		Check(err, nil, t)
		ch, err = ParseChannel("0", g)
		Check(ch, DiscordChannel("0"), t)
		Check(err, nil, t)
		ch, err = ParseChannel("<#123>", g)
		Check(ch, DiscordChannel("123"), t)
		Check(err, nil, t)
	}

	g := ambiguousGuild()
	ch, err := ParseChannel("general", g)
	Check(ch, DiscordChannel("1"), t)
	Check(err, nil, t)
	ch, err = ParseChannel("#GENERAL", g)
	Check(ch, DiscordChannel("1"), t)
	Check(err, nil, t)
	_, err = ParseChannel("general", nil)
	Check(err, errNotChannel, t)
	ch, err = ParseChannel("dup", g)
	Check(ch, ChannelEmpty, t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dup (2), dup (3)")
}

func TestParseRole(t *testing.T) {
	t.Parallel()
	nilresults := []string{"!!", "akjhdfkj", "<", "<>", "<@&>", "<@&a>", "<#1>", "@a"}
	for _, g := range []*discordgo.Guild{nil, ambiguousGuild()} {
		for _, v := range nilresults {
			r, err := ParseRole(v, g)
			Check(r, RoleEmpty, t)
			assert.Error(t, err, v)
		}
		r, err := ParseRole("", g)
		Check(r, RoleEmpty, t)
		Check(err, nil, t)
		r, err = ParseRole("!", g)
		Check(r, RoleExclusion, t)
		Check(err, nil, t)
		r, err = ParseRole("<@&123>", g)
		Check(r, DiscordRole("123"), t)
		Check(err, nil, t)
	}

	g := ambiguousGuild()
	r, err := ParseRole("@mods", g)
	Check(r, DiscordRole("4"), t)
	Check(err, nil, t)
	_, err = ParseRole("dup", g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could be any of the following")
}

func TestParseUser(t *testing.T) {
	t.Parallel()
	info := MockGuildInfo(t)
	fn := func(s string, expected DiscordUser) {
		t.Helper()
		u, err := ParseUser(s, info)
		require.NoError(t, err, s)
		Check(u, expected, t)
	}
	fn("<@123>", "123")
	fn("<@!123>", "123")
	fn("123", "123")
	fn("user", TestUser)
	fn("@Moderator", TestMod)
	fn("cool nick", TestNick)
	fn("nicknamed", TestNick)

	for _, v := range []string{"", "<@>", "<@a>", "<#123>", "nobody"} {
		u, err := ParseUser(v, info)
		Check(u, UserEmpty, t)
		Check(err, errNotUser, t)
	}
	_, err := ParseUser("user", nil)
	Check(err, errNotUser, t)

	require.NoError(t, info.Bot.DG.State.MemberAdd(mockMember("77", "twin", "")))
	require.NoError(t, info.Bot.DG.State.MemberAdd(mockMember("78", "other", "Twin")))
	_, err = ParseUser("twin", info)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twin (77)")
}

func TestMemberHasRole(t *testing.T) {
	t.Parallel()
	m := mockMember("1", "a", "", "10", "11")
	assert.True(t, MemberHasRole(m, "10"))
	assert.True(t, MemberHasRole(m, "11"))
	assert.False(t, MemberHasRole(m, "12"))
	assert.False(t, MemberHasRole(m, RoleEmpty))
}

func TestGuildMemberPermissions(t *testing.T) {
	t.Parallel()
	g := &discordgo.Guild{
		ID:      "1",
		OwnerID: "2",
		Roles: []*discordgo.Role{
			{ID: "1", Permissions: discordgo.PermissionSendMessages},
			{ID: "10", Permissions: discordgo.PermissionManageMessages},
			{ID: "11", Permissions: discordgo.PermissionAdministrator},
		},
	}
	Check(GuildMemberPermissions(mockMember("2", "owner", ""), g), int64(discordgo.PermissionAll), t)
	Check(GuildMemberPermissions(mockMember("3", "user", ""), g), int64(discordgo.PermissionSendMessages), t)
	Check(GuildMemberPermissions(mockMember("3", "user", "", "10"), g), int64(discordgo.PermissionSendMessages|discordgo.PermissionManageMessages), t)
	perms := GuildMemberPermissions(mockMember("3", "user", "", "11"), g)
	Check(perms&discordgo.PermissionAll, int64(discordgo.PermissionAll), t)
}

func TestIsDiscordError(t *testing.T) {
	t.Parallel()
	err := &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage, Message: "Unknown Message"}}
	assert.True(t, IsDiscordError(err, discordgo.ErrCodeUnknownMessage))
	assert.True(t, IsDiscordError(fmt.Errorf("deleting: %w", err), discordgo.ErrCodeUnknownMessage))
	assert.False(t, IsDiscordError(err, discordgo.ErrCodeMissingPermissions))
	assert.False(t, IsDiscordError(&discordgo.RESTError{}, discordgo.ErrCodeUnknownMessage))
	assert.False(t, IsDiscordError(errors.New("Unknown Message"), discordgo.ErrCodeUnknownMessage))
	assert.False(t, IsDiscordError(nil, discordgo.ErrCodeUnknownMessage))
}

func TestGetMember(t *testing.T) {
	t.Parallel()
	sb := MockSweetieBot(t)
	m, err := sb.DG.GetMember(TestMod, TestServer)
	require.NoError(t, err)
	Check(m.User.Username, "moderator", t)
}

func TestUserHasAnyRole(t *testing.T) {
	t.Parallel()
	sb := MockSweetieBot(t)
	assert.True(t, sb.DG.UserHasAnyRole(TestUser, TestServer, nil))
	assert.True(t, sb.DG.UserHasAnyRole(TestMod, TestServer, map[DiscordRole]bool{TestRoleMod: true}))
	assert.False(t, sb.DG.UserHasAnyRole(TestUser, TestServer, map[DiscordRole]bool{TestRoleMod: true}))
	assert.False(t, sb.DG.UserHasAnyRole(TestMod, TestServer, map[DiscordRole]bool{RoleExclusion: true, TestRoleMod: true}))
	assert.True(t, sb.DG.UserHasAnyRole(TestUser, TestServer, map[DiscordRole]bool{RoleExclusion: true, TestRoleMod: true}))
}

func TestUserPermissions(t *testing.T) {
	t.Parallel()
	sb := MockSweetieBot(t)
	perms, err := sb.DG.UserPermissions(TestMod, TestServer)
	require.NoError(t, err)
	Check(perms, int64(discordgo.PermissionSendMessages|discordgo.PermissionManageMessages), t)
	perms, err = sb.DG.UserPermissions(TestOwnerServer, TestServer)
	require.NoError(t, err)
	Check(perms, int64(discordgo.PermissionAll), t)

	_, err = sb.DG.UserPermissions(TestUser, "42")
	assert.Error(t, err)
}
