package automodmodule

import (
	"testing"
	"time"

	bot "github.com/erikmcclure/sweetiemod/sweetiebot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T) (*AutoModModule, *bot.GuildInfo, *mockActions, *mockAudit) {
	info := newTestGuild(t)
	actions := newMockActions()
	audit := &mockAudit{up: true}
	w := New(NewMemRateStore(100, time.Minute), actions, audit, discardLogger())
	info.RegisterModule(w)
	return w, info, actions, audit
}

func TestModuleRemovesCaps(t *testing.T) {
	t.Parallel()
	w, info, actions, audit := newTestModule(t)
	w.OnMessageCreate(info, testMessage("1", testUser, "HELLO WORLD!!"))
	actions.Check(t,
		MockCall{"delete", testChannel, "1"},
		MockCall{"notice", testChannel, "<@" + testUser + ">, your message was removed for excessive capital letters.", 5 * time.Second},
	)
	require.Len(t, audit.records, 1)
	assert.Equal(t, "caps", audit.records[0].Rule)
	assert.Equal(t, testGuild, audit.records[0].Guild)
}

func TestModuleIgnoresCleanMessages(t *testing.T) {
	t.Parallel()
	w, info, actions, _ := newTestModule(t)
	w.OnMessageCreate(info, testMessage("1", testUser, "Hi there"))
	assert.False(t, w.OnCommand(info, testMessage("2", testUser, "!help")))
	actions.Check(t)
}

func TestModuleBypass(t *testing.T) {
	t.Parallel()
	w, info, actions, _ := newTestModule(t)
	for _, user := range []string{testMod, testOwner, testManager} {
		w.OnMessageCreate(info, testMessage("1", user, "look https://evil.example"))
	}
	actions.Check(t)

	w.OnMessageCreate(info, testMessage("2", testUser, "look https://evil.example"))
	actions.Check(t, MockCall{"delete", testChannel, "2"}, MockCall{"notice", testChannel, MockAny{}, MockAny{}})
}

func TestModuleModsStillHitBannedWords(t *testing.T) {
	t.Parallel()
	w, info, actions, audit := newTestModule(t)
	info.Config.AutoMod.BannedWords["darn"] = true
	w.OnMessageCreate(info, testMessage("3", testMod, "oh DARN it https://evil.example"))
	actions.Check(t, MockCall{"delete", testChannel, "3"}, MockCall{"notice", testChannel, MockAny{}, MockAny{}})
	require.Len(t, audit.records, 1)
	assert.Equal(t, "bannedword", audit.records[0].Rule)
	assert.Equal(t, "darn", audit.records[0].Detail)
}

func TestModuleSpam(t *testing.T) {
	t.Parallel()
	w, info, actions, _ := newTestModule(t)
	info.Config.AutoMod.SpamMessages = 3
	for i := 0; i < 2; i++ {
		w.OnMessageCreate(info, testMessage("1", testUser, "hi"))
	}
	actions.Check(t)
	w.OnMessageCreate(info, testMessage("3", testUser, "hi"))
	actions.Check(t,
		MockCall{"delete", testChannel, "3"},
		MockCall{"notice", testChannel, MockAny{}, MockAny{}},
		MockCall{"timeout", testGuild, testUser, 5 * time.Minute},
		MockCall{"send", testModChannel, MockAny{}},
	)
}

func TestModuleEditsDontCountAsSpam(t *testing.T) {
	t.Parallel()
	w, info, actions, _ := newTestModule(t)
	info.Config.AutoMod.SpamMessages = 2
	for i := 0; i < 5; i++ {
		w.OnMessageUpdate(info, testMessage("1", testUser, "hi"))
	}
	actions.Check(t)

	w.OnMessageUpdate(info, testMessage("1", testUser, "NOW IT IS LOUD"))
	actions.Check(t, MockCall{"delete", testChannel, "1"}, MockCall{"notice", testChannel, MockAny{}, MockAny{}})
}

func TestModuleBlocksCommands(t *testing.T) {
	t.Parallel()
	w, info, actions, _ := newTestModule(t)
	assert.True(t, w.OnCommand(info, testMessage("1", testUser, "!HELP ME RIGHT NOW")))
	actions.Check(t, MockCall{"delete", testChannel, "1"}, MockCall{"notice", testChannel, MockAny{}, MockAny{}})
}

func TestModuleIgnoresSelf(t *testing.T) {
	t.Parallel()
	w, info, actions, _ := newTestModule(t)
	w.OnMessageCreate(info, testMessage("1", testBotID, "HELLO WORLD!!"))
	actions.Check(t)
}

func TestModuleCommandsRegistered(t *testing.T) {
	t.Parallel()
	_, info, _, _ := newTestModule(t)
	for _, name := range []string{"automod", "setcaps", "setspam", "addbannedword", "removebannedword", "bannedwords", "allowlink", "disallowlink", "modlog"} {
		c, ok := info.GetCommand(name)
		require.True(t, ok, name)
		assert.True(t, c.Info().Sensitive, name)
		assert.NotNil(t, c.Usage(info), name)
	}
}
