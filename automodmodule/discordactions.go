package automodmodule

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	bot "github.com/erikmcclure/sweetiemod/sweetiebot"
	"github.com/lmittmann/tint"
)

// DiscordActions performs enforcement through the discord REST API
type DiscordActions struct {
	Session *bot.DiscordGoSession
	Log     *slog.Logger
}

// DeleteMessage removes a message. A message that is already gone counts as deleted.
func (a *DiscordActions) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := a.Session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	if bot.IsDiscordError(err, discordgo.ErrCodeUnknownMessage) {
		return nil
	}
	return err
}

func (a *DiscordActions) TimeoutUser(ctx context.Context, guildID, userID string, d time.Duration) error {
	until := time.Now().Add(d)
	return a.Session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx))
}

func (a *DiscordActions) SendTransientNotice(ctx context.Context, channelID, text string, display time.Duration) error {
	msg, err := a.Session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	time.AfterFunc(display, func() {
		err := a.Session.ChannelMessageDelete(channelID, msg.ID)
		if err != nil && !bot.IsDiscordError(err, discordgo.ErrCodeUnknownMessage) {
			actionFailures.WithLabelValues("notice_cleanup").Inc()
			a.Log.Warn("failed to remove automod notice", "channel", channelID, "message", msg.ID, tint.Err(err))
		}
	})
	return nil
}

func (a *DiscordActions) SendMessage(ctx context.Context, channelID, text string) error {
	_, err := a.Session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}
