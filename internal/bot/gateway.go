package bot

import (
	"honeypot-guard/internal/sweeper"
	"honeypot-guard/internal/utils"

	"github.com/bwmarrin/discordgo"
)

// discordGateway adapts the discordgo session to the sweeper's Gateway
// surface. Only text and announcement channels are reported.
type discordGateway struct {
	session *discordgo.Session
}

func (g *discordGateway) Channels(guildID string) ([]sweeper.Channel, error) {
	channels, err := g.session.GuildChannels(guildID)
	if err != nil {
		return nil, err
	}

	result := make([]sweeper.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel == nil {
			continue
		}
		if channel.Type != discordgo.ChannelTypeGuildText && channel.Type != discordgo.ChannelTypeGuildNews {
			continue
		}
		result = append(result, sweeper.Channel{ID: channel.ID, Name: channel.Name})
	}
	return result, nil
}

func (g *discordGateway) Access(channelID string) (bool, bool) {
	if g.session.State == nil || g.session.State.User == nil {
		return false, false
	}
	botID := g.session.State.User.ID
	perms, err := g.session.State.UserChannelPermissions(botID, channelID)
	if err != nil {
		perms, err = g.session.UserChannelPermissions(botID, channelID)
		if err != nil {
			return false, false
		}
	}
	return perms&discordgo.PermissionViewChannel != 0, perms&discordgo.PermissionManageMessages != 0
}

func (g *discordGateway) Recent(channelID string, limit int) ([]sweeper.Message, error) {
	messages, err := g.session.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, err
	}

	result := make([]sweeper.Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil || msg.Author == nil {
			continue
		}
		result = append(result, sweeper.Message{
			ID:       msg.ID,
			AuthorID: msg.Author.ID,
			Content:  msg.Content,
			PostedAt: msg.Timestamp,
		})
	}
	return result, nil
}

func (g *discordGateway) Delete(channelID, messageID string) error {
	return g.session.ChannelMessageDelete(channelID, messageID)
}

// firstDomain extracts the normalized host of the first URL in content, for
// diagnostic logging only.
func firstDomain(content string) string {
	urls := utils.ExtractURLs(content)
	if len(urls) == 0 {
		return ""
	}
	_, domain, err := utils.NormalizeURL(urls[0])
	if err != nil {
		return ""
	}
	return domain
}
