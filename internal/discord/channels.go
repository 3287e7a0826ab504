package discord

import (
	"context"

	"discord-chat-exporter/internal/domain"
)

// GetGuildChannels возвращает каналы сервера с восстановленной иерархией и
// нормализованными позициями. Для псевдо-сервера личных сообщений возвращаются
// личные и групповые переписки в порядке, заданном сервисом.
func (c *Client) GetGuildChannels(ctx context.Context, guildID domain.Snowflake) ([]domain.Channel, error) {
	if guildID == domain.DirectMessages.ID {
		var raw []channelJSON
		if err := c.getJSON(ctx, "users/@me/channels", nil, &raw); err != nil {
			return nil, err
		}

		channels := make([]domain.Channel, 0, len(raw))
		for i, j := range raw {
			channels = append(channels, j.toChannel(nil, i))
		}
		return channels, nil
	}

	var raw []channelJSON
	if err := c.getJSON(ctx, "guilds/"+guildID.String()+"/channels", nil, &raw); err != nil {
		return nil, err
	}

	channels := normalizeChannels(raw)
	c.log.DebugContext(ctx, "Guild channels normalized", "guild_id", guildID, "count", len(channels))
	return channels, nil
}

// GetChannel возвращает канал вместе с его родителем.
// Родитель может быть недоступен, даже когда сам канал доступен; в этом случае
// канал возвращается с неразрешенным родителем. Ошибка самого канала возвращается как есть.
func (c *Client) GetChannel(ctx context.Context, channelID domain.Snowflake) (domain.Channel, error) {
	var j channelJSON
	if err := c.getJSON(ctx, "channels/"+channelID.String(), nil, &j); err != nil {
		return domain.Channel{}, err
	}

	var parent *domain.Channel
	if !j.ParentID.IsZero() {
		p, err := c.GetChannel(ctx, j.ParentID)
		switch {
		case err == nil:
			parent = &p
		case IsAbsent(err):
			c.log.DebugContext(ctx, "Parent channel is inaccessible, leaving it unresolved",
				"channel_id", channelID,
				"parent_id", j.ParentID,
				"error", err,
			)
		default:
			return domain.Channel{}, err
		}
	}

	return j.toChannel(parent, j.Position), nil
}
