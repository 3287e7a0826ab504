package discord

import (
	"context"
	"iter"
	"net/url"

	"discord-chat-exporter/internal/domain"
)

// reactionPageSize — размер страницы пользователей реакции. Страница короче него — последняя.
const reactionPageSize = 100

// GetMessageReactions возвращает пользователей, поставивших реакцию emoji на сообщение.
func (c *Client) GetMessageReactions(ctx context.Context, channelID, messageID domain.Snowflake, emoji domain.Emoji) iter.Seq2[domain.User, error] {
	path := "channels/" + channelID.String() +
		"/messages/" + messageID.String() +
		"/reactions/" + url.PathEscape(emoji.ReactionName())

	return paginate(ctx, c, pager[userJSON, domain.User]{
		path:        path,
		limit:       reactionPageSize,
		termination: stopOnShortPage,
		id:          func(u userJSON) domain.Snowflake { return u.ID },
		convert:     userJSON.toDomain,
	})
}
