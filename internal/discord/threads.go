package discord

import (
	"context"
	"iter"
	"net/url"
	"strconv"

	"discord-chat-exporter/internal/domain"
)

// GetGuildThreads возвращает ветки сервера: активные и, если includeArchived, архивные.
//
// Способ обхода зависит от типа токена, но форма результата одна: поток веток
// с заполненным родителем (возможно, неразрешенным) и признаком архивности.
// Недоступность отдельного канала не прерывает обход остальных.
func (c *Client) GetGuildThreads(ctx context.Context, guildID domain.Snowflake, includeArchived bool) iter.Seq2[domain.Channel, error] {
	return func(yield func(domain.Channel, error) bool) {
		if guildID == domain.DirectMessages.ID {
			return
		}

		kind, err := c.ResolveTokenKind(ctx)
		if err != nil {
			yield(domain.Channel{}, err)
			return
		}

		channels, err := c.GetGuildChannels(ctx, guildID)
		if err != nil {
			yield(domain.Channel{}, err)
			return
		}

		// Категории не содержат веток.
		parents := make([]domain.Channel, 0, len(channels))
		for _, ch := range channels {
			if !ch.Kind.IsCategory() {
				parents = append(parents, ch)
			}
		}

		c.log.DebugContext(ctx, "Discovering guild threads",
			"guild_id", guildID,
			"token_kind", kind,
			"channels", len(parents),
			"include_archived", includeArchived,
		)

		if kind == TokenKindUser {
			c.searchThreads(ctx, parents, includeArchived, yield)
			return
		}
		c.listThreads(ctx, guildID, parents, includeArchived, yield)
	}
}

// searchThreads — обход для пользовательского токена: такие токены видят ветки
// только через поиск по каналу со смещением.
func (c *Client) searchThreads(ctx context.Context, parents []domain.Channel, includeArchived bool, yield func(domain.Channel, error) bool) {
	passes := []bool{false}
	if includeArchived {
		passes = append(passes, true)
	}

	for _, archived := range passes {
		for i := range parents {
			if !c.searchChannelThreads(ctx, &parents[i], archived, yield) {
				return
			}
		}
	}
}

// searchChannelThreads листает поиск веток одного канала. Возвращает false, если обход
// нужно прекратить (ошибка или отказ потребителя).
func (c *Client) searchChannelThreads(ctx context.Context, parent *domain.Channel, archived bool, yield func(domain.Channel, error) bool) bool {
	path := "channels/" + parent.ID.String() + "/threads/search"
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			yield(domain.Channel{}, err)
			return false
		}

		query := url.Values{}
		query.Set("archived", strconv.FormatBool(archived))
		query.Set("offset", strconv.Itoa(offset))

		var resp threadListJSON
		// Отсутствие ответа — канал без доступных веток.
		found, err := c.tryGetJSON(ctx, path, query, &resp)
		if err != nil {
			yield(domain.Channel{}, err)
			return false
		}
		if !found {
			return true
		}

		for _, t := range resp.Threads {
			if !yield(t.toChannel(parent, 0), nil) {
				return false
			}
		}

		offset += len(resp.Threads)
		if !resp.HasMore || len(resp.Threads) == 0 {
			return true
		}
	}
}

// listThreads — обход для токена бота: активные ветки одним запросом на весь сервер,
// архивные — по двум спискам (публичные и приватные) на каждый канал.
func (c *Client) listThreads(ctx context.Context, guildID domain.Snowflake, parents []domain.Channel, includeArchived bool, yield func(domain.Channel, error) bool) {
	parentsByID := make(map[domain.Snowflake]*domain.Channel, len(parents))
	for i := range parents {
		parentsByID[parents[i].ID] = &parents[i]
	}

	var active threadListJSON
	if err := c.getJSON(ctx, "guilds/"+guildID.String()+"/threads/active", nil, &active); err != nil {
		yield(domain.Channel{}, err)
		return
	}
	for _, t := range active.Threads {
		if !yield(t.toChannel(parentsByID[t.ParentID], 0), nil) {
			return
		}
	}

	if !includeArchived {
		return
	}

	for i := range parents {
		parent := &parents[i]
		for _, visibility := range []string{"public", "private"} {
			if err := ctx.Err(); err != nil {
				yield(domain.Channel{}, err)
				return
			}

			var archived threadListJSON
			// Любой из списков может отсутствовать для канала; это не ошибка.
			found, err := c.tryGetJSON(ctx, "channels/"+parent.ID.String()+"/threads/archived/"+visibility, nil, &archived)
			if err != nil {
				yield(domain.Channel{}, err)
				return
			}
			if !found {
				continue
			}

			for _, t := range archived.Threads {
				if !yield(t.toChannel(parent, 0), nil) {
					return
				}
			}
		}
	}
}
