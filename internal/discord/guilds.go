package discord

import (
	"context"
	"iter"
	"net/url"

	"discord-chat-exporter/internal/domain"
)

// guildPageSize — размер страницы списка серверов.
const guildPageSize = 100

// GetUserGuilds возвращает серверы, доступные по токену. Первым всегда идет
// псевдо-сервер личных сообщений.
func (c *Client) GetUserGuilds(ctx context.Context) iter.Seq2[domain.Guild, error] {
	return func(yield func(domain.Guild, error) bool) {
		if !yield(domain.DirectMessages, nil) {
			return
		}

		guilds := paginate(ctx, c, pager[guildJSON, domain.Guild]{
			path:        "users/@me/guilds",
			limit:       guildPageSize,
			termination: stopOnEmptyPage,
			id:          func(g guildJSON) domain.Snowflake { return g.ID },
			convert:     guildJSON.toDomain,
		})
		for g, err := range guilds {
			if !yield(g, err) || err != nil {
				return
			}
		}
	}
}

// GetGuild возвращает сервер по идентификатору.
func (c *Client) GetGuild(ctx context.Context, guildID domain.Snowflake) (domain.Guild, error) {
	if guildID == domain.DirectMessages.ID {
		return domain.DirectMessages, nil
	}

	var j guildJSON
	if err := c.getJSON(ctx, "guilds/"+guildID.String(), nil, &j); err != nil {
		return domain.Guild{}, err
	}
	return j.toDomain(), nil
}

// GetGuildRoles возвращает роли сервера.
func (c *Client) GetGuildRoles(ctx context.Context, guildID domain.Snowflake) ([]domain.Role, error) {
	if guildID == domain.DirectMessages.ID {
		return nil, nil
	}

	var raw []roleJSON
	if err := c.getJSON(ctx, "guilds/"+guildID.String()+"/roles", nil, &raw); err != nil {
		return nil, err
	}

	roles := make([]domain.Role, 0, len(raw))
	for _, r := range raw {
		roles = append(roles, r.toDomain())
	}
	return roles, nil
}

// TryGetGuildMember возвращает участника сервера или nil, если он недоступен.
func (c *Client) TryGetGuildMember(ctx context.Context, guildID, memberID domain.Snowflake) (*domain.Member, error) {
	if guildID == domain.DirectMessages.ID {
		return nil, nil
	}

	var j memberJSON
	found, err := c.tryGetJSON(ctx, "guilds/"+guildID.String()+"/members/"+memberID.String(), nil, &j)
	if err != nil || !found {
		return nil, err
	}
	m := j.toDomain(guildID)
	return &m, nil
}

// TryGetUser возвращает пользователя или nil, если он недоступен.
func (c *Client) TryGetUser(ctx context.Context, userID domain.Snowflake) (*domain.User, error) {
	var j userJSON
	found, err := c.tryGetJSON(ctx, "users/"+userID.String(), nil, &j)
	if err != nil || !found {
		return nil, err
	}
	u := j.toDomain()
	return &u, nil
}

// TryGetInvite возвращает приглашение по коду или nil, если оно недействительно.
func (c *Client) TryGetInvite(ctx context.Context, code string) (*domain.Invite, error) {
	var j inviteJSON
	found, err := c.tryGetJSON(ctx, "invites/"+url.PathEscape(code), nil, &j)
	if err != nil || !found {
		return nil, err
	}
	invite := j.toDomain()
	return &invite, nil
}
