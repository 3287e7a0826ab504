package discord

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-chat-exporter/internal/discord/discordtest"
	"discord-chat-exporter/internal/domain"
)

func TestNormalizeChannels(t *testing.T) {
	raw := []channelJSON{
		{ID: 23, Type: domain.ChannelKindGuildTextChat, Name: "orphan", Position: 10, ParentID: 99},
		{ID: 10, Type: domain.ChannelKindGuildCategory, Name: "Second", Position: 5},
		{ID: 21, Type: domain.ChannelKindGuildTextChat, Name: "b", Position: 3, ParentID: 11},
		{ID: 20, Type: domain.ChannelKindGuildTextChat, Name: "a", Position: 3, ParentID: 10},
		{ID: 24, Type: domain.ChannelKindGuildTextChat, Name: "nested", Position: 7, ParentID: 20},
		{ID: 11, Type: domain.ChannelKindGuildCategory, Name: "First", Position: 1},
		{ID: 22, Type: domain.ChannelKindGuildVoiceChat, Name: "voice", Position: 0, ParentID: 11},
	}

	channels := normalizeChannels(raw)

	// Сортировка по (позиция, id).
	assert.Equal(t, []domain.Snowflake{22, 11, 20, 21, 10, 24, 23}, channelIDs(channels))

	byID := make(map[domain.Snowflake]domain.Channel, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}

	t.Run("категории нумеруются с единицы", func(t *testing.T) {
		assert.Equal(t, 1, byID[11].Position)
		assert.Equal(t, 2, byID[10].Position)
	})

	t.Run("остальные каналы нумеруются сквозь без разрывов", func(t *testing.T) {
		var positions []int
		for _, ch := range channels {
			if !ch.Kind.IsCategory() {
				positions = append(positions, ch.Position)
			}
		}
		assert.Equal(t, []int{0, 1, 2, 3, 4}, positions)
	})

	t.Run("родители разрешаются через категории", func(t *testing.T) {
		require.NotNil(t, byID[22].Parent)
		assert.Equal(t, "First", byID[22].Parent.Name)
		require.NotNil(t, byID[20].Parent)
		assert.Equal(t, "Second", byID[20].Parent.Name)
		require.NotNil(t, byID[21].Parent)
		assert.Equal(t, domain.Snowflake(11), byID[21].Parent.ID)
	})

	t.Run("неразрешенные родители", func(t *testing.T) {
		assert.False(t, byID[23].IsParentResolved())
		assert.Equal(t, domain.Snowflake(99), byID[23].ParentID)
		assert.Equal(t, "Unknown", byID[23].ParentNameWithFallback())

		// Родитель, не являющийся категорией, не разрешается.
		assert.False(t, byID[24].IsParentResolved())
		assert.Equal(t, domain.Snowflake(20), byID[24].ParentID)
	})

	t.Run("входной срез не меняется", func(t *testing.T) {
		assert.Equal(t, domain.Snowflake(23), raw[0].ID)
	})
}

func TestNormalizeChannels_Empty(t *testing.T) {
	assert.Empty(t, normalizeChannels(nil))
}

func TestClient_GetGuildChannels(t *testing.T) {
	ctx := context.Background()

	t.Run("каналы сервера нормализуются", func(t *testing.T) {
		srv := newTestServer(t, discordtest.BotToken)
		srv.AddChannels(100,
			discordtest.Channel{ID: 30, Type: domain.ChannelKindGuildTextChat, Name: "random", Position: 40, ParentID: 10},
			discordtest.Channel{ID: 10, Type: domain.ChannelKindGuildCategory, Name: "Text", Position: 2},
			discordtest.Channel{ID: 31, Type: domain.ChannelKindGuildTextChat, Name: "general", Position: 7, ParentID: 10},
		)
		client, _ := newTestClient(t, srv)

		channels, err := client.GetGuildChannels(ctx, 100)
		require.NoError(t, err)

		assert.Equal(t, []domain.Snowflake{10, 31, 30}, channelIDs(channels))
		assert.Equal(t, 0, channels[1].Position)
		assert.Equal(t, 1, channels[2].Position)
		assert.Equal(t, "Text", channels[2].ParentNameWithFallback())
		assert.Equal(t, domain.Snowflake(100), channels[2].GuildID)
	})

	t.Run("личные переписки", func(t *testing.T) {
		srv := newTestServer(t, discordtest.UserToken)
		srv.AddDMChannels(
			discordtest.Channel{ID: 51, Type: domain.ChannelKindDirectTextChat, Recipients: []discordtest.User{{ID: 2, Username: "alice"}}},
			discordtest.Channel{ID: 50, Type: domain.ChannelKindDirectGroupTextChat, Name: "friends"},
			discordtest.Channel{ID: 52, Type: domain.ChannelKindDirectGroupTextChat, Recipients: []discordtest.User{
				{ID: 3, Username: "bob", GlobalName: "Bob"},
				{ID: 4, Username: "carol"},
			}},
		)
		client, _ := newTestClient(t, srv)

		channels, err := client.GetGuildChannels(ctx, domain.DirectMessages.ID)
		require.NoError(t, err)

		require.Len(t, channels, 3)
		assert.Equal(t, []domain.Snowflake{51, 50, 52}, channelIDs(channels))
		assert.Equal(t, "alice", channels[0].Name)
		assert.Equal(t, "friends", channels[1].Name)
		assert.Equal(t, "Bob, carol", channels[2].Name)
		assert.Equal(t, 2, channels[2].Position)
		assert.Equal(t, "Private", channels[0].ParentNameWithFallback())
	})

	t.Run("сервер недоступен", func(t *testing.T) {
		srv := newTestServer(t, discordtest.BotToken)
		client, _ := newTestClient(t, srv)

		_, err := client.GetGuildChannels(ctx, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
