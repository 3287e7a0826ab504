package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"discord-chat-exporter/internal/domain"
	"discord-chat-exporter/internal/ports"
)

// ThreadInclusion задает, какие ветки включать в список каналов.
type ThreadInclusion int

const (
	// ThreadsNone — ветки не запрашиваются.
	ThreadsNone ThreadInclusion = iota
	// ThreadsActive — только активные ветки.
	ThreadsActive
	// ThreadsAll — активные и архивные ветки.
	ThreadsAll
)

// ParseThreadInclusion разбирает значение флага: none, active или all.
func ParseThreadInclusion(s string) (ThreadInclusion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ThreadsNone, nil
	case "active":
		return ThreadsActive, nil
	case "all":
		return ThreadsAll, nil
	default:
		return ThreadsNone, fmt.Errorf("unknown thread inclusion %q (expected none, active or all)", s)
	}
}

// ChannelFilter задает, какие каналы попадают в список.
type ChannelFilter struct {
	IncludeVoice bool
	Threads      ThreadInclusion
}

// ChannelService строит списки серверов и каналов для вывода.
type ChannelService struct {
	client ports.DiscordClient
	log    *slog.Logger
}

// NewChannelService создает новый экземпляр ChannelService.
func NewChannelService(client ports.DiscordClient, log *slog.Logger) *ChannelService {
	if log == nil {
		log = slog.Default()
	}
	return &ChannelService{client: client, log: log}
}

// ListGuilds возвращает все доступные серверы; псевдо-сервер личных сообщений идет первым.
func (s *ChannelService) ListGuilds(ctx context.Context) ([]domain.Guild, error) {
	var guilds []domain.Guild
	for g, err := range s.client.GetUserGuilds(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list guilds: %w", err)
		}
		guilds = append(guilds, g)
	}

	s.log.DebugContext(ctx, "Guilds listed", "count", len(guilds))
	return guilds, nil
}

// ListChannels возвращает каналы сервера без категорий, отсортированные для вывода,
// с ветками, если filter их запрашивает. Личные переписки сортируются по свежести.
func (s *ChannelService) ListChannels(ctx context.Context, guildID domain.Snowflake, filter ChannelFilter) ([]domain.ChannelNode, error) {
	channels, err := s.client.GetGuildChannels(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channels of guild %s: %w", guildID, err)
	}

	channels = slices.DeleteFunc(channels, func(c domain.Channel) bool {
		return c.Kind.IsCategory() || (!filter.IncludeVoice && c.Kind.IsVoice())
	})

	if guildID == domain.DirectMessages.ID {
		slices.SortStableFunc(channels, func(a, b domain.Channel) int {
			return cmp.Compare(b.LastMessageID, a.LastMessageID)
		})
	} else {
		slices.SortStableFunc(channels, compareForListing)
	}

	nodes := make([]domain.ChannelNode, 0, len(channels))
	index := make(map[domain.Snowflake]int, len(channels))
	for i, ch := range channels {
		nodes = append(nodes, domain.ChannelNode{Channel: ch})
		index[ch.ID] = i
	}

	if filter.Threads == ThreadsNone || guildID == domain.DirectMessages.ID {
		return nodes, nil
	}

	threadCount := 0
	for thread, err := range s.client.GetGuildThreads(ctx, guildID, filter.Threads == ThreadsAll) {
		if err != nil {
			return nil, fmt.Errorf("failed to get threads of guild %s: %w", guildID, err)
		}

		i, ok := index[thread.ParentID]
		if !ok {
			s.log.DebugContext(ctx, "Thread parent is not listed, skipping", "thread_id", thread.ID, "parent_id", thread.ParentID)
			continue
		}
		nodes[i].Threads = append(nodes[i].Threads, thread)
		threadCount++
	}

	for i := range nodes {
		slices.SortStableFunc(nodes[i].Threads, func(a, b domain.Channel) int {
			return cmp.Compare(a.Name, b.Name)
		})
	}

	s.log.DebugContext(ctx, "Channels listed", "guild_id", guildID, "channels", len(nodes), "threads", threadCount)
	return nodes, nil
}

// compareForListing упорядочивает каналы по позиции категории, затем по имени.
func compareForListing(a, b domain.Channel) int {
	if c := cmp.Compare(parentPosition(a), parentPosition(b)); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

func parentPosition(c domain.Channel) int {
	if c.Parent == nil {
		return -1
	}
	return c.Parent.Position
}
