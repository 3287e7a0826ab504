package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"discord-chat-exporter/internal/discord"
	"discord-chat-exporter/internal/domain"
)

var testGuild = domain.Guild{ID: 100, Name: "guild"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textChannel(id domain.Snowflake, lastMessageID domain.Snowflake) domain.Channel {
	return domain.Channel{
		ID:            id,
		Kind:          domain.ChannelKindGuildTextChat,
		GuildID:       testGuild.ID,
		Name:          "channel-" + id.String(),
		LastMessageID: lastMessageID,
	}
}

func messages(channelID domain.Snowflake, ids ...domain.Snowflake) []domain.Message {
	out := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Message{ID: id, ChannelID: channelID, Timestamp: id.Time()})
	}
	return out
}

func absentErr(status int) error {
	return &discord.RequestError{Kind: discord.ErrorKindForbidden, Path: "channels/x", StatusCode: status}
}

func TestExportService_Export_Success(t *testing.T) {
	ctx := context.Background()
	client := new(mockClient)
	sink := newMemorySink()

	client.On("GetChannel", mock.Anything, domain.Snowflake(1)).Return(textChannel(1, 30), nil)
	client.On("GetChannel", mock.Anything, domain.Snowflake(2)).Return(textChannel(2, 40), nil)
	client.On("GetGuild", mock.Anything, testGuild.ID).Return(testGuild, nil)
	client.On("GetMessages", mock.Anything, domain.Snowflake(1), domain.Snowflake(0), domain.Snowflake(0)).
		Return(seqOf(messages(1, 10, 20, 30), nil))
	client.On("GetMessages", mock.Anything, domain.Snowflake(2), domain.Snowflake(0), domain.Snowflake(0)).
		Return(seqOf(messages(2, 40), nil))

	service := NewExportService(client, sink, WithParallel(2), WithLogger(discardLogger()))

	results, err := service.Export(ctx, ExportRequest{ChannelIDs: []domain.Snowflake{1, 2, 1}})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, domain.Snowflake(1), results[0].ChannelID)
	assert.Equal(t, 3, results[0].Messages)
	assert.False(t, results[0].Skipped)
	assert.Equal(t, 1, results[1].Messages)

	assert.Len(t, sink.Messages(1), 3)
	assert.Equal(t, domain.Snowflake(30), sink.Messages(1)[2].ID)
	assert.True(t, sink.Closed(1))
	assert.True(t, sink.Closed(2))

	client.AssertNumberOfCalls(t, "GetChannel", 2)
	client.AssertExpectations(t)
}

func TestExportService_Export_Empty(t *testing.T) {
	client := new(mockClient)
	service := NewExportService(client, newMemorySink())

	results, err := service.Export(context.Background(), ExportRequest{})
	require.NoError(t, err)
	assert.Nil(t, results)
	client.AssertNotCalled(t, "GetChannel", mock.Anything, mock.Anything)
}

func TestExportService_Export_SkipsInaccessibleChannels(t *testing.T) {
	ctx := context.Background()

	t.Run("канал недоступен", func(t *testing.T) {
		client := new(mockClient)
		sink := newMemorySink()
		client.On("GetChannel", mock.Anything, domain.Snowflake(1)).Return(domain.Channel{}, absentErr(403))
		client.On("GetChannel", mock.Anything, domain.Snowflake(2)).Return(textChannel(2, 40), nil)
		client.On("GetGuild", mock.Anything, testGuild.ID).Return(testGuild, nil)
		client.On("GetMessages", mock.Anything, domain.Snowflake(2), domain.Snowflake(0), domain.Snowflake(0)).
			Return(seqOf(messages(2, 40), nil))

		service := NewExportService(client, sink, WithLogger(discardLogger()))
		results, err := service.Export(ctx, ExportRequest{ChannelIDs: []domain.Snowflake{1, 2}})
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.True(t, results[0].Skipped)
		assert.Contains(t, results[0].Reason, "forbidden")
		assert.False(t, results[1].Skipped)
		assert.Len(t, sink.Messages(2), 1)
	})

	t.Run("сообщения недоступны", func(t *testing.T) {
		client := new(mockClient)
		sink := newMemorySink()
		client.On("GetChannel", mock.Anything, domain.Snowflake(1)).Return(textChannel(1, 30), nil)
		client.On("GetGuild", mock.Anything, testGuild.ID).Return(testGuild, nil)
		client.On("GetMessages", mock.Anything, domain.Snowflake(1), domain.Snowflake(0), domain.Snowflake(0)).
			Return(seqOf[domain.Message](nil, absentErr(403)))

		service := NewExportService(client, sink, WithLogger(discardLogger()))
		results, err := service.Export(ctx, ExportRequest{ChannelIDs: []domain.Snowflake{1}})
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.True(t, results[0].Skipped)
		assert.True(t, sink.Closed(1))
	})

	t.Run("категория", func(t *testing.T) {
		client := new(mockClient)
		client.On("GetChannel", mock.Anything, domain.Snowflake(1)).
			Return(domain.Channel{ID: 1, Kind: domain.ChannelKindGuildCategory}, nil)

		service := NewExportService(client, newMemorySink(), WithLogger(discardLogger()))
		results, err := service.Export(ctx, ExportRequest{ChannelIDs: []domain.Snowflake{1}})
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.True(t, results[0].Skipped)
		assert.Equal(t, "channel is a category", results[0].Reason)
	})

	t.Run("в диапазоне нет сообщений", func(t *testing.T) {
		client := new(mockClient)
		client.On("GetChannel", mock.Anything, domain.Snowflake(1)).Return(textChannel(1, 30), nil)
		client.On("GetGuild", mock.Anything, testGuild.ID).Return(testGuild, nil)

		service := NewExportService(client, newMemorySink(), WithLogger(discardLogger()))
		results, err := service.Export(ctx, ExportRequest{ChannelIDs: []domain.Snowflake{1}, After: 50})
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.True(t, results[0].Skipped)
		client.AssertNotCalled(t, "GetMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestExportService_Export_FatalErrorStopsExport(t *testing.T) {
	client := new(mockClient)
	fatal := &discord.RequestError{Kind: discord.ErrorKindFatalAuth, Path: "users/@me", StatusCode: 401}
	client.On("GetChannel", mock.Anything, domain.Snowflake(1)).Return(domain.Channel{}, fatal)

	service := NewExportService(client, newMemorySink(), WithLogger(discardLogger()))
	results, err := service.Export(context.Background(), ExportRequest{ChannelIDs: []domain.Snowflake{1}})

	require.ErrorIs(t, err, discord.ErrInvalidToken)
	assert.Contains(t, err.Error(), "failed to export channel 1")
	assert.Empty(t, results)
}

func TestExportService_Export_OpenError(t *testing.T) {
	client := new(mockClient)
	sink := newMemorySink()
	sink.openErr = errors.New("disk full")
	client.On("GetChannel", mock.Anything, domain.Snowflake(1)).Return(textChannel(1, 30), nil)
	client.On("GetGuild", mock.Anything, testGuild.ID).Return(testGuild, nil)

	service := NewExportService(client, sink, WithLogger(discardLogger()))
	_, err := service.Export(context.Background(), ExportRequest{ChannelIDs: []domain.Snowflake{1}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestExportService_Export_Resume(t *testing.T) {
	client := new(mockClient)
	sink := newMemorySink()
	sink.previous[1] = "previous export"
	parser := new(lastLineParser)
	parser.On("LastMessageID", "previous export").Return(domain.Snowflake(20), nil)

	client.On("GetChannel", mock.Anything, domain.Snowflake(1)).Return(textChannel(1, 30), nil)
	client.On("GetChannel", mock.Anything, domain.Snowflake(2)).Return(textChannel(2, 40), nil)
	client.On("GetGuild", mock.Anything, testGuild.ID).Return(testGuild, nil)
	client.On("GetMessages", mock.Anything, domain.Snowflake(1), domain.Snowflake(20), domain.Snowflake(0)).
		Return(seqOf(messages(1, 30), nil))
	client.On("GetMessages", mock.Anything, domain.Snowflake(2), domain.Snowflake(5), domain.Snowflake(0)).
		Return(seqOf(messages(2, 40), nil))

	service := NewExportService(client, sink, WithResume(parser), WithLogger(discardLogger()))
	results, err := service.Export(context.Background(), ExportRequest{ChannelIDs: []domain.Snowflake{1, 2}, After: 5})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Messages)
	assert.Equal(t, 1, results[1].Messages)
	client.AssertExpectations(t)
	parser.AssertExpectations(t)
}

func TestExportService_Export_RespectsParallelLimit(t *testing.T) {
	client := new(mockClient)
	sink := newMemorySink()

	var running, peak atomic.Int32
	slow := func(yield func(domain.Message, error) bool) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
	}

	ids := []domain.Snowflake{1, 2, 3, 4, 5, 6}
	for _, id := range ids {
		client.On("GetChannel", mock.Anything, id).Return(textChannel(id, 0), nil)
		client.On("GetMessages", mock.Anything, id, domain.Snowflake(0), domain.Snowflake(0)).
			Return(iterFunc(slow))
	}
	client.On("GetGuild", mock.Anything, testGuild.ID).Return(testGuild, nil)

	service := NewExportService(client, sink, WithParallel(2), WithLogger(discardLogger()))
	results, err := service.Export(context.Background(), ExportRequest{ChannelIDs: ids})
	require.NoError(t, err)

	assert.Len(t, results, len(ids))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProgressLogger(t *testing.T) {
	var calls int
	h := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := newProgressLogger(context.Background(), h, domain.Channel{ID: 1}, 0.25)

	for _, f := range []float64{0, 0.1, 0.26, 0.3, 0.8, 1} {
		before := p.next
		p.report(f)
		if p.next != before {
			calls++
		}
	}

	// 0.26 пересекает 0.25, 0.8 — 0.5 и 0.75, 1 — 1.0.
	assert.Equal(t, 3, calls)
}

func TestExportService_Export_CachesGuilds(t *testing.T) {
	ctx := context.Background()
	client := new(mockClient)
	sink := newMemorySink()

	client.On("GetChannel", mock.Anything, domain.Snowflake(1)).Return(textChannel(1, 10), nil)
	client.On("GetChannel", mock.Anything, domain.Snowflake(2)).Return(textChannel(2, 20), nil)
	client.On("GetGuild", mock.Anything, testGuild.ID).Return(testGuild, nil)
	client.On("GetMessages", mock.Anything, domain.Snowflake(1), domain.Snowflake(0), domain.Snowflake(0)).
		Return(seqOf(messages(1, 10), nil))
	client.On("GetMessages", mock.Anything, domain.Snowflake(2), domain.Snowflake(0), domain.Snowflake(0)).
		Return(seqOf(messages(2, 20), nil))

	service := NewExportService(client, sink, WithGuildCacheTTL(time.Hour), WithLogger(discardLogger()))

	_, err := service.Export(ctx, ExportRequest{ChannelIDs: []domain.Snowflake{1}})
	require.NoError(t, err)
	_, err = service.Export(ctx, ExportRequest{ChannelIDs: []domain.Snowflake{2}})
	require.NoError(t, err)

	client.AssertNumberOfCalls(t, "GetGuild", 1)
}
