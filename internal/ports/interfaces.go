package ports

import (
	"context"
	"io"
	"iter"

	"discord-chat-exporter/internal/domain"
)

// DiscordClient определяет публичный интерфейс клиента удаленного API,
// которым пользуются сервисы.
type DiscordClient interface {
	GetUserGuilds(ctx context.Context) iter.Seq2[domain.Guild, error]
	GetGuild(ctx context.Context, guildID domain.Snowflake) (domain.Guild, error)
	GetGuildChannels(ctx context.Context, guildID domain.Snowflake) ([]domain.Channel, error)
	GetGuildThreads(ctx context.Context, guildID domain.Snowflake, includeArchived bool) iter.Seq2[domain.Channel, error]
	GetChannel(ctx context.Context, channelID domain.Snowflake) (domain.Channel, error)
	GetMessages(ctx context.Context, channelID, after, before domain.Snowflake, progress func(fraction float64)) iter.Seq2[domain.Message, error]
	ID() string
}

// MessageWriter принимает сообщения одного канала в хронологическом порядке.
type MessageWriter interface {
	Write(msg domain.Message) error
	// Close завершает запись. После Close писать нельзя.
	Close() error
}

// MessageSink открывает писателей для выгружаемых каналов.
type MessageSink interface {
	Open(ctx context.Context, guild domain.Guild, channel domain.Channel) (MessageWriter, error)
	// Locate возвращает источник ранее выгруженных данных канала.
	Locate(guild domain.Guild, channel domain.Channel) DataSource
}

// DataSource определяет интерфейс для чтения ранее выгруженных данных.
type DataSource interface {
	// Open открывает данные для чтения. Если данных нет, возвращается ошибка,
	// удовлетворяющая errors.Is(err, fs.ErrNotExist).
	Open() (io.ReadCloser, error)
}

// Parser определяет интерфейс для разбора ранее выгруженных сообщений.
type Parser interface {
	// LastMessageID возвращает идентификатор последнего сообщения в данных
	// или ноль, если сообщений нет.
	LastMessageID(r io.Reader) (domain.Snowflake, error)
}

// Exporter определяет интерфейс для вывода списков серверов и каналов.
type Exporter interface {
	ExportGuilds(guilds []domain.Guild) error
	ExportChannels(channels []domain.ChannelNode) error
}
