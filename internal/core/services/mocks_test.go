package services

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"iter"
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"

	"discord-chat-exporter/internal/domain"
	"discord-chat-exporter/internal/ports"
)

// mockClient — это мок для интерфейса ports.DiscordClient.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) GetUserGuilds(ctx context.Context) iter.Seq2[domain.Guild, error] {
	args := m.Called(ctx)
	return args.Get(0).(iter.Seq2[domain.Guild, error])
}

func (m *mockClient) GetGuild(ctx context.Context, guildID domain.Snowflake) (domain.Guild, error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).(domain.Guild), args.Error(1)
}

func (m *mockClient) GetGuildChannels(ctx context.Context, guildID domain.Snowflake) ([]domain.Channel, error) {
	args := m.Called(ctx, guildID)
	res, _ := args.Get(0).([]domain.Channel)
	return res, args.Error(1)
}

func (m *mockClient) GetGuildThreads(ctx context.Context, guildID domain.Snowflake, includeArchived bool) iter.Seq2[domain.Channel, error] {
	args := m.Called(ctx, guildID, includeArchived)
	return args.Get(0).(iter.Seq2[domain.Channel, error])
}

func (m *mockClient) GetChannel(ctx context.Context, channelID domain.Snowflake) (domain.Channel, error) {
	args := m.Called(ctx, channelID)
	return args.Get(0).(domain.Channel), args.Error(1)
}

func (m *mockClient) GetMessages(ctx context.Context, channelID, after, before domain.Snowflake, progress func(float64)) iter.Seq2[domain.Message, error] {
	args := m.Called(ctx, channelID, after, before)
	seq := args.Get(0).(iter.Seq2[domain.Message, error])
	return func(yield func(domain.Message, error) bool) {
		for msg, err := range seq {
			if err == nil && progress != nil {
				progress(1)
			}
			if !yield(msg, err) {
				return
			}
		}
	}
}

func (m *mockClient) ID() string { return "mock-client" }

// seqOf строит последовательность из элементов и необязательной завершающей ошибки.
func seqOf[T any](items []T, tail error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
		if tail != nil {
			var zero T
			yield(zero, tail)
		}
	}
}

// memorySink — потокобезопасный приемник сообщений в памяти.
type memorySink struct {
	mu       sync.Mutex
	written  map[domain.Snowflake][]domain.Message
	closed   map[domain.Snowflake]bool
	previous map[domain.Snowflake]string
	openErr  error
}

func newMemorySink() *memorySink {
	return &memorySink{
		written:  make(map[domain.Snowflake][]domain.Message),
		closed:   make(map[domain.Snowflake]bool),
		previous: make(map[domain.Snowflake]string),
	}
}

func (s *memorySink) Open(_ context.Context, _ domain.Guild, channel domain.Channel) (ports.MessageWriter, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &memoryWriter{sink: s, channelID: channel.ID}, nil
}

func (s *memorySink) Locate(_ domain.Guild, channel domain.Channel) ports.DataSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.previous[channel.ID]
	if !ok {
		return memorySource{}
	}
	return memorySource{data: []byte(data)}
}

// memorySource отдает ранее выгруженные строки; nil-данные означают, что файла нет.
type memorySource struct {
	data []byte
}

func (s memorySource) Open() (io.ReadCloser, error) {
	if s.data == nil {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *memorySink) Messages(channelID domain.Snowflake) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.written[channelID])
}

func (s *memorySink) Closed(channelID domain.Snowflake) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed[channelID]
}

type memoryWriter struct {
	sink      *memorySink
	channelID domain.Snowflake
}

func (w *memoryWriter) Write(msg domain.Message) error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.written[w.channelID] = append(w.sink.written[w.channelID], msg)
	return nil
}

func (w *memoryWriter) Close() error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.closed[w.channelID] = true
	return nil
}

// lastLineParser считает последним сообщением число в последней строке.
type lastLineParser struct {
	mock.Mock
}

func (p *lastLineParser) LastMessageID(r io.Reader) (domain.Snowflake, error) {
	data, _ := io.ReadAll(r)
	args := p.Called(string(data))
	return args.Get(0).(domain.Snowflake), args.Error(1)
}

// iterFunc приводит функцию к типу последовательности для Return.
func iterFunc(f func(yield func(domain.Message, error) bool)) iter.Seq2[domain.Message, error] {
	return f
}
