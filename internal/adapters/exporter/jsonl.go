package exporter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"discord-chat-exporter/internal/adapters/source"
	"discord-chat-exporter/internal/domain"
	"discord-chat-exporter/internal/ports"
)

const maxFileNameLength = 200

// JSONLinesSink реализует интерфейс MessageSink: по файлу JSON Lines на канал.
type JSONLinesSink struct {
	dir        string
	appendMode bool
}

// SinkOption настраивает JSONLinesSink.
type SinkOption func(*JSONLinesSink)

// WithAppend включает дозапись в существующие файлы вместо перезаписи.
func WithAppend(enabled bool) SinkOption {
	return func(s *JSONLinesSink) {
		s.appendMode = enabled
	}
}

// NewJSONLinesSink создает sink, пишущий файлы в каталог dir.
func NewJSONLinesSink(dir string, opts ...SinkOption) *JSONLinesSink {
	s := &JSONLinesSink{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.MessageSink = (*JSONLinesSink)(nil)

// Path возвращает путь к файлу выгрузки канала.
func (s *JSONLinesSink) Path(guild domain.Guild, channel domain.Channel) string {
	return filepath.Join(s.dir, FileName(guild, channel))
}

// Locate возвращает источник ранее выгруженных сообщений канала.
func (s *JSONLinesSink) Locate(guild domain.Guild, channel domain.Channel) ports.DataSource {
	return source.NewFileSource(s.Path(guild, channel))
}

// Open создает (или открывает для дозаписи) файл выгрузки канала.
func (s *JSONLinesSink) Open(ctx context.Context, guild domain.Guild, channel domain.Channel) (ports.MessageWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", s.dir, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if s.appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	path := s.Path(guild, channel)
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	buf := bufio.NewWriter(f)
	return &jsonLinesWriter{file: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

type jsonLinesWriter struct {
	file   *os.File
	buf    *bufio.Writer
	enc    *json.Encoder
	closed bool
}

func (w *jsonLinesWriter) Write(msg domain.Message) error {
	if w.closed {
		return os.ErrClosed
	}
	if err := w.enc.Encode(msg); err != nil {
		return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
	}
	return nil
}

func (w *jsonLinesWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush %s: %w", w.file.Name(), flushErr)
	}
	return closeErr
}

// FileName строит имя файла выгрузки вида "Guild - Parent - Channel [id].jsonl".
func FileName(guild domain.Guild, channel domain.Channel) string {
	parts := []string{guild.Name}
	if channel.HasParent() || channel.Kind.IsDirect() {
		parts = append(parts, channel.ParentNameWithFallback())
	}
	parts = append(parts, channel.Name)

	base := sanitizeFileName(strings.Join(parts, " - "))
	if len(base) > maxFileNameLength {
		base = strings.ToValidUTF8(base[:maxFileNameLength], "")
	}
	return fmt.Sprintf("%s [%s].jsonl", base, channel.ID)
}

func sanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20:
			return -1
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		default:
			return r
		}
	}, name)
	return strings.TrimSpace(name)
}
