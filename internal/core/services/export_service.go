package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"discord-chat-exporter/internal/cache"
	"discord-chat-exporter/internal/discord"
	"discord-chat-exporter/internal/domain"
	"discord-chat-exporter/internal/ports"
)

// Config хранит конфигурацию для ExportService.
type Config struct {
	// Parallel — сколько каналов выгружается одновременно.
	Parallel int
	// TotalTimeout — максимальная продолжительность всей выгрузки; 0 — без ограничений.
	TotalTimeout time.Duration
	// ProgressStep — шаг, с которым прогресс канала пишется в лог.
	ProgressStep float64
	// GuildCacheTTL — сколько сервер хранится в кэше между выгрузками.
	GuildCacheTTL time.Duration
}

// DefaultGuildCacheTTL — срок хранения сервера в кэше по умолчанию.
const DefaultGuildCacheTTL = 10 * time.Minute

// Option — функциональная опция для настройки ExportService.
type Option func(*ExportService)

// WithParallel устанавливает количество одновременно выгружаемых каналов.
func WithParallel(n int) Option {
	return func(s *ExportService) {
		if n > 0 {
			s.config.Parallel = n
		}
	}
}

// WithTotalTimeout устанавливает общий таймаут выгрузки.
func WithTotalTimeout(d time.Duration) Option {
	return func(s *ExportService) {
		s.config.TotalTimeout = d
	}
}

// WithProgressStep устанавливает шаг логирования прогресса.
func WithProgressStep(step float64) Option {
	return func(s *ExportService) {
		if step > 0 && step <= 1 {
			s.config.ProgressStep = step
		}
	}
}

// WithGuildCacheTTL устанавливает срок хранения серверов в кэше.
func WithGuildCacheTTL(d time.Duration) Option {
	return func(s *ExportService) {
		if d > 0 {
			s.config.GuildCacheTTL = d
		}
	}
}

// WithResume включает дозагрузку: выгрузка канала продолжается после последнего
// сообщения, найденного parser в ранее выгруженных данных.
func WithResume(parser ports.Parser) Option {
	return func(s *ExportService) {
		s.parser = parser
	}
}

// WithLogger устанавливает логгер для сервиса.
func WithLogger(l *slog.Logger) Option {
	return func(s *ExportService) {
		if l != nil {
			s.log = l
		}
	}
}

// ExportRequest описывает одну выгрузку.
type ExportRequest struct {
	ChannelIDs []domain.Snowflake
	// After и Before ограничивают диапазон сообщений (after, before]; ноль — без границы.
	After  domain.Snowflake
	Before domain.Snowflake
}

// ChannelResult — итог выгрузки одного канала.
type ChannelResult struct {
	ChannelID domain.Snowflake
	Channel   domain.Channel
	Messages  int
	// Skipped — канал пропущен (недоступен или в диапазоне нет сообщений); причина в Reason.
	Skipped bool
	Reason  string
}

// ExportService выгружает сообщения нескольких каналов одновременно.
// Каждый канал читается отдельным потоком; общим между потоками остается только клиент.
type ExportService struct {
	client ports.DiscordClient
	sink   ports.MessageSink
	parser ports.Parser
	config Config
	log    *slog.Logger
	guilds *cache.CacheStore[domain.Snowflake, domain.Guild]
}

// NewExportService создает новый ExportService с использованием функциональных опций.
// Он начинает с конфигурации по умолчанию, которая может быть переопределена предоставленными опциями.
func NewExportService(client ports.DiscordClient, sink ports.MessageSink, opts ...Option) *ExportService {
	s := &ExportService{
		client: client,
		sink:   sink,
		config: Config{
			Parallel:      1,
			ProgressStep:  0.1,
			GuildCacheTTL: DefaultGuildCacheTTL,
		},
		log:    slog.Default(),
		guilds: cache.NewCacheStore[domain.Snowflake, domain.Guild](),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Export выгружает каналы запроса. Недоступные каналы пропускаются и попадают в результат
// с причиной; фатальная ошибка останавливает всю выгрузку, при этом возвращаются
// результаты уже завершенных каналов.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) ([]ChannelResult, error) {
	channelIDs := dedupe(req.ChannelIDs)
	if len(channelIDs) == 0 {
		return nil, nil
	}
	if len(channelIDs) < len(req.ChannelIDs) {
		s.log.InfoContext(ctx, "Removed duplicate channels", "original_count", len(req.ChannelIDs), "unique_count", len(channelIDs))
	}

	if s.config.TotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.TotalTimeout)
		defer cancel()
	}

	log := s.log.With("run_id", uuid.NewString(), "client_id", s.client.ID())
	log.InfoContext(ctx, "Starting export",
		"channels", len(channelIDs),
		"parallel", s.config.Parallel,
		"after", req.After,
		"before", req.Before,
	)

	run := &exportRun{
		ExportService: s,
		log:           log,
		req:           req,
	}

	results := make([]ChannelResult, len(channelIDs))
	done := make([]bool, len(channelIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Parallel)

	for i, id := range channelIDs {
		g.Go(func() error {
			res, err := run.exportChannel(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to export channel %s: %w", id, err)
			}
			results[i] = res
			done[i] = true
			return nil
		})
	}

	err := g.Wait()

	finished := make([]ChannelResult, 0, len(results))
	total := 0
	for i, res := range results {
		if done[i] {
			finished = append(finished, res)
			total += res.Messages
		}
	}

	if err != nil {
		log.ErrorContext(ctx, "Export failed", "finished_channels", len(finished), "error", err)
		return finished, err
	}

	log.InfoContext(ctx, "Export finished successfully", "channels", len(finished), "messages", total)
	return finished, nil
}

// exportRun хранит состояние одной выгрузки, общее для ее потоков.
type exportRun struct {
	*ExportService
	log *slog.Logger
	req ExportRequest
}

func (r *exportRun) exportChannel(ctx context.Context, channelID domain.Snowflake) (ChannelResult, error) {
	res := ChannelResult{ChannelID: channelID}

	channel, err := r.client.GetChannel(ctx, channelID)
	if err != nil {
		return r.skipIfAbsent(ctx, res, err)
	}
	res.Channel = channel

	if channel.Kind.IsCategory() {
		return r.skip(ctx, res, "channel is a category")
	}

	guild, err := r.guild(ctx, channel.GuildID)
	if err != nil {
		return r.skipIfAbsent(ctx, res, err)
	}

	after := r.req.After
	if r.parser != nil {
		last, err := r.lastExported(guild, channel)
		if err != nil {
			return res, err
		}
		if last > after {
			r.log.InfoContext(ctx, "Resuming channel export", "channel_id", channelID, "after", last)
			after = last
		}
	}

	if !channel.IsEmpty() && !channel.MayHaveMessagesAfter(after) {
		return r.skip(ctx, res, "no messages in range")
	}

	w, err := r.sink.Open(ctx, guild, channel)
	if err != nil {
		return res, fmt.Errorf("failed to open output: %w", err)
	}

	count, err := r.writeMessages(ctx, channel, after, w)
	closeErr := w.Close()
	res.Messages = count

	if err != nil {
		return r.skipIfAbsent(ctx, res, err)
	}
	if closeErr != nil {
		return res, fmt.Errorf("failed to close output: %w", closeErr)
	}

	r.log.InfoContext(ctx, "Channel exported", "channel_id", channelID, "channel", channel.Name, "messages", count)
	return res, nil
}

func (r *exportRun) writeMessages(ctx context.Context, channel domain.Channel, after domain.Snowflake, w ports.MessageWriter) (int, error) {
	progress := newProgressLogger(ctx, r.log, channel, r.config.ProgressStep)

	count := 0
	for msg, err := range r.client.GetMessages(ctx, channel.ID, after, r.req.Before, progress.report) {
		if err != nil {
			return count, err
		}
		if err := w.Write(msg); err != nil {
			return count, fmt.Errorf("failed to write message %s: %w", msg.ID, err)
		}
		count++
	}
	return count, nil
}

// guild возвращает сервер канала из кэша или запрашивает его
// (одновременные первые запросы допустимы).
func (r *exportRun) guild(ctx context.Context, guildID domain.Snowflake) (domain.Guild, error) {
	if g, ok := r.guilds.Get(guildID); ok {
		return g, nil
	}

	g, err := r.client.GetGuild(ctx, guildID)
	if err != nil {
		return domain.Guild{}, err
	}

	r.guilds.Put(guildID, g, r.config.GuildCacheTTL)
	return g, nil
}

func (r *exportRun) lastExported(guild domain.Guild, channel domain.Channel) (domain.Snowflake, error) {
	rc, err := r.sink.Locate(guild, channel).Open()
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ZeroSnowflake, nil
	}
	if err != nil {
		return domain.ZeroSnowflake, fmt.Errorf("failed to open previous export: %w", err)
	}
	defer rc.Close()

	last, err := r.parser.LastMessageID(rc)
	if err != nil {
		return domain.ZeroSnowflake, fmt.Errorf("failed to read previous export: %w", err)
	}
	return last, nil
}

func (r *exportRun) skipIfAbsent(ctx context.Context, res ChannelResult, err error) (ChannelResult, error) {
	if !discord.IsAbsent(err) {
		return res, err
	}
	return r.skip(ctx, res, err.Error())
}

func (r *exportRun) skip(ctx context.Context, res ChannelResult, reason string) (ChannelResult, error) {
	r.log.WarnContext(ctx, "Channel skipped", "channel_id", res.ChannelID, "reason", reason)
	res.Skipped = true
	res.Reason = reason
	return res, nil
}

// progressLogger пишет прогресс канала в лог, когда доля пересекает очередной шаг.
type progressLogger struct {
	ctx     context.Context
	log     *slog.Logger
	channel domain.Channel
	step    float64
	next    float64
}

func newProgressLogger(ctx context.Context, log *slog.Logger, channel domain.Channel, step float64) *progressLogger {
	return &progressLogger{ctx: ctx, log: log, channel: channel, step: step, next: step}
}

func (p *progressLogger) report(fraction float64) {
	if fraction < p.next {
		return
	}
	for p.next <= fraction {
		p.next += p.step
	}
	p.log.DebugContext(p.ctx, "Channel export progress",
		"channel_id", p.channel.ID,
		"channel", p.channel.Name,
		"percent", int(fraction*100),
	)
}

func dedupe(ids []domain.Snowflake) []domain.Snowflake {
	seen := make(map[domain.Snowflake]struct{}, len(ids))
	out := make([]domain.Snowflake, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
