package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"discord-chat-exporter/internal/discord"
	applog "discord-chat-exporter/internal/log"
	"discord-chat-exporter/internal/pkg/config"
	"discord-chat-exporter/internal/pkg/term"
)

// app содержит зависимости, общие для всех команд.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	client *discord.Client
}

// tokenPrompt запрашивает токен, если он не задан ни флагом, ни конфигурацией.
type tokenPrompt interface {
	IsInteractive() bool
	Token(ctx context.Context) (string, error)
}

// newApp загружает конфигурацию, настраивает логгер и создает клиент API.
func newApp(ctx context.Context, flagToken string, stderr io.Writer, prompt tokenPrompt) (*app, error) {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagToken != "" {
		cfg.Discord.Token = flagToken
	}

	// 2. Валидация конфигурации
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// 3. Токен: флаг, конфигурация или интерактивный ввод
	if cfg.Discord.Token == "" {
		if prompt == nil || !prompt.IsInteractive() {
			return nil, fmt.Errorf("token is not set: use --token, DISCORD_TOKEN or discord.token in config.yml")
		}
		if cfg.Discord.Token, err = prompt.Token(ctx); err != nil {
			return nil, err
		}
	}

	// 4. Инициализация логгера
	logger := newLogger(cfg.Logging, stderr, cfg.Discord.Token)
	slog.SetDefault(logger)

	// 5. Клиент API
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, log: logger, client: client}, nil
}

// newLogger создает логгер с маскировкой токенов.
func newLogger(cfg config.Logging, out io.Writer, secrets ...string) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return applog.NewMaskedLogger(handler, secrets...)
}

func newClient(cfg *config.Config, logger *slog.Logger) (*discord.Client, error) {
	kind, err := discord.ParseTokenKind(cfg.Discord.TokenKind)
	if err != nil {
		return nil, err
	}

	client, err := discord.NewClient(cfg.Discord.Token,
		discord.WithLogger(logger),
		discord.WithBaseURL(cfg.Discord.BaseURL),
		discord.WithTimeout(cfg.Discord.HTTPTimeout),
		discord.WithTokenKind(kind),
		discord.WithRetryConfig(discord.RetryConfig{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
		}),
		discord.WithRateLimitOptions(
			discord.WithRateLimitBuffer(cfg.RateLimit.Buffer),
			discord.WithRateLimitMaxDelay(cfg.RateLimit.MaxDelay),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func defaultPrompt() tokenPrompt {
	return term.NewTerminal()
}
