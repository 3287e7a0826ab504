// Package config предоставляет управление конфигурацией приложения
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Discord содержит параметры подключения к API
type Discord struct {
	Token       string        `json:"token" yaml:"token"`
	TokenKind   string        `json:"token_kind" yaml:"token_kind"` // auto, user, bot
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout"`
}

// Retry содержит политику повторов при временных сбоях
type Retry struct {
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts"`
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval"`
}

// RateLimit содержит параметры ожидания при исчерпании лимита запросов
type RateLimit struct {
	Buffer   time.Duration `json:"buffer" yaml:"buffer"`
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
}

// Export содержит конфигурацию выгрузки
type Export struct {
	Parallel     int           `json:"parallel" yaml:"parallel"`
	OutputDir    string        `json:"output_dir" yaml:"output_dir"`
	Resume       bool          `json:"resume" yaml:"resume"`
	TotalTimeout time.Duration `json:"total_timeout" yaml:"total_timeout"` // 0 - без ограничений
	ProgressStep float64       `json:"progress_step" yaml:"progress_step"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// Config содержит конфигурацию приложения
type Config struct {
	Discord   Discord   `json:"discord" yaml:"discord"`
	Retry     Retry     `json:"retry" yaml:"retry"`
	RateLimit RateLimit `json:"rate_limit" yaml:"rate_limit"`
	Export    Export    `json:"export" yaml:"export"`
	Logging   Logging   `json:"logging" yaml:"logging"`
}

// defaultConfig возвращает конфигурацию со значениями по умолчанию
func defaultConfig() *Config {
	return &Config{
		Discord: Discord{
			TokenKind:   DefaultTokenKind,
			BaseURL:     DefaultBaseURL,
			HTTPTimeout: DefaultHTTPTimeout,
		},
		Retry: Retry{
			MaxAttempts:     DefaultRetryMaxAttempts,
			InitialInterval: DefaultRetryInitialInterval,
			MaxInterval:     DefaultRetryMaxInterval,
		},
		RateLimit: RateLimit{
			Buffer:   DefaultRateLimitBuffer,
			MaxDelay: DefaultRateLimitMaxDelay,
		},
		Export: Export{
			Parallel:     DefaultExportParallel,
			OutputDir:    DefaultExportOutputDir,
			TotalTimeout: DefaultExportTotalTimeout,
			ProgressStep: DefaultExportProgressStep,
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем config.yml,
// затем переменные окружения (включая .env файл). Поздние источники перекрывают ранние.
func LoadConfig() (*Config, error) {
	// Если .env файла не существует, это нормально, мы будем полагаться на переменные окружения
	_ = godotenv.Load()

	cfg := defaultConfig()

	if err := loadFromYAML(getEnv("CONFIG_FILE", DefaultConfigFile), cfg); err != nil {
		return nil, err
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию из env: %w", err)
	}

	return cfg, nil
}

// loadFromYAML накладывает на cfg значения из YAML-файла. Отсутствие файла не ошибка.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	return nil
}

// loadFromEnv накладывает на cfg заданные переменные окружения
func loadFromEnv(cfg *Config) error {
	cfg.Discord.Token = getEnv("DISCORD_TOKEN", cfg.Discord.Token)
	cfg.Discord.TokenKind = getEnv("DISCORD_TOKEN_KIND", cfg.Discord.TokenKind)
	cfg.Discord.BaseURL = getEnv("DISCORD_BASE_URL", cfg.Discord.BaseURL)
	cfg.Export.OutputDir = getEnv("EXPORT_OUTPUT_DIR", cfg.Export.OutputDir)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	var err error
	if cfg.Discord.HTTPTimeout, err = getEnvDuration("DISCORD_HTTP_TIMEOUT", cfg.Discord.HTTPTimeout); err != nil {
		return err
	}
	if cfg.Retry.MaxAttempts, err = getEnvInt("RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts); err != nil {
		return err
	}
	if cfg.Export.Parallel, err = getEnvInt("EXPORT_PARALLEL", cfg.Export.Parallel); err != nil {
		return err
	}
	if cfg.Export.TotalTimeout, err = getEnvDuration("EXPORT_TOTAL_TIMEOUT", cfg.Export.TotalTimeout); err != nil {
		return err
	}
	if v := os.Getenv("EXPORT_RESUME"); v != "" {
		if cfg.Export.Resume, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("недопустимый EXPORT_RESUME: %w", err)
		}
	}

	return nil
}

// Validate проверяет, являются ли значения конфигурации допустимыми.
// Токен не проверяется: он может быть передан флагом или запрошен интерактивно.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Discord.TokenKind) {
	case "", "auto", "user", "bot":
		// all good
	default:
		return fmt.Errorf("discord.token_kind должен быть одним из: auto, user, bot")
	}

	u, err := url.Parse(c.Discord.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("discord.base_url должен быть абсолютным URL")
	}

	if c.Discord.HTTPTimeout <= 0 {
		return fmt.Errorf("discord.http_timeout должно быть положительным")
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts должно быть положительным")
	}

	if c.Retry.InitialInterval <= 0 {
		return fmt.Errorf("retry.initial_interval должно быть положительным")
	}

	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry.max_interval должно быть не меньше retry.initial_interval")
	}

	if c.RateLimit.Buffer < 0 {
		return fmt.Errorf("rate_limit.buffer должно быть неотрицательным")
	}

	if c.RateLimit.MaxDelay <= 0 {
		return fmt.Errorf("rate_limit.max_delay должно быть положительным")
	}

	if c.Export.Parallel <= 0 {
		return fmt.Errorf("export.parallel должно быть положительным")
	}

	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir не может быть пустым")
	}

	if c.Export.TotalTimeout < 0 {
		return fmt.Errorf("export.total_timeout должно быть неотрицательным (0 для отсутствия ограничений)")
	}

	if c.Export.ProgressStep <= 0 || c.Export.ProgressStep > 1 {
		return fmt.Errorf("export.progress_step должно быть в диапазоне (0, 1]")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format должен быть одним из: text, json")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("недопустимый %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("недопустимый %s: %w", key, err)
	}
	return d, nil
}
