package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Harvey-AU/page-pulse/internal/client"
	"github.com/Harvey-AU/page-pulse/internal/extractor"
	"github.com/Harvey-AU/page-pulse/internal/notifications"
	"github.com/Harvey-AU/page-pulse/internal/relay"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the relay daemon configuration loaded from environment variables
type Config struct {
	Env             string        // Environment (development/production)
	SentryDSN       string        // Sentry DSN for error tracking
	LogLevel        string        // Log level (debug, info, warn, error)
	APIBaseURL      string        // Visit store base URL
	PageURLs        []string      // Pages to observe
	CaptureInterval time.Duration // Time between observation cycles
	SettleDelay     time.Duration // Wait after page load before extracting
	SlackWebhookURL string        // Incoming webhook for dropped-save alerts
}

func main() {
	godotenv.Load(".env.local", ".env")

	config := loadConfig()
	setupLogging(config)

	if len(config.PageURLs) == 0 {
		log.Fatal().Msg("PAGE_URLS is required (comma separated list of pages to observe)")
	}

	if config.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              config.SentryDSN,
			Environment:      config.Env,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	apiClient := client.New(client.DefaultConfig(config.APIBaseURL))

	var opts []relay.Option
	if config.SlackWebhookURL != "" {
		slackChannel, err := notifications.NewSlackChannel(config.SlackWebhookURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Slack channel")
		}
		notifier := notifications.NewService()
		notifier.AddChannel(slackChannel)
		opts = append(opts, relay.WithNotifier(notifier))
		log.Info().Msg("Slack alerting enabled for dropped saves")
	}

	rly := relay.New(apiClient, opts...)

	extractorConfig := extractor.DefaultConfig()
	extractorConfig.SettleDelay = config.SettleDelay
	ex := extractor.New(extractorConfig)

	producers := make([]*extractor.Producer, 0, len(config.PageURLs))
	for _, pageURL := range config.PageURLs {
		producers = append(producers, extractor.NewProducer(ex, rly.Router(), pageURL))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	log.Info().
		Int("pages", len(config.PageURLs)).
		Dur("interval", config.CaptureInterval).
		Str("store", config.APIBaseURL).
		Msg("Relay daemon started")

	observeAll(ctx, producers)

	ticker := time.NewTicker(config.CaptureInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			log.Info().Msg("Shutting down relay daemon")
			cancel()
			return
		case <-ticker.C:
			observeAll(ctx, producers)
		}
	}
}

// observeAll runs one observation cycle across every configured page.
// A failed page never blocks the others; drops are logged and the
// cycle moves on.
func observeAll(ctx context.Context, producers []*extractor.Producer) {
	for _, p := range producers {
		if err := p.Observe(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			sentry.CaptureException(err)
			log.Error().Err(err).Msg("Observation cycle failed for page")
		}
	}
}

func loadConfig() *Config {
	pages := []string{}
	for _, raw := range strings.Split(os.Getenv("PAGE_URLS"), ",") {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			pages = append(pages, trimmed)
		}
	}

	return &Config{
		Env:             getEnvWithDefault("APP_ENV", "development"),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		LogLevel:        getEnvWithDefault("LOG_LEVEL", "info"),
		APIBaseURL:      getEnvWithDefault("API_BASE_URL", "http://localhost:8080"),
		PageURLs:        pages,
		CaptureInterval: getEnvDuration("CAPTURE_INTERVAL", 5*time.Minute),
		SettleDelay:     getEnvDuration("SETTLE_DELAY", time.Second),
		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Dur("default", defaultValue).
			Msg("Invalid duration in environment variable, using default")
		return defaultValue
	}
	return parsed
}

func setupLogging(config *Config) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Str("service", "page-pulse-relay").
			Logger()
	}
}
