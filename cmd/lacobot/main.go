package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lacomiqueria/chatbot/internal/api"
	"github.com/lacomiqueria/chatbot/internal/classify"
	"github.com/lacomiqueria/chatbot/internal/enrich"
	"github.com/lacomiqueria/chatbot/internal/flow"
	"github.com/lacomiqueria/chatbot/internal/genai"
	"github.com/lacomiqueria/chatbot/internal/lockfile"
	"github.com/lacomiqueria/chatbot/internal/lookup"
	"github.com/lacomiqueria/chatbot/internal/messaging"
	"github.com/lacomiqueria/chatbot/internal/store"
	"github.com/lacomiqueria/chatbot/internal/twiliowhatsapp"
	"github.com/lacomiqueria/chatbot/internal/util"
	"github.com/lacomiqueria/chatbot/internal/whatsapp"
)

const (
	// DefaultStateDir is the default directory for chatbot state data.
	DefaultStateDir = "/var/lib/lacobot"
	// DefaultDBFileName is the default SQLite database filename.
	DefaultDBFileName = "lacobot.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("lacobot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("lacobot exited")
}

// Config holds environment configuration.
type Config struct {
	DatabaseURL   string
	WhatsAppDSN   string
	StateDir      string
	OpenAIKey     string
	APIAddr       string
	Channel       string
	StorefrontURL string
	StorefrontKey string
}

// Flags holds command line flag values.
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	dbDSN         *string
	whatsAppDSN   *string
	openaiKey     *string
	apiAddr       *string
	channel       *string
	storefrontURL *string
	storefrontKey *string
	policyFile    *string
}

func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("LACOBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and a
// .env file when present.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:      os.Getenv("LACOBOT_STATE_DIR"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		APIAddr:       os.Getenv("API_ADDR"),
		Channel:       os.Getenv("LACOBOT_CHANNEL"),
		StorefrontURL: os.Getenv("STOREFRONT_API_URL"),
		StorefrontKey: os.Getenv("STOREFRONT_API_KEY"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("no database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, "whatsmeow.db")
	}
	if config.Channel == "" {
		config.Channel = "twilio"
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"LACOBOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"LACOBOT_CHANNEL", config.Channel,
		"STOREFRONT_API_URL", config.StorefrontURL)

	return config
}

// parseCommandLineFlags parses command line arguments with environment
// defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for chatbot data (overrides $LACOBOT_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the chatbot store (overrides $DATABASE_URL)"),
		whatsAppDSN:   flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the whatsmeow session store (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		channel:       flag.String("channel", config.Channel, "messaging channel: twilio or whatsapp (overrides $LACOBOT_CHANNEL)"),
		storefrontURL: flag.String("storefront-url", config.StorefrontURL, "storefront API base URL (overrides $STOREFRONT_API_URL)"),
		storefrontKey: flag.String("storefront-key", config.StorefrontKey, "storefront API key (overrides $STOREFRONT_API_KEY)"),
		policyFile:    flag.String("policy-file", "", "path to the store policy context text file"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"channel", *flags.channel)

	return flags
}

// ensureDirectoriesExist creates the state directory for file-based storage.
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}
	return nil
}

// run wires the modules together and serves until the context is cancelled.
func run(ctx context.Context, flags Flags) error {
	st, err := newStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	llm, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	storefront := enrich.NewStorefrontClient(*flags.storefrontURL, *flags.storefrontKey)
	guestLookup := lookup.NewHTTPClient(*flags.storefrontURL, *flags.storefrontKey)

	orchestrator := flow.NewOrchestrator(flow.Deps{
		Store:      st,
		Classifier: classify.NewKeywordClassifier(),
		Enricher:   storefront,
		Orders:     storefront,
		Catalog:    storefront,
		Lookup:     guestLookup,
		Limiter:    lookup.NewLimiter(0, 0),
		LLM:        llm,
	},
		flow.WithSource(*flags.channel),
		flow.WithPolicyContext(loadPolicyContext(*flags.policyFile)),
	)

	msgService, twilioWebhook, err := newMessagingService(flags)
	if err != nil {
		return err
	}
	defer msgService.Stop()

	if err := msgService.Start(ctx); err != nil {
		return err
	}

	handler := messaging.NewTurnHandler(msgService, orchestrator, nil)
	go handler.Run(ctx)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if twilioWebhook != nil {
		apiOpts = append(apiOpts, api.WithTwilioWebhook(twilioWebhook))
	}

	slog.Info("lacobot starting", "channel", *flags.channel)
	return api.NewServer(st, apiOpts...).Run(ctx)
}

func newStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("detected PostgreSQL DSN, using PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("detected SQLite DSN, using SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// newMessagingService builds the configured messaging channel. For Twilio the
// webhook handler is returned so the API server can mount it.
func newMessagingService(flags Flags) (messaging.Service, http.HandlerFunc, error) {
	switch *flags.channel {
	case "whatsapp":
		waOpts := []whatsapp.Option{whatsapp.WithDBDSN(*flags.whatsAppDSN)}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		waClient, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(waClient), nil, nil
	case "twilio":
		twClient, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		svc := messaging.NewTwilioService(twClient)
		return svc, svc.WebhookHandler, nil
	default:
		return nil, nil, fmt.Errorf("unknown messaging channel %q", *flags.channel)
	}
}

func loadPolicyContext(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read policy context file", "error", err, "path", path)
		return ""
	}
	return string(data)
}
