package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/adaptest/internal/client"
	appI18n "github.com/pavelanni/adaptest/internal/i18n"
	"github.com/pavelanni/adaptest/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "adaptest",
		Short:        "Run adaptive tests against an evaluation service",
		SilenceUsage: true,
	}
	root.AddCommand(
		runCmd(),
		replayCmd(),
		historyCmd(),
		showCmd(),
		exportCmd(),
		datasetsCmd(),
		projectsCmd(),
		whoamiCmd(),
		submitClassicCmd(),
		mockServerCmd(),
	)
	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.StringP("lang", "l", "en", "Output language (en, ru)")
}

func addServiceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("base-url", client.DefaultBaseURL, "Service base URL")
	f.String("api-key", "", "Service API key (or set ADAPTEST_API_KEY)")
	f.Duration("timeout", client.DefaultTimeout, "Per-request timeout")
	f.Int("max-items", client.DefaultMaxItems, "Item count assumed for progress while a run is going")
	f.Float64("rate-limit", 0, "Maximum requests per second (0 = unlimited)")
	addLogFlags(cmd)
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("db", "adaptest.db", "SQLite run ledger path")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ADAPTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("adaptest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/adaptest")
	v.AddConfigPath("/etc/adaptest")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// setup configures logging and messages and returns the command's settings.
func setup(cmd *cobra.Command) (*viper.Viper, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	lang := v.GetString("lang")
	if !appI18n.IsSupported(lang) {
		slog.Warn("unsupported language, using en", "lang", lang)
		lang = "en"
	}
	if err := appI18n.Init("en"); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	cmd.SetContext(appI18n.WithLanguage(cmd.Context(), lang))
	return v, nil
}

func newClient(v *viper.Viper, metrics *client.Metrics) (*client.Client, error) {
	c, err := client.New(client.Config{
		BaseURL:   v.GetString("base-url"),
		APIKey:    v.GetString("api-key"),
		Timeout:   v.GetDuration("timeout"),
		MaxItems:  v.GetInt("max-items"),
		RateLimit: v.GetFloat64("rate-limit"),
		Metrics:   metrics,
		Logger:    slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("create service client: %w", err)
	}
	return c, nil
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	return db, nil
}
