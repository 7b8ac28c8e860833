package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/recruiter-outreach/internal/browser/chrome"
	"github.com/spigell/recruiter-outreach/internal/connector"
	"github.com/spigell/recruiter-outreach/internal/linkedin"
)

const (
	app = "recruiter-outreach"

	defaultLedger = "outreach-ledger.jsonl"
)

type Config struct {
	// SettingsFile points to the document written by the settings editor.
	// When unset the settings section below is used.
	SettingsFile  string                 `mapstructure:"settings-file"`
	Settings      map[string]any         `mapstructure:"settings"`
	Ledger        string                 `mapstructure:"ledger"`
	ExcludeFile   string                 `mapstructure:"exclude-file"`
	RunOncePerDay bool                   `mapstructure:"run-once-per-day"`
	Keywords      []string               `mapstructure:"keywords"`
	Browser       chrome.Options         `mapstructure:"browser"`
	Source        linkedin.SourceOptions `mapstructure:"source"`
	Agent         connector.Options      `mapstructure:"agent"`
	Markup        linkedin.Markup        `mapstructure:"markup"`
	Message       string                 `mapstructure:"message"`
	MessageFile   string                 `mapstructure:"message-file"`
	Pacing        PacingConfig           `mapstructure:"pacing"`
	AI            *AIConfig              `mapstructure:"ai"`
	Metrics       MetricsConfig          `mapstructure:"metrics"`
}

// PacingConfig bounds the randomized pauses between browser actions and between candidates.
type PacingConfig struct {
	Min          time.Duration `mapstructure:"min"`
	Max          time.Duration `mapstructure:"max"`
	CandidateMin time.Duration `mapstructure:"candidate-min"`
	CandidateMax time.Duration `mapstructure:"candidate-max"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Intent   string        `mapstructure:"intent"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway-url"`
	Job            string `mapstructure:"job"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "recruiter-outreach sends paced connection invitations to recruiters found through people search",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ledger", "OUTREACH_LEDGER"); err != nil {
		log.Fatalf("binding OUTREACH_LEDGER environment variable: %v", err)
	}

	viper.SetDefault("ledger", defaultLedger)
	viper.SetDefault("browser.headless", false)
	viper.SetDefault("source.settle-delay", linkedin.DefaultSettleDelay)
	viper.SetDefault("source.page-interval", linkedin.DefaultPageInterval)
	viper.SetDefault("pacing.min", time.Second)
	viper.SetDefault("pacing.max", 5*time.Second)
	viper.SetDefault("pacing.candidate-min", 10*time.Second)
	viper.SetDefault("pacing.candidate-max", 30*time.Second)
	viper.SetDefault("metrics.job", app)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is recruiter-outreach.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("ledger", "", "activity ledger file (default is "+defaultLedger+")")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("ledger", rootCmd.PersistentFlags().Lookup("ledger"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	// Config is needed only for run and stats. Version works without it.
	if runCmd.CalledAs() == "" && statsCmd.CalledAs() == "" {
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	// Markup overrides are merged on top of the built-in descriptors.
	config := &Config{Markup: linkedin.DefaultMarkup()}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	return config, nil
}
