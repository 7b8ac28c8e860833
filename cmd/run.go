package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/recruiter-outreach/internal/ai"
	"github.com/spigell/recruiter-outreach/internal/ai/gemini"
	"github.com/spigell/recruiter-outreach/internal/browser/chrome"
	"github.com/spigell/recruiter-outreach/internal/connector"
	"github.com/spigell/recruiter-outreach/internal/filtering"
	"github.com/spigell/recruiter-outreach/internal/ledger"
	"github.com/spigell/recruiter-outreach/internal/linkedin"
	"github.com/spigell/recruiter-outreach/internal/logger"
	"github.com/spigell/recruiter-outreach/internal/metrics"
	"github.com/spigell/recruiter-outreach/internal/outreach"
	"github.com/spigell/recruiter-outreach/internal/secrets"
	"github.com/spigell/recruiter-outreach/internal/settings"
	"github.com/spigell/recruiter-outreach/internal/utils"
)

const (
	PromptYes    = "Yes"
	PromptNo     = "No"
	PromptDryRun = "Dry run (collect eligible candidates only)"
)

var prompt = promptui.Select{
	Label: "Procced?",
	Items: []string{PromptYes, PromptNo, PromptDryRun},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search for recruiters and send connection invitations within the configured caps",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before sending invitations")
	runCmd.Flags().Bool("dry-run", false, "collect eligible candidates without contacting them or writing the ledger")
	runCmd.Flags().Bool("append-exclude", false, "after a dry run, append eligible candidates to the exclude file")
	runCmd.Flags().Bool("run-once-per-day", false, "do nothing if a run was already recorded today")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with profiles to exclude. Default is unset.")
	runCmd.Flags().String("settings-file", "", "settings document written by the settings editor")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("run-once-per-day", runCmd.Flags().Lookup("run-once-per-day"))
	viper.BindPFlag("settings-file", runCmd.Flags().Lookup("settings-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.Build(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
		File:  viper.GetString("log-file"),
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the recruiter-outreach", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	s, err := loadSettings(config, logger)
	if err != nil {
		logger.Fatal("loading settings", zap.Error(err))
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	release := newCleanup(logger)
	defer release.run()

	l, err := ledger.Open(config.Ledger, ledger.Options{ReadOnly: dryRun, Logger: logger})
	if err != nil {
		if errors.Is(err, ledger.ErrLocked) {
			logger.Fatal("another run is in progress", zap.String("ledger", config.Ledger))
		}
		logger.Fatal("opening the ledger", zap.Error(err))
	}
	release.add("ledger", l.Close)

	if err := l.Degraded(); err != nil {
		logger.Warn("continuing without ledger history", zap.Error(err))
	}

	if autoApprove, _ := cmd.Flags().GetBool("auto-approve"); !autoApprove && !dryRun {
		_, action, err := prompt.Run()
		if err != nil {
			release.fatal("exiting", zap.Error(err))
		}
		switch action {
		case PromptNo:
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		case PromptDryRun:
			dryRun = true
		}
	}

	classifier, err := filtering.NewClassifier(config.Keywords...)
	if err != nil {
		release.fatal("building the classifier", zap.Error(err))
	}

	chain, err := filtering.NewChain(logger, filtering.Default(classifier, s, l, config.ExcludeFile)...)
	if err != nil {
		release.fatal("preparing filters", zap.Error(err))
	}

	// The browser outlives an interrupt so the candidate in flight can finish.
	session, err := chrome.New(context.WithoutCancel(ctx), config.Browser, logger)
	if err != nil {
		release.fatal("starting the browser", zap.Error(err))
	}
	release.add("browser", session.Close)

	source := linkedin.NewSource(session, s, config.Markup.Search, config.Source, logger)
	logger.Info("starting the search", zap.String("query", source.Query()))

	notes, err := prepareNotes(ctx, config, logger)
	if err != nil {
		release.fatal("preparing invitation notes", zap.Error(err))
	}

	agent := connector.New(
		session,
		config.Markup.Profile,
		notes,
		utils.NewRandomPacer(config.Pacing.Min, config.Pacing.Max),
		config.Agent,
		logger,
	)

	recorder := metrics.New()

	scheduler, err := outreach.New(outreach.Deps{
		Ledger:    l,
		Source:    source,
		Filters:   chain,
		Connector: agent,
		Metrics:   recorder,
		Logger:    logger,
	}, outreach.Options{
		Settings:      s,
		RunOncePerDay: config.RunOncePerDay,
		DryRun:        dryRun,
		Pacer:         utils.NewRandomPacer(config.Pacing.CandidateMin, config.Pacing.CandidateMax),
	})
	if err != nil {
		release.fatal("preparing the scheduler", zap.Error(err))
	}

	report := scheduler.Run(ctx)
	chain.Report()
	logger.Info("pages visited", zap.Int("pages", source.Pages()))

	if dryRun {
		if err := handleDryRun(cmd, config, report, logger); err != nil {
			logger.Error("handling dry run results", zap.Error(err))
		}
	}

	if url := strings.TrimSpace(config.Metrics.PushgatewayURL); url != "" {
		// The run context may already be cancelled; pushing is still wanted.
		if err := recorder.Push(context.WithoutCancel(ctx), url, config.Metrics.Job); err != nil {
			logger.Warn("pushing metrics", zap.Error(err), zap.String("url", url))
		}
	}

	if report.StopReason == outreach.StopError {
		release.fatal("run failed", zap.Error(report.Err))
	}
}

func loadSettings(config *Config, logger *zap.Logger) (settings.Settings, error) {
	var (
		s   settings.Settings
		err error
	)

	if path := strings.TrimSpace(config.SettingsFile); path != "" {
		s, err = settings.Load(path, logger)
	} else {
		s, err = settings.Decode(config.Settings)
	}
	if err != nil {
		return settings.Settings{}, err
	}

	for _, note := range s.Advisories() {
		logger.Warn("settings advisory", zap.String("note", note))
	}

	logger.Info("settings loaded",
		zap.String("location", s.Location),
		zap.Strings("companies", s.Companies),
		zap.Strings("search_terms", s.SearchTerms),
		zap.Int("max_daily", s.MaxDaily),
		zap.Int("max_weekly", s.MaxWeekly),
	)

	return s, nil
}

func prepareNotes(ctx context.Context, config *Config, logger *zap.Logger) (connector.NoteSource, error) {
	message := config.Message
	if file := strings.TrimSpace(config.MessageFile); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading message file: %w", err)
		}
		message = string(data)
	}

	fallback := connector.Template{Text: message}

	if config.AI == nil || !config.AI.Enabled {
		return fallback, nil
	}

	writer, err := newNoteWriter(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("skipping AI notes", zap.Error(err))
		return fallback, nil
	}

	return connector.Composed{
		Writer:   writer,
		Intent:   config.AI.Intent,
		Fallback: fallback,
		Logger:   logger,
	}, nil
}

func newNoteWriter(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.NoteWriter, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewComposer(generator, cfg.Gemini.MaxLogLength, genLogger), nil
}

func handleDryRun(cmd *cobra.Command, config *Config, report outreach.Report, logger *zap.Logger) error {
	eligible := report.Eligible
	if eligible == nil || eligible.Len() == 0 {
		logger.Info("no eligible candidates found")
		return nil
	}

	pretty, _ := json.MarshalIndent(eligible.ReportByEmployer(), "", "  ")
	logger.Info(string(pretty), zap.Int("candidates count", eligible.Len()))

	filename, err := eligible.DumpToTmpFile()
	if err != nil {
		return fmt.Errorf("dump results to file: %w", err)
	}
	logger.Info("dumping result to file", zap.String("filename", filename))

	if appendExclude, _ := cmd.Flags().GetBool("append-exclude"); !appendExclude {
		return nil
	}

	excludeFile := strings.TrimSpace(config.ExcludeFile)
	if excludeFile == "" {
		return errors.New("exclude file is not configured")
	}

	excluded, err := linkedin.GetExcludedProfilesFromFile(excludeFile)
	if err != nil {
		return err
	}
	excluded.Append(eligible.ToExcluded())

	if err := excluded.ToFile(excludeFile); err != nil {
		return err
	}
	logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.Int("count", eligible.Len()))

	return nil
}
