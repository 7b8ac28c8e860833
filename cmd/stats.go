package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/recruiter-outreach/internal/ledger"
	"github.com/spigell/recruiter-outreach/internal/logger"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how much of the daily and weekly caps is used",
	Run: func(_ *cobra.Command, _ []string) {
		stats()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func stats() {
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

	s, err := loadSettings(config, logger)
	if err != nil {
		logger.Fatal("loading settings", zap.Error(err))
	}

	l, err := ledger.Open(config.Ledger, ledger.Options{ReadOnly: true, Logger: logger})
	if err != nil {
		logger.Fatal("opening the ledger", zap.Error(err))
	}
	defer l.Close()

	now := time.Now()
	daily := l.RecordedCountSince(ledger.StartOfDay(now))
	weekly := l.RecordedCountSince(now.Add(-ledger.WeekWindow))

	logger.Info("quota",
		zap.String("ledger", l.Path()),
		zap.Int("daily", daily),
		zap.Int("max_daily", s.MaxDaily),
		zap.Int("daily_left", max(s.MaxDaily-daily, 0)),
		zap.Int("weekly", weekly),
		zap.Int("max_weekly", s.MaxWeekly),
		zap.Int("weekly_left", max(s.MaxWeekly-weekly, 0)),
		zap.Bool("ran_today", l.HasRunOn(now)),
	)

	if err := l.Degraded(); err != nil {
		logger.Warn("ledger is degraded", zap.Error(err))
	}

	last, ok := l.LastRun()
	if !ok {
		logger.Info("no runs recorded yet")
		return
	}

	logger.Info("last run", lastRunFields(last)...)
}

func lastRunFields(last ledger.Entry) []zap.Field {
	fields := []zap.Field{
		zap.Time("at", last.Timestamp),
		zap.String(logger.FieldRunID, last.RunID),
	}
	if last.Summary != nil {
		fields = append(fields,
			zap.Int("sent", last.Summary.Sent),
			zap.Int("skipped", last.Summary.Skipped),
			zap.Int("failed", last.Summary.Failed),
			zap.String("stop_reason", last.Summary.StopReason),
		)
	}
	return fields
}
