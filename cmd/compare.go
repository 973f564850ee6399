package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spigell/segcompare/internal/ai"
	"github.com/spigell/segcompare/internal/compare"
	"github.com/spigell/segcompare/internal/history"
	"github.com/spigell/segcompare/internal/report"
	"github.com/spigell/segcompare/internal/segment"
	"go.uber.org/zap"
)

var compareCmd = &cobra.Command{
	Use:   "compare <filled-file>",
	Short: "Compare a filled document against a template section by section",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runCompare(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringP("template", "t", "", "name of a stored template")
	compareCmd.Flags().String("template-file", "", "segment this document and use it as the template")
	compareCmd.Flags().StringSlice("status", nil, "show only sections with these statuses")
	compareCmd.Flags().StringP("output", "o", "", "write the full report as JSON to this file")
	compareCmd.Flags().IntP("workers", "w", 0, "concurrent oracle calls (default from oracle.workers)")
}

func runCompare(cmd *cobra.Command, filledPath string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, config := setup()

	statusFlags, _ := cmd.Flags().GetStringSlice("status")
	statuses, err := report.ParseStatuses(statusFlags)
	if err != nil {
		logger.Fatal("parsing --status", zap.Error(err))
	}

	extractor := newExtractor(config, logger)

	templateName, template := loadTemplate(cmd, config, logger)

	text := extractor.Text(filledPath)
	if strings.TrimSpace(text) == "" {
		logger.Warn("filled document is empty, every section will be reported missing", zap.String("path", filledPath))
	}
	filled := segment.Segment(text)

	workers := config.Oracle.Workers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}

	comparator := compare.New(lazyOracle(ctx, config, logger), logger, compare.Options{
		Workers:      workers,
		Timeout:      config.Oracle.Timeout,
		MaxLogLength: config.Oracle.MaxLogLength,
	})

	logger.Info("starting the comparison",
		zap.String("template", templateName),
		zap.String("filled", filledPath),
		zap.Int("template_sections", template.Len()),
		zap.Int("filled_sections", filled.Len()),
	)

	result, err := comparator.Compare(ctx, template, filled)
	if err != nil {
		logger.Warn("comparison incomplete, showing partial report", zap.Error(err))
	}

	report.Table(os.Stdout, report.Filter(result, statuses...))
	report.WriteSummary(os.Stdout, report.Summarize(result))

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		writeReport(output, result, logger)
	}

	if err != nil {
		return
	}

	if config.History.Database != "" {
		recordRun(config, templateName, filledPath, result, logger)
	}
}

func loadTemplate(cmd *cobra.Command, config *Config, logger *zap.Logger) (string, *segment.Map) {
	name, _ := cmd.Flags().GetString("template")
	file, _ := cmd.Flags().GetString("template-file")

	switch {
	case name != "" && file != "":
		logger.Fatal("--template and --template-file are mutually exclusive")
	case file != "":
		text := newExtractor(config, logger).Text(file)
		if strings.TrimSpace(text) == "" {
			logger.Fatal("no text extracted from template document", zap.String("path", file))
		}
		return filepath.Base(file), segment.Segment(text)
	}

	store := newStore(config, logger)

	if name == "" {
		names, err := store.List()
		if err != nil {
			logger.Fatal("listing templates", zap.Error(err))
		}
		if len(names) == 0 {
			logger.Fatal("no stored templates, run the segment command first or pass --template-file",
				zap.String("dir", store.Dir()),
			)
		}
		if !isInteractive() {
			logger.Fatal("--template is required when not running interactively", zap.Strings("templates", names))
		}

		prompt := promptui.Select{
			Label: "Template",
			Items: names,
		}
		_, name, err = prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	template, err := store.Load(name)
	if err != nil {
		logger.Fatal("loading template", zap.Error(err))
	}

	return name, template
}

// lazyOracle defers provider setup until a section actually needs a judgment,
// so identical documents compare without credentials.
func lazyOracle(ctx context.Context, config *Config, logger *zap.Logger) compare.Oracle {
	var (
		once  sync.Once
		judge *ai.Judge
		err   error
	)

	return compare.OracleFunc(func(callCtx context.Context, templateSection, filledSection string) (string, error) {
		once.Do(func() {
			var generator ai.Generator
			generator, err = ai.NewGenerator(ctx, config.Oracle.Provider, config.Oracle.Options, logger)
			if err != nil {
				logger.Error("creating the judgment oracle", zap.Error(err))
				return
			}
			judge = ai.NewJudge(generator, logger, config.Oracle.MaxLogLength)
		})
		if err != nil {
			return "", err
		}
		return judge.Judge(callCtx, templateSection, filledSection)
	})
}

func writeReport(path string, result *compare.Report, logger *zap.Logger) {
	f, err := os.Create(path)
	if err != nil {
		logger.Fatal("creating report file", zap.Error(err))
	}

	writeErr := report.WriteJSON(f, result)
	closeErr := f.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		logger.Fatal("writing report", zap.String("path", path), zap.Error(err))
	}

	logger.Info("report written", zap.String("path", path))
}

func recordRun(config *Config, templateName, filledPath string, result *compare.Report, logger *zap.Logger) {
	db, err := history.Open(config.History.Database, logger)
	if err != nil {
		logger.Error("opening history, run not recorded", zap.Error(err))
		return
	}
	defer db.Close()

	if _, err := db.Record(templateName, filledPath, result); err != nil {
		logger.Error("recording run", zap.Error(err))
	}
}
