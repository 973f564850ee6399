package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spigell/segcompare/internal/history"
	"github.com/spigell/segcompare/internal/report"
	"go.uber.org/zap"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded compare runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent runs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		logger, config := setup()
		db := openHistory(config, logger)
		defer db.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := db.List(limit)
		if err != nil {
			logger.Fatal("listing runs", zap.Error(err))
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetAutoWrapText(false)
		table.SetHeader([]string{"ID", "Created", "Template", "Filled", "Sections", "Mean match", "Missing", "Lacking", "Other"})

		for _, run := range runs {
			table.Append([]string{
				run.ID,
				run.CreatedAt.Local().Format("2006-01-02 15:04"),
				run.Template,
				run.FilledPath,
				strconv.Itoa(run.Sections),
				fmt.Sprintf("%.1f%%", run.MeanMatchPercent),
				strconv.Itoa(run.Missing),
				strconv.Itoa(run.Lacking),
				strconv.Itoa(run.OtherIssue),
			})
		}
		table.Render()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the report of a recorded run",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		logger, config := setup()
		db := openHistory(config, logger)
		defer db.Close()

		run, err := db.Get(args[0])
		if err != nil {
			logger.Fatal("loading run", zap.Error(err))
		}

		result, err := run.Report()
		if err != nil {
			logger.Fatal("decoding run", zap.Error(err))
		}

		fmt.Printf("Run %s: %s against %s at %s\n", run.ID, run.FilledPath, run.Template, run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		report.Table(os.Stdout, result)
		report.WriteSummary(os.Stdout, report.Summarize(result))
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd)

	historyListCmd.Flags().IntP("limit", "n", 20, "how many runs to show, 0 for all")
}

func openHistory(config *Config, logger *zap.Logger) *history.DB {
	if config.History.Database == "" {
		logger.Fatal("history is disabled, set history.database in the config")
	}

	db, err := history.Open(config.History.Database, logger)
	if err != nil {
		logger.Fatal("opening history", zap.Error(err))
	}
	return db
}
