package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spigell/segcompare/internal/report"
	"github.com/spigell/segcompare/internal/segment"
	"go.uber.org/zap"
)

var segmentCmd = &cobra.Command{
	Use:   "segment <file>",
	Short: "Split a document into heading sections and optionally store it as a template",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSegment(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(segmentCmd)

	segmentCmd.Flags().StringP("save", "s", "", "store the sections as a template with this name")
	segmentCmd.Flags().BoolP("yes", "y", false, "do not ask for a template name, use --save or the file name")
}

func runSegment(cmd *cobra.Command, path string) {
	logger, config := setup()

	text := newExtractor(config, logger).Text(path)
	if strings.TrimSpace(text) == "" {
		logger.Fatal("no text extracted from document", zap.String("path", path))
	}

	sections := segment.Segment(text)
	logger.Info("document segmented",
		zap.String("path", path),
		zap.Int("sections", sections.Len()),
	)

	report.Preview(os.Stdout, sections)

	name, _ := cmd.Flags().GetString("save")
	yes, _ := cmd.Flags().GetBool("yes")

	if name == "" {
		switch {
		case yes:
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		case isInteractive():
			prompt := promptui.Prompt{
				Label: "Template name (empty to skip)",
			}
			answer, err := prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
			name = strings.TrimSpace(answer)
		}
	}

	if name == "" {
		logger.Info("template not saved")
		return
	}

	if err := newStore(config, logger).Save(name, sections); err != nil {
		logger.Fatal("saving template", zap.Error(err))
	}
}

func isInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
