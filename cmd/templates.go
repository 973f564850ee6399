package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spigell/segcompare/internal/report"
	"go.uber.org/zap"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage stored templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		logger, config := setup()
		store := newStore(config, logger)

		names, err := store.List()
		if err != nil {
			logger.Fatal("listing templates", zap.Error(err))
		}

		if len(names) == 0 {
			logger.Info("no templates stored", zap.String("dir", store.Dir()))
			return
		}

		for _, name := range names {
			fmt.Println(name)
		}
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the sections of a stored template",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger, config := setup()

		template, err := newStore(config, logger).Load(args[0])
		if err != nil {
			logger.Fatal("loading template", zap.Error(err))
		}

		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			// do not bother error since the template was just decoded
			pretty, _ := json.MarshalIndent(template, "", "    ")
			fmt.Println(string(pretty))
			return
		}

		report.Preview(os.Stdout, template)
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored template",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		logger, config := setup()

		if err := newStore(config, logger).Delete(args[0]); err != nil {
			logger.Fatal("deleting template", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd, templatesDeleteCmd)

	templatesShowCmd.Flags().Bool("raw", false, "print the stored JSON instead of a table")
}
