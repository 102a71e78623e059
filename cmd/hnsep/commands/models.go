package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obiente/hnsep/internal/engine"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models in the work dir",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		models, err := engine.Discover(cfg.WorkDir)
		if err != nil {
			return err
		}
		for _, m := range models {
			fmt.Fprintln(cmd.OutOrStdout(), m)
		}
		return nil
	},
}
