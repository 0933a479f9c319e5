package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sidekick-dev/sidekick/internal/config"
	"github.com/sidekick-dev/sidekick/internal/provider"
	"github.com/sidekick-dev/sidekick/internal/secrets"
	"github.com/sidekick-dev/sidekick/internal/storage"
)

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List available models",
	Long: `List all models from configured providers.

Examples:
  sidekick models              # List all models
  sidekick models anthropic    # List only Anthropic models`,
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}

	store := storage.New(paths.StoragePath())
	keys := secrets.NewKeys(store)
	providers := provider.InitializeProviders(context.Background(), appConfig, keys)

	var providerFilter string
	if len(args) > 0 {
		providerFilter = args[0]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\tFEATURES\t")

	for _, model := range providers.AllModels() {
		if providerFilter != "" && model.ProviderID != providerFilter {
			continue
		}
		features := ""
		if model.SupportsVision {
			features += "vision "
		}
		if model.SupportsTools {
			features += "tools "
		}
		fmt.Fprintf(w, "%s\t%s\t%dk\t%s\t\n",
			model.ProviderID,
			model.ID,
			model.ContextLength/1000,
			features,
		)
	}

	return w.Flush()
}
