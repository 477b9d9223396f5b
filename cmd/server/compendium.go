package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-progression/internal/config"
	"github.com/KirkDiggler/rpg-progression/internal/repositories/compendium"
)

var compendiumPath string

var compendiumCmd = &cobra.Command{
	Use:   "compendium",
	Short: "Manage the local item compendium",
}

var compendiumImportCmd = &cobra.Command{
	Use:   "import <file.yaml>...",
	Short: "Import compendium packs from YAML",
	Long:  `Import one or more YAML files. Each document names a pack and lists the items to upsert into it.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCompendiumImport,
}

var compendiumListCmd = &cobra.Command{
	Use:   "list",
	Short: "List compendium entries",
	RunE:  runCompendiumList,
}

var (
	listPack string
	listType string
)

func init() {
	compendiumCmd.PersistentFlags().StringVar(&compendiumPath, "db", "", "Compendium database (overrides RPG_PROGRESSION_COMPENDIUM_PATH)")
	compendiumListCmd.Flags().StringVar(&listPack, "pack", "", "Only list this pack")
	compendiumListCmd.Flags().StringVar(&listType, "type", "", "Only list this item type")

	compendiumCmd.AddCommand(compendiumImportCmd)
	compendiumCmd.AddCommand(compendiumListCmd)
}

func openCompendium() (*compendium.Store, error) {
	path := compendiumPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		path = cfg.CompendiumPath
	}
	return compendium.NewSQLite(&compendium.Config{Path: path})
}

func runCompendiumImport(cmd *cobra.Command, args []string) error {
	store, err := openCompendium()
	if err != nil {
		return err
	}
	defer store.Close() // nolint:errcheck // safe to ignore on exit

	ctx := context.Background()
	for _, path := range args {
		f, err := os.Open(path) // #nosec G304 operator-supplied path
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		uuids, err := compendium.Import(ctx, store, f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}
		cmd.Printf("imported %d items from %s\n", len(uuids), path)
		for _, uuid := range uuids {
			cmd.Printf("  %s\n", uuid)
		}
	}
	return nil
}

func runCompendiumList(cmd *cobra.Command, _ []string) error {
	store, err := openCompendium()
	if err != nil {
		return err
	}
	defer store.Close() // nolint:errcheck // safe to ignore on exit

	out, err := store.List(context.Background(), compendium.ListInput{Pack: listPack, Type: listType})
	if err != nil {
		return err
	}
	for _, entry := range out.Entries {
		cmd.Printf("%-40s %-12s %s\n", entry.UUID, entry.Item.Type, entry.Item.Name)
	}
	return nil
}
