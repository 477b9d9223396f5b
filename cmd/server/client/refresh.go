package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/handlers/progression/v1alpha1"
)

var (
	refreshCharacterID string
	refreshItemID      string
	refreshFile        string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh an embedded item from its source",
	Long: `Replace an item's data with its compendium source, or with the item in
--file, keeping the choices its advancements already hold.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshCharacterID, "character-id", "", "Character ID (required)")
	refreshCmd.Flags().StringVar(&refreshItemID, "item-id", "", "Embedded item ID (required)")
	refreshCmd.Flags().StringVar(&refreshFile, "file", "", "Item JSON to refresh from instead of the source")
	_ = refreshCmd.MarkFlagRequired("character-id") // nolint:errcheck // safe to ignore in init
	_ = refreshCmd.MarkFlagRequired("item-id")      // nolint:errcheck // safe to ignore in init
}

func runRefresh(_ *cobra.Command, _ []string) error {
	body := v1alpha1.RefreshRequest{
		CharacterID: refreshCharacterID,
		ItemID:      refreshItemID,
	}
	if refreshFile != "" {
		data, err := os.ReadFile(refreshFile) // #nosec G304 operator-supplied path
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", refreshFile, err)
		}
		var item dnd5e.Item
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("failed to parse %s: %w", refreshFile, err)
		}
		body.Item = &item
	}

	client, cleanup, err := createProgressionClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := toStruct(body)
	if err != nil {
		return err
	}
	resp, err := client.Refresh(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to refresh item: %w", err)
	}

	var out v1alpha1.RefreshResponse
	if err := fromStruct(resp, &out); err != nil {
		return err
	}

	if out.Item != nil {
		fmt.Printf("✅ Refreshed %s (%s)\n", out.Item.Name, out.Item.ID)
	}
	if len(out.InvalidAdvancementIDs) > 0 {
		fmt.Printf("\n⚠️  Advancements that could not be loaded:\n")
		for _, id := range out.InvalidAdvancementIDs {
			fmt.Printf("  - %s\n", id)
		}
	}
	printCharacter(out.Character)
	return nil
}
