package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-progression/internal/handlers/progression/v1alpha1"
	"github.com/KirkDiggler/rpg-progression/internal/services/progression"
)

var (
	levelCharacterID string
	levelClassItemID string
	levelClassUUID   string
	levelPayloads    []string
)

var planLevelUpCmd = &cobra.Command{
	Use:   "plan-level-up",
	Short: "Show the advancements a level up would apply",
	Long: `Run a level up without saving it. Steps with no source still need a
payload, passed to level-up as --payload <key>=<json>.`,
	RunE: runPlanLevelUp,
}

var levelUpCmd = &cobra.Command{
	Use:   "level-up",
	Short: "Add a class level to a character",
	Long: `Add a level to an existing class (--class-item-id) or a first level
of a new class from the compendium (--class-uuid).`,
	RunE: runLevelUp,
}

var levelDownCmd = &cobra.Command{
	Use:   "level-down",
	Short: "Remove the highest level of a class",
	RunE:  runLevelDown,
}

func init() {
	for _, cmd := range []*cobra.Command{planLevelUpCmd, levelUpCmd} {
		cmd.Flags().StringVar(&levelCharacterID, "character-id", "", "Character ID (required)")
		cmd.Flags().StringVar(&levelClassItemID, "class-item-id", "", "Class item to level")
		cmd.Flags().StringVar(&levelClassUUID, "class-uuid", "", "Compendium UUID of a new class")
		cmd.Flags().StringArrayVar(&levelPayloads, "payload", nil, "Advancement payload as key=json (repeatable)")
		cmd.MarkFlagsMutuallyExclusive("class-item-id", "class-uuid")
		cmd.MarkFlagsOneRequired("class-item-id", "class-uuid")
		_ = cmd.MarkFlagRequired("character-id") // nolint:errcheck // safe to ignore in init
	}

	levelDownCmd.Flags().StringVar(&levelCharacterID, "character-id", "", "Character ID (required)")
	levelDownCmd.Flags().StringVar(&levelClassItemID, "class-item-id", "", "Class item to level down (required)")
	_ = levelDownCmd.MarkFlagRequired("character-id")  // nolint:errcheck // safe to ignore in init
	_ = levelDownCmd.MarkFlagRequired("class-item-id") // nolint:errcheck // safe to ignore in init
}

func levelUpRequest() (*v1alpha1.LevelUpRequest, error) {
	payloads, err := parsePayloads(levelPayloads)
	if err != nil {
		return nil, err
	}
	return &v1alpha1.LevelUpRequest{
		CharacterID: levelCharacterID,
		ClassItemID: levelClassItemID,
		ClassUUID:   levelClassUUID,
		Payloads:    payloads,
	}, nil
}

func runPlanLevelUp(_ *cobra.Command, _ []string) error {
	body, err := levelUpRequest()
	if err != nil {
		return err
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
	resp, err := client.PlanLevelUp(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to plan level up: %w", err)
	}

	var out v1alpha1.PlanResponse
	if err := fromStruct(resp, &out); err != nil {
		return err
	}

	fmt.Printf("📈 Level Up Plan\n\n")
	fmt.Printf("Class Item: %s\n", out.ClassItemID)
	fmt.Printf("Class Level: %d\n", out.ClassLevel)
	fmt.Printf("Character Level: %d\n", out.CharacterLevel)
	printSteps(out.Steps)

	if out.Ready {
		fmt.Printf("\n✅ Ready to level up\n")
		return nil
	}
	fmt.Printf("\n⚠️  Input required for:\n")
	for _, step := range out.Steps {
		if step.Source == progression.SourceRequired {
			fmt.Printf("  --payload %s=<json>\n", step.Key)
		}
	}
	return nil
}

func runLevelUp(_ *cobra.Command, _ []string) error {
	body, err := levelUpRequest()
	if err != nil {
		return err
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
	resp, err := client.LevelUp(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to level up: %w", err)
	}

	var out v1alpha1.TransitionResponse
	if err := fromStruct(resp, &out); err != nil {
		return err
	}

	fmt.Printf("✅ Reached class level %d\n", out.ClassLevel)
	printSteps(out.Steps)
	printCharacter(out.Character)
	return nil
}

func runLevelDown(_ *cobra.Command, _ []string) error {
	client, cleanup, err := createProgressionClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := toStruct(v1alpha1.LevelDownRequest{
		CharacterID: levelCharacterID,
		ClassItemID: levelClassItemID,
	})
	if err != nil {
		return err
	}
	resp, err := client.LevelDown(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to level down: %w", err)
	}

	var out v1alpha1.TransitionResponse
	if err := fromStruct(resp, &out); err != nil {
		return err
	}

	if out.ClassLevel == 0 {
		fmt.Printf("✅ Removed class %s\n", levelClassItemID)
	} else {
		fmt.Printf("✅ Dropped to class level %d\n", out.ClassLevel)
	}
	printSteps(out.Steps)
	printCharacter(out.Character)
	return nil
}
