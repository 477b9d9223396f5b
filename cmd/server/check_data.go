package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-progression/internal/advancement"
	"github.com/KirkDiggler/rpg-progression/internal/config"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	redisclient "github.com/KirkDiggler/rpg-progression/internal/redis"
)

var fixData bool

var checkDataCmd = &cobra.Command{
	Use:   "check-data",
	Short: "Scan stored characters and snapshots for corrupt entries",
	Long: `Scan Redis for character documents that no longer decode and for
advancement snapshots the engine cannot read. Pass --fix to delete them.`,
	RunE: runCheckData,
}

func init() {
	checkDataCmd.Flags().BoolVar(&fixData, "fix", false, "Delete the corrupt entries")
}

// finding is one corrupt key and why it was flagged
type finding struct {
	key    string
	reason string
}

func runCheckData(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer client.Close() // nolint:errcheck // safe to ignore on exit

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	checked, findings, err := scanData(ctx, client, advancement.NewRegistry())
	if err != nil {
		return err
	}

	cmd.Printf("Checked %d keys, found %d corrupt entries\n", checked, len(findings))
	for _, f := range findings {
		cmd.Printf("  ✗ %s: %s\n", f.key, f.reason)
	}
	if len(findings) == 0 || !fixData {
		return nil
	}

	for _, f := range findings {
		if err := client.Del(ctx, f.key).Err(); err != nil {
			cmd.Printf("Failed to delete %s: %v\n", f.key, err)
			continue
		}
		cmd.Printf("Deleted %s\n", f.key)
	}
	return nil
}

// scanData walks character and snapshot keys. Index sets are skipped.
func scanData(ctx context.Context, client redisclient.Client, registry *advancement.Registry) (int, []finding, error) {
	var (
		checked  int
		findings []finding
	)

	iter := client.Scan(ctx, 0, "character:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasPrefix(key, "character:player:") {
			continue
		}
		checked++

		data, err := client.Get(ctx, key).Result()
		if err != nil {
			return checked, findings, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if reason := checkCharacter(key, data, registry); reason != "" {
			findings = append(findings, finding{key: key, reason: reason})
		}
	}
	if err := iter.Err(); err != nil {
		return checked, findings, fmt.Errorf("failed to scan characters: %w", err)
	}

	iter = client.Scan(ctx, 0, "snapshot:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasPrefix(key, "snapshot:character:") {
			continue
		}
		checked++

		data, err := client.Get(ctx, key).Result()
		if err != nil {
			return checked, findings, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if _, err := registry.DecodeSnapshot([]byte(data)); err != nil {
			findings = append(findings, finding{key: key, reason: err.Error()})
		}
	}
	if err := iter.Err(); err != nil {
		return checked, findings, fmt.Errorf("failed to scan snapshots: %w", err)
	}

	return checked, findings, nil
}

func checkCharacter(key, data string, registry *advancement.Registry) string {
	var character dnd5e.Character
	if err := json.Unmarshal([]byte(data), &character); err != nil {
		return "corrupt JSON"
	}
	if "character:"+character.ID != key {
		return fmt.Sprintf("stored id %q does not match key", character.ID)
	}
	for _, item := range character.Items {
		if item == nil {
			return "null embedded item"
		}
		for id, rec := range item.System.Advancement {
			if rec == nil {
				continue
			}
			if _, ok := registry.Get(rec.Type); !ok {
				return fmt.Sprintf("item %s advancement %s has unknown type %q", item.ID, id, rec.Type)
			}
		}
	}
	return ""
}
