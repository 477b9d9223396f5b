// Package main is the entry point for the progression gRPC server
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-progression/cmd/server/client"
)

var rootCmd = &cobra.Command{
	Use:   "rpg-progression",
	Short: "RPG character progression gRPC server",
	Long:  `rpg-progression levels characters up and down through the advancements on their class, subclass, race and background items.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(compendiumCmd)
	rootCmd.AddCommand(checkDataCmd)
	rootCmd.AddCommand(client.ClientCmd)
}
