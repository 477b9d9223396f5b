// Package client provides test commands for the progression gRPC service
package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/KirkDiggler/rpg-progression/internal/handlers/progression/v1alpha1"
)

var (
	// Connection flags
	serverAddr string
	timeout    time.Duration
)

// ClientCmd is the root command for all client test commands
var ClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Test client commands for the progression service",
	Long:  `Client commands exercise the progression service by making real gRPC requests.`,
}

func init() {
	ClientCmd.PersistentFlags().StringVar(&serverAddr, "server", "localhost:50052", "gRPC server address")
	ClientCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// Character commands
	ClientCmd.AddCommand(createCharacterCmd)
	ClientCmd.AddCommand(getCharacterCmd)

	// Level commands
	ClientCmd.AddCommand(planLevelUpCmd)
	ClientCmd.AddCommand(levelUpCmd)
	ClientCmd.AddCommand(levelDownCmd)
	ClientCmd.AddCommand(refreshCmd)
}

// createConnection creates a gRPC connection to the server
func createConnection() (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(serverAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	return conn, nil
}

// createProgressionClient creates a progression service client
func createProgressionClient() (v1alpha1.ProgressionServiceClient, func(), error) {
	conn, err := createConnection()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = conn.Close() // nolint:errcheck // safe to ignore in cleanup
	}

	return v1alpha1.NewProgressionServiceClient(conn), cleanup, nil
}

// toStruct converts a request body to the wire message
func toStruct(req any) (*structpb.Struct, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return out, nil
}

// fromStruct decodes a wire message into a response body
func fromStruct(in *structpb.Struct, target any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parsePayloads turns key=json flags into advancement payloads. A value that
// is not valid JSON is sent as a string.
func parsePayloads(flags []string) (map[string]json.RawMessage, error) {
	if len(flags) == 0 {
		return nil, nil
	}

	payloads := make(map[string]json.RawMessage, len(flags))
	for _, flag := range flags {
		key, value, ok := strings.Cut(flag, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("payload %q must be key=value", flag)
		}
		if _, exists := payloads[key]; exists {
			return nil, fmt.Errorf("payload %q given twice", key)
		}
		if !json.Valid([]byte(value)) {
			quoted, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("payload %q: %w", key, err)
			}
			value = string(quoted)
		}
		payloads[key] = json.RawMessage(value)
	}
	return payloads, nil
}

func printSteps(steps []v1alpha1.Step) {
	if len(steps) == 0 {
		fmt.Printf("\nNo advancements at this level\n")
		return
	}
	fmt.Printf("\nAdvancements:\n")
	for _, step := range steps {
		source := step.Source
		if source == "" {
			source = "-"
		}
		fmt.Printf("  - [%s] %s (%s, level %d) from %s: %s\n",
			source, step.Title, step.Type, step.Level, step.ItemName, step.Key)
	}
}
