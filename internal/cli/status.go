package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active store backend and configured credentials",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a := newApp(cfg, logger)
	status, err := a.adminUseCase().Status(cmd.Context())
	if err != nil {
		return err
	}

	if statusJSON {
		output, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Backend:               %s\n", status.Backend)
	fmt.Printf("Remote configured:     %v\n", status.RemoteConfigured)
	fmt.Printf("Embedding configured:  %v\n", status.EmbeddingConfigured)
	fmt.Printf("Generation configured: %v\n", status.GenerationConfigured)
	fmt.Printf("Records:               %d\n", status.RecordCount)
	return nil
}
