package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored vector from the active backend",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip confirmation")
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		fmt.Print("This removes all stored vectors. Continue? [y/N] ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	a := newApp(cfg, logger)
	if err := a.adminUseCase().Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Cleared all stored vectors.")
	return nil
}
