package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"finrag/internal/domain"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask a question against the ingested documents",
	Long: `Embed the question, retrieve the most relevant chunks, and generate an
answer grounded in them.

Examples:
  finrag query -q "What was Q3 revenue?"
  finrag query -q "List the main risk factors" --top-k 5 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	a := newApp(cfg, logger)
	queryUC, err := a.queryUseCase()
	if err != nil {
		return err
	}

	answer, err := queryUC.Answer(cmd.Context(), queryText, queryTopK)
	if err != nil {
		if errors.Is(err, domain.ErrNoDocuments) {
			return fmt.Errorf("no documents uploaded. Run 'finrag ingest' first")
		}
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if answer.GenerationErr != "" {
		fmt.Printf("Retrieval succeeded but generation failed: %s\n\n", answer.GenerationErr)
	} else {
		fmt.Println(answer.Content)
		fmt.Println()
	}

	fmt.Printf("Sources (%d):\n", answer.NumSources)
	for _, src := range answer.SourcesUsed {
		fmt.Printf("  - %s\n", src)
	}
	fmt.Printf("Relevance scores: ")
	for i, score := range answer.RelevanceScores {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Printf("%.3f", score)
	}
	fmt.Println()
	return nil
}
