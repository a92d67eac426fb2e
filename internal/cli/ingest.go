package cli

import (
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"finrag/internal/adapter/fs"
	"finrag/internal/domain"
)

var (
	ingestChunkSize    int
	ingestChunkOverlap int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Ingest extracted document text into the vector store",
	Long: `Ingest one or more files of already-extracted text. Directories are
walked with the configured include/exclude patterns. Re-ingesting identical
content is recognized by fingerprint and skipped without embedding calls.

Examples:
  finrag ingest report.txt
  finrag ingest ./filings --chunk-size 1000 --chunk-overlap 200`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "chunk window size (default from config)")
	ingestCmd.Flags().IntVar(&ingestChunkOverlap, "chunk-overlap", -1, "chunk window overlap (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a := newApp(cfg, logger)
	ingestUC, err := a.ingestUseCase(ingestChunkSize, ingestChunkOverlap)
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no ingestible files found")
	}

	var bar *progressbar.ProgressBar
	if len(files) > 1 {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
		)
	}

	var (
		mu           sync.Mutex
		stored       int
		deduplicated int
		failed       int
		errs         []string
	)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Ingest.Workers)
	for _, file := range files {
		file := file
		g.Go(func() error {
			text, err := fs.ReadFile(file.Path)

			var result *domain.IngestResult
			if err == nil {
				result, err = ingestUC.Ingest(ctx, file.Path, text)
			}

			mu.Lock()
			defer mu.Unlock()
			if bar != nil {
				_ = bar.Add(1)
			}
			if err != nil {
				failed++
				errs = append(errs, fmt.Sprintf("%s: %v", file.Path, err))
				return nil // one bad document does not abort the rest
			}
			if result.Deduplicated {
				deduplicated++
			} else {
				stored += result.ChunksStored
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("Ingested %d file(s): %d chunks stored, %d already known, %d failed\n",
		len(files), stored, deduplicated, failed)
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  error: %s\n", e)
	}
	if failed == len(files) {
		return fmt.Errorf("all files failed to ingest")
	}
	return nil
}

// collectFiles expands the argument list: files are taken as-is,
// directories are walked with the configured patterns.
func collectFiles(paths []string) ([]fs.FileInfo, error) {
	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)

	var files []fs.FileInfo
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := walker.Walk(p)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		files = append(files, fs.FileInfo{Path: p, Size: info.Size()})
	}
	return files, nil
}
