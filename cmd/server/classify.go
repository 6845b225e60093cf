package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/fabric-inspector/internal/pipeline"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image>...",
	Short: "Classify and annotate local images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClassify(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(ctx context.Context, paths []string) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Classifying"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	var records []pipeline.Record
	failed := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		rec, err := classifyOne(ctx, a.processor, path)
		bar.Add(1)
		if err != nil {
			failed++
			logger.Error().Err(err).Str("path", path).Msg("classification failed")
			continue
		}
		records = append(records, rec)
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	printRecords(os.Stdout, records)

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(paths))
	}
	return ctx.Err()
}

type fileProcessor interface {
	Process(ctx context.Context, f pipeline.File) (pipeline.Record, error)
}

func classifyOne(ctx context.Context, p fileProcessor, path string) (pipeline.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.Record{}, err
	}
	defer f.Close()

	return p.Process(ctx, pipeline.File{Filename: filepath.Base(path), Body: f})
}

func printRecords(w io.Writer, records []pipeline.Record) {
	for _, rec := range records {
		fmt.Fprintf(w, "%s -> %s\n", rec.Filename, rec.AnnotatedPath)
		fmt.Fprintf(w, "  %s\n", strings.Join(rec.Labels, "\n  "))
	}
}
