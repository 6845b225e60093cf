package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Brownie44l1/fabric-inspector/internal/history"
	"github.com/spf13/cobra"
)

var flagLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent predictions stored in PostgreSQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd.Context(), flagLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "Number of entries to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, limit int) error {
	if cfg.DatabaseURL == "" {
		return errors.New("history needs a database: pass --db or set DATABASE_URL")
	}

	pg, err := history.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	entries, err := pg.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No predictions recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tCLASS\tCONFIDENCE\tCREATED")
	fmt.Fprintln(w, "--\t--------\t-----\t----------\t-------")

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", e.ID, e.Filename, e.TopClass, e.Confidence, e.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
