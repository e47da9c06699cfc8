package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	domainHealth "github.com/AzielCF/az-guard/domains/health"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the document store, valkey and the cache sync pool once",
	Run:   healthCheck,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func healthCheck(_ *cobra.Command, _ []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	records, err := healthUsecase.CheckAll(ctx)
	cancel()
	StopApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tID\tSTATUS\tLAST SUCCESS\tMESSAGE")
	healthy := true
	for _, r := range records {
		last := "never"
		if r.LastSuccess != nil {
			last = humanize.Time(*r.LastSuccess)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.EntityType, r.EntityID, r.Status, last, r.LastMessage)
		if r.Status != domainHealth.StatusOk {
			healthy = false
		}
	}
	w.Flush()
	if !healthy {
		os.Exit(1)
	}
}
