package cmd

import (
	"context"
	"time"

	"github.com/AzielCF/az-guard/usecase"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tables and indexes the services rely on",
	Run:   migrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate(_ *cobra.Command, _ []string) {
	defer StopApp()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := usecase.EnsureIndexes(ctx, docStore); err != nil {
		logrus.Errorf("[MIGRATION] %v", err)
		return
	}
	logrus.Info("[MIGRATION] Done")
}
