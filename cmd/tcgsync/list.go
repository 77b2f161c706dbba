package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tcgsync/pkg/logger"
	"tcgsync/pkg/storage"
	"tcgsync/pkg/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored orders with their content hashes",
	Example: `  tcgsync list --storage-path ./orders
  tcgsync list --storage-type s3 --bucket my-orders`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&storageType, "storage-type", "", "local or s3")
	listCmd.Flags().StringVar(&storagePath, "storage-path", "", "directory for local storage")
	listCmd.Flags().StringVar(&bucket, "bucket", "", "bucket name for s3 storage")
	listCmd.Flags().StringVar(&prefix, "prefix", "", "key prefix inside the bucket")
	listCmd.Flags().StringVar(&endpoint, "endpoint", "", "S3-compatible endpoint")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"storage-type": storageType,
		"storage-path": storagePath,
		"bucket":       bucket,
		"prefix":       prefix,
		"endpoint":     endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx := cmd.Context()

	store, err := storage.New(ctx, cfg.Storage, logger.GetLogger())
	if err != nil {
		return err
	}
	keys, err := store.List(ctx)
	if err != nil {
		return err
	}

	rows := make([]ui.KeyHash, 0, len(keys))
	for _, key := range keys {
		hash, err := store.HashOf(ctx, key)
		if err != nil {
			hash = "error: " + err.Error()
		}
		rows = append(rows, ui.KeyHash{Key: key, Hash: hash})
	}
	ui.RenderKeys(ui.Output, store.String(), rows)
	return nil
}
