package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tcgsync/pkg/config"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/storage"
	"tcgsync/pkg/ui"
)

var (
	copyDest   string
	copySource string
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy stored orders between S3 and local storage",
	Long: `Copy every order document from one backend to the other. Keys whose
content already matches at the destination are skipped, and a failed key
does not stop the copy.

The bucket, prefix and endpoint come from the storage section of the
configuration or the --bucket/--prefix/--endpoint flags.`,
}

var s3ToLocalCmd = &cobra.Command{
	Use:     "s3-to-local",
	Short:   "Download the bucket into a local directory",
	Example: `  tcgsync copy s3-to-local --bucket my-orders --dest ./orders-backup`,
	Args:    cobra.NoArgs,
	RunE:    runS3ToLocal,
}

var localToS3Cmd = &cobra.Command{
	Use:     "local-to-s3",
	Short:   "Upload a local directory into the bucket",
	Example: `  tcgsync copy local-to-s3 --bucket my-orders --source ./orders`,
	Args:    cobra.NoArgs,
	RunE:    runLocalToS3,
}

func init() {
	rootCmd.AddCommand(copyCmd)
	copyCmd.AddCommand(s3ToLocalCmd)
	copyCmd.AddCommand(localToS3Cmd)

	for _, c := range []*cobra.Command{s3ToLocalCmd, localToS3Cmd} {
		c.Flags().StringVar(&bucket, "bucket", "", "bucket name")
		c.Flags().StringVar(&prefix, "prefix", "", "key prefix inside the bucket")
		c.Flags().StringVar(&endpoint, "endpoint", "", "S3-compatible endpoint (default AWS)")
	}
	s3ToLocalCmd.Flags().StringVar(&copyDest, "dest", "", "destination directory")
	_ = s3ToLocalCmd.MarkFlagRequired("dest")
	localToS3Cmd.Flags().StringVar(&copySource, "source", "", "source directory (default: storage path from the configuration)")
}

func copyConfig() (*config.Config, error) {
	cfg, err := loadConfig(map[string]interface{}{
		"bucket":   bucket,
		"prefix":   prefix,
		"endpoint": endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Storage.Bucket == "" {
		return nil, errors.New("a bucket is required (--bucket or storage.bucket)")
	}
	return cfg, nil
}

func runS3ToLocal(cmd *cobra.Command, args []string) error {
	cfg, err := copyConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := storage.NewObjectBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	src.SetLogger(logger.GetLogger())
	dst, err := storage.NewLocalBackend(copyDest)
	if err != nil {
		return err
	}

	ui.PrintInfo("Copying", src.String()+" → "+dst.String())
	report, err := src.CopyToLocal(ctx, copyDest)
	return finishCopy(src.String(), dst.String(), report, err)
}

func runLocalToS3(cmd *cobra.Command, args []string) error {
	cfg, err := copyConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := copySource
	if dir == "" {
		dir = cfg.Storage.Path
	}
	src, err := storage.NewLocalBackend(dir)
	if err != nil {
		return err
	}
	dst, err := storage.NewObjectBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	ui.PrintInfo("Copying", src.String()+" → "+dst.String())
	report, err := storage.Copy(ctx, src, dst, logger.GetLogger())
	return finishCopy(src.String(), dst.String(), report, err)
}

func finishCopy(src, dst string, report *storage.CopyReport, err error) error {
	if report != nil {
		ui.RenderCopyReport(ui.Output, src, dst, report)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Copy aborted")
		return err
	}
	if n := len(report.Failures); n > 0 {
		return fmt.Errorf("%d keys could not be copied", n)
	}
	ui.PrintSuccess("Copy complete: " + report.String())
	return nil
}
