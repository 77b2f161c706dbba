package storage

import (
	"context"
	"errors"
	"fmt"

	"tcgsync/pkg/logger"
)

// CopyReport summarizes a bulk copy
type CopyReport struct {
	Copied   int
	Skipped  int
	Failures []CopyFailure
}

type CopyFailure struct {
	Key string
	Err error
}

func (r *CopyReport) String() string {
	return fmt.Sprintf("copied %d, skipped %d, failed %d", r.Copied, r.Skipped, len(r.Failures))
}

// Copy transfers every key of src to dst, skipping keys whose destination
// content already has the same hash. A failing key is recorded and the copy
// moves on; only listing src or cancellation stops it.
func Copy(ctx context.Context, src, dst Backend, log logger.Logger) (*CopyReport, error) {
	log = logger.OrDefault(log).WithFields(map[string]interface{}{
		"component": "copy",
		"source":    src.String(),
		"dest":      dst.String(),
	})

	keys, err := src.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &CopyReport{}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		skipped, err := copyKey(ctx, src, dst, key)
		if err != nil {
			log.WarnWithFields("Copy failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			report.Failures = append(report.Failures, CopyFailure{Key: key, Err: err})
			continue
		}
		if skipped {
			report.Skipped++
		} else {
			report.Copied++
		}
	}

	logger.LogMetrics(log, "copy", map[string]interface{}{
		"copied":  report.Copied,
		"skipped": report.Skipped,
		"failed":  len(report.Failures),
	})
	return report, nil
}

func copyKey(ctx context.Context, src, dst Backend, key string) (skipped bool, err error) {
	srcHash, err := src.HashOf(ctx, key)
	if err != nil {
		return false, err
	}
	dstHash, err := dst.HashOf(ctx, key)
	switch {
	case err == nil && dstHash == srcHash:
		return true, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return false, err
	}

	data, err := src.Read(ctx, key)
	if err != nil {
		return false, err
	}
	return false, dst.Write(ctx, key, data)
}
