package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"tcees-validator/internal/domain"

	"golang.org/x/sync/errgroup"
)

// ValidateMany validates up to MaxBatchSize documents concurrently.
// Results keep the order of paths; extra paths are ignored.
func (s *ValidatorService) ValidateMany(ctx context.Context, paths []string, opts domain.ValidateOptions) []*domain.ValidationResult {
	if len(paths) == 0 {
		return []*domain.ValidationResult{}
	}
	if len(paths) > domain.MaxBatchSize {
		s.logger.Warn("Batch truncated", "requested", len(paths), "max", domain.MaxBatchSize)
		paths = paths[:domain.MaxBatchSize]
	}

	s.logger.Info("Starting parallel validation", "documents", len(paths))
	start := time.Now()

	results := make([]*domain.ValidationResult, len(paths))

	var g errgroup.Group
	g.SetLimit(max(1, min(s.config.GetMaxParallel(), len(paths))))
	for i, path := range paths {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Validation panicked", fmt.Errorf("%v", r), "file", filepath.Base(path))
					results[i] = domain.NewErrorResult(filepath.Base(path), fmt.Sprint(r), domain.CodeValidationFailure, "")
				}
			}()
			results[i] = s.ValidatePDF(ctx, path, opts)
			return nil
		})
	}
	_ = g.Wait()

	total := time.Since(start)
	s.logger.Info("Parallel validation finished",
		"documents", len(paths),
		"total", total.String(),
		"average", (total / time.Duration(len(paths))).String(),
	)

	return results
}
