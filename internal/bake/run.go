package bake

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/meshbake/internal/config"
	"github.com/Faultbox/meshbake/pkg/zstream"
)

// Result is the outcome of one job in RunAll.
type Result struct {
	Job   Job
	Stats Stats
	Err   error
}

// OptionsFromConfig returns the pipeline options of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Weld:        cfg.WeldOptions(),
		FallbackDir: cfg.Bake.FallbackDir,
	}
}

// JobsFromConfig returns one job per configured model.
func JobsFromConfig(cfg *config.Config) []Job {
	jobs := make([]Job, 0, len(cfg.Models))
	for _, mc := range cfg.Models {
		jobs = append(jobs, Job{
			Input:     ResolveInput(mc.Input, cfg.Format()),
			Output:    mc.Output,
			Transform: mc.Transform.Matrix(),
		})
	}
	return jobs
}

// ResolveInput maps a plain .obj input to its compressed sibling in format
// f. Compressed inputs are returned unchanged.
func ResolveInput(input string, f zstream.Format) string {
	if strings.EqualFold(filepath.Ext(input), ".obj") {
		return zstream.CompressedPath(input, f)
	}
	return input
}

// RunAll bakes jobs with at most parallel bakes at a time. Bakes share no
// state; a failing job does not stop the others. The returned error joins
// the errors of all failed jobs.
func RunAll(ctx context.Context, jobs []Job, opts Options, parallel int, log *zap.Logger) ([]Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if parallel < 1 {
		parallel = 1
	}

	results := make([]Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, job := range jobs {
		results[i].Job = job
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			stats, err := Bake(ctx, job, opts, log)
			results[i].Stats = stats
			if err != nil {
				results[i].Err = fmt.Errorf("bake %s: %w", job.Input, err)
				log.Error("bake failed", zap.String("input", job.Input), zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}
