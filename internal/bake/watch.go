package bake

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/meshbake/pkg/zstream"
)

// DefaultDebounce is how long Watch waits for a burst of changes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watcher rebakes models whenever their sources change.
type Watcher struct {
	Jobs     []Job
	Options  Options
	Debounce time.Duration
	Log      *zap.Logger

	// OnResult, if set, is called after every rebake.
	OnResult func(Result)
}

// Watch blocks until ctx is done, rebaking a job whenever a file in its
// source directory with a relevant extension (.obj, .mtl, compressed
// sources or textures) is created or written.
func (w *Watcher) Watch(ctx context.Context) error {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	byDir := make(map[string][]int)
	for i, job := range w.Jobs {
		dir, err := filepath.Abs(filepath.Dir(job.Input))
		if err != nil {
			return err
		}
		if _, ok := byDir[dir]; !ok {
			if err := fsw.Add(dir); err != nil {
				return err
			}
			log.Info("watching", zap.String("dir", dir))
		}
		byDir[dir] = append(byDir[dir], i)
	}

	var (
		mu      sync.Mutex
		pending = make(map[int]bool)
		timer   *time.Timer
		wg      sync.WaitGroup
		bakeMu  sync.Mutex // one rebake batch at a time
	)
	defer wg.Wait()
	flush := func() {
		bakeMu.Lock()
		defer bakeMu.Unlock()

		mu.Lock()
		batch := pending
		pending = make(map[int]bool)
		mu.Unlock()

		for i := range batch {
			job := w.Jobs[i]
			stats, err := Bake(ctx, job, w.Options, log)
			if err != nil {
				log.Error("rebake failed", zap.String("input", job.Input), zap.Error(err))
			}
			if w.OnResult != nil {
				w.OnResult(Result{Job: job, Stats: stats, Err: err})
			}
		}
	}

	for {
		select {
		case e, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isSourceFile(e.Name) {
				continue
			}
			if isOwnOutput(e.Name, w.Jobs) {
				continue
			}
			jobs := byDir[filepath.Dir(e.Name)]
			if len(jobs) == 0 {
				continue
			}
			log.Debug("source changed", zap.String("path", e.Name), zap.Stringer("op", e.Op))

			mu.Lock()
			for _, i := range jobs {
				pending[i] = true
			}
			if timer != nil && timer.Stop() {
				wg.Done()
			}
			wg.Add(1)
			timer = time.AfterFunc(debounce, func() {
				defer wg.Done()
				flush()
			})
			mu.Unlock()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))

		case <-ctx.Done():
			mu.Lock()
			if timer != nil && timer.Stop() {
				wg.Done()
			}
			mu.Unlock()
			return nil
		}
	}
}

func isSourceFile(path string) bool {
	if _, ok := zstream.FormatFromPath(path); ok {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj", ".mtl", ".png", ".jpg", ".jpeg", ".tga":
		return true
	}
	return false
}

// isOwnOutput reports whether path is a compressed source the bake itself
// regenerates from a sibling .obj.
func isOwnOutput(path string, jobs []Job) bool {
	if _, ok := zstream.FormatFromPath(path); !ok {
		return false
	}
	if _, err := os.Stat(zstream.SourcePath(path)); err != nil {
		return false
	}
	abs, _ := filepath.Abs(path)
	for _, job := range jobs {
		if in, _ := filepath.Abs(job.Input); in == abs {
			return true
		}
	}
	return false
}
