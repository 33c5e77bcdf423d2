// Package batch runs draws for many event directories with a bounded worker
// pool. Each draw is independent; a failure in one event never stops the
// others.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/albapepper/teamdraw/internal/config"
	"github.com/albapepper/teamdraw/internal/draw"
	"github.com/albapepper/teamdraw/internal/roster"
)

// Result tracks the outcome of drawing a single event.
type Result struct {
	Dir        string
	Players    int
	Teams      int
	Nodes      int
	Success    bool
	Infeasible bool
	Error      string
	Duration   time.Duration
}

// Summary returns a human-readable summary.
func (r *Result) Summary() string {
	status := "ok"
	switch {
	case r.Infeasible:
		status = "INFEASIBLE"
	case !r.Success:
		status = "FAILED"
	}
	return fmt.Sprintf("dir=%s players=%d teams=%d nodes=%d status=%s dur=%s",
		r.Dir, r.Players, r.Teams, r.Nodes, status, r.Duration.Round(time.Millisecond))
}

// RunResult tracks the outcome of a full batch run.
type RunResult struct {
	EventsFound int
	Succeeded   int
	Infeasible  int
	Failed      int
	Duration    time.Duration
	Errors      []string
	Results     []Result
}

// Summary returns a human-readable summary.
func (r *RunResult) Summary() string {
	return fmt.Sprintf("found=%d succeeded=%d infeasible=%d failed=%d dur=%s",
		r.EventsFound, r.Succeeded, r.Infeasible, r.Failed, r.Duration.Round(time.Millisecond))
}

// OK reports whether every event was drawn.
func (r *RunResult) OK() bool {
	return r.Succeeded == r.EventsFound
}

// Discover returns the directories under root, root included, that hold a
// players file, sorted by path.
func Discover(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == config.PlayersFile {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover events under %s: %w", root, err)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Run draws every directory using up to workers goroutines. Results keep the
// order of dirs.
func Run(ctx context.Context, dirs []string, workers int, logger *slog.Logger) RunResult {
	start := time.Now()
	result := RunResult{
		EventsFound: len(dirs),
		Results:     make([]Result, len(dirs)),
	}
	if len(dirs) == 0 {
		logger.Info("No events to draw")
		return result
	}

	if workers < 1 {
		workers = 1
	}
	if workers > len(dirs) {
		workers = len(dirs)
	}

	ch := make(chan int, len(dirs))
	for i := range dirs {
		ch <- i
	}
	close(ch)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range ch {
				result.Results[i] = drawOne(ctx, dirs[i], logger)
			}
		}()
	}
	wg.Wait()

	for _, r := range result.Results {
		switch {
		case r.Success:
			result.Succeeded++
		case r.Infeasible:
			result.Infeasible++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", r.Dir, r.Error))
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", r.Dir, r.Error))
		}
	}
	result.Duration = time.Since(start)

	logger.Info("Batch run complete", "summary", result.Summary())
	return result
}

func drawOne(ctx context.Context, dir string, logger *slog.Logger) Result {
	start := time.Now()
	r := Result{Dir: dir}
	if err := ctx.Err(); err != nil {
		r.Error = err.Error()
		return r
	}

	ev := roster.NewDir(dir)
	d, err := draw.Run(ctx, ev, ev, logger.With("dir", dir))
	r.Duration = time.Since(start)
	if err != nil {
		r.Error = err.Error()
		r.Infeasible = errors.Is(err, draw.ErrInfeasible)
		return r
	}

	r.Success = true
	r.Players = len(d.Roster.Players)
	r.Teams = len(d.Result.Teams)
	r.Nodes = d.Result.Stats.Nodes
	return r
}
