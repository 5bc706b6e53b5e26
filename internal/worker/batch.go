package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// Func adapts a function to Job
type Func func(ctx context.Context) Result

// Execute calls f
func (f Func) Execute(ctx context.Context) Result {
	return f(ctx)
}

// Run executes jobs on a pool of the given size and returns their results in
// job order. When ctx is cancelled mid-batch, unsubmitted and unstarted jobs
// have nil results and ctx.Err() is returned alongside the partial results.
func Run(ctx context.Context, workers int, jobs []Job, opts ...PoolOption) ([]Result, error) {
	if len(jobs) == 0 {
		return []Result{}, ctx.Err()
	}

	pool := NewPool(ctx, workers, opts...)
	pool.Start()

	for _, job := range jobs {
		if !pool.Submit(job) {
			break
		}
	}

	partial := pool.Wait()
	results := make([]Result, len(jobs))
	copy(results, partial)

	return results, ctx.Err()
}

// ReadIDsFromFile reads identifiers from a file, one per line. Blank lines
// and #-comments are skipped and repeats are dropped, keeping first-seen order.
func ReadIDsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			ids = append(ids, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
