package validator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
)

const (
	// DefaultWorkers 默认并发探测数
	DefaultWorkers = 10
	// MaxWorkers 并发上限，避免压垮被测后端
	MaxWorkers = 20
)

// Job 一批同类实体的校验任务
type Job[T any] struct {
	Kind     catalog.Kind
	Items    []T
	NameOf   func(T) string
	Validate func(ctx context.Context, item T) outcome.Outcome
}

// ResultFunc 每个实体完成后回调，done 为已完成数量；调用是串行的
type ResultFunc func(done, total int, o outcome.Outcome)

// Run 用固定大小的 worker 池执行校验。
// 单个实体的失败、超时或 panic 只影响它自己的结果，结果顺序与 Items 一致。
func Run[T any](ctx context.Context, job Job[T], workers int, onResult ResultFunc) []outcome.Outcome {
	workers = clampWorkers(workers)
	results := make([]outcome.Outcome, len(job.Items))

	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	g.SetLimit(workers)

	for i := range job.Items {
		i := i
		g.Go(func() error {
			o := runOne(ctx, job, job.Items[i])
			results[i] = o

			if onResult != nil {
				mu.Lock()
				done++
				onResult(done, len(job.Items), o)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runOne[T any](ctx context.Context, job Job[T], item T) (o outcome.Outcome) {
	name := job.NameOf(item)

	defer func() {
		if r := recover(); r != nil {
			o = outcome.Failed(job.Kind, name, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return outcome.Failed(job.Kind, name, "run cancelled: "+err.Error())
	}
	return job.Validate(ctx, item)
}

func clampWorkers(n int) int {
	switch {
	case n <= 0:
		return DefaultWorkers
	case n > MaxWorkers:
		return MaxWorkers
	}
	return n
}
