package tasks

import (
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Runner — ограниченный пул для fire-and-forget задач (выплаты, возвраты,
// уведомления). Паника в задаче не валит процесс, а попадает в лог.
type Runner struct {
	pool *ants.Pool
	log  *zap.Logger
}

func NewRunner(size int, log *zap.Logger) (*Runner, error) {
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(r any) {
		log.Error("background task panicked", zap.Any("panic", r))
	}))
	if err != nil {
		return nil, err
	}
	return &Runner{pool: pool, log: log}, nil
}

// Go ставит задачу в пул. При переполнении выполняет синхронно:
// потерять выплату хуже, чем подождать.
func (r *Runner) Go(task func()) {
	if err := r.pool.Submit(task); err != nil {
		r.log.Warn("task pool saturated, running inline", zap.Error(err))
		task()
	}
}

func (r *Runner) Release() {
	r.pool.Release()
}
