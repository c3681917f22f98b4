package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner は1回分の監視実行のインターフェース。
type Runner interface {
	// RunOnce は全論壇を1回監視する。
	RunOnce(ctx context.Context) error
}

// Scheduler は監視実行をcron式に従って定期的に起動する。
// 前回の実行が終わっていない場合は次の起動をスキップし、実行が重ならないようにする。
type Scheduler struct {
	runner   Runner
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// scheduleが空の場合は@hourlyを使用する。
func NewScheduler(runner Runner, logger *slog.Logger, schedule string) *Scheduler {
	if schedule == "" {
		schedule = "@hourly"
	}
	return &Scheduler{
		runner:   runner,
		logger:   logger,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start はスケジューラを起動し、コンテキストがキャンセルされるまでブロックする。
// 起動直後に1回実行する。停止時は実行中のジョブの完了を待つ。
func (s *Scheduler) Start(ctx context.Context) error {
	// 起動直後の実行と定期実行で同じラップ済みジョブを共有し、実行が重ならないようにする
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).
		Then(cron.FuncJob(func() { s.runOnce(ctx) }))

	if _, err := s.cron.AddJob(s.schedule, job); err != nil {
		return fmt.Errorf("cron式の登録に失敗: %w", err)
	}

	s.logger.Info("監視スケジューラを開始しました",
		slog.String("schedule", s.schedule),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		job.Run()
	}()
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	wg.Wait()
	s.logger.Info("監視スケジューラを停止しました")
	return nil
}

// runOnce は1回の監視実行を行い、エラーはログに記録するだけにする。
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.runner.RunOnce(ctx); err != nil {
		s.logger.Error("監視実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("監視実行が完了しました",
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
