// Package cleanup は期限切れ認証データの定期削除ジョブを提供する。
// 期限切れのセッションとリフレッシュトークンを一定間隔で削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はStartに0以下の間隔が渡された場合の実行間隔。
const DefaultInterval = time.Hour

// Purger は期限切れのエントリを削除し、削除件数を返す。
// repository.PostgresSessionRepo、repository.PostgresRefreshTokenRepo、
// auth.MemoryRegistryが実装する。
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Recorder は削除件数をメトリクスに記録する。
type Recorder interface {
	RecordPurged(kind string, count int64)
}

// Target は削除対象の種別名とPurgerの組。
type Target struct {
	Kind   string
	Purger Purger
}

// CleanupJob は期限切れ認証データの削除ジョブ。
// 削除は冪等で、対象がなくてもエラーにならない。
type CleanupJob struct {
	targets  []Target
	logger   *slog.Logger
	recorder Recorder
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでよい。
func NewCleanupJob(logger *slog.Logger, recorder Recorder, targets ...Target) *CleanupJob {
	return &CleanupJob{
		targets:  targets,
		logger:   logger,
		recorder: recorder,
	}
}

// Run は全対象の期限切れエントリを1回削除する。
// 1つの対象が失敗しても残りの対象は処理し、失敗はまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	var errs []error
	var total int64
	for _, t := range j.targets {
		n, err := t.Purger.PurgeExpired(ctx)
		if err != nil {
			j.logger.Error("期限切れデータの削除に失敗しました",
				slog.String("kind", t.Kind),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("purge %s: %w", t.Kind, err))
			continue
		}
		if j.recorder != nil {
			j.recorder.RecordPurged(t.Kind, n)
		}
		j.logger.Info("期限切れデータを削除しました",
			slog.String("kind", t.Kind),
			slog.Int64("deleted_count", n),
		)
		total += n
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_total", total),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return errors.Join(errs...)
}

// Start はinterval間隔でRunを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("target_count", len(j.targets)),
	)

	j.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
