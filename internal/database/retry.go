package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialBackoff は接続リトライの初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は接続リトライの最大遅延。
	maxBackoff = 8 * time.Second
	// DefaultConnectAttempts は起動時の接続試行回数。
	DefaultConnectAttempts = 6
)

// CalculateBackoff は失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大8秒。
func CalculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// Retry はconnectが成功するまで最大attempts回、指数バックオフを挟んで試行する。
// コンテナ起動直後などデータストアがまだ受け付けていない場合に使う。
// 全て失敗した場合は最後のエラーを返す。
func Retry(ctx context.Context, name string, attempts int, connect func(ctx context.Context) error) error {
	return retry(ctx, name, attempts, connect, time.After)
}

func retry(
	ctx context.Context,
	name string,
	attempts int,
	connect func(ctx context.Context) error,
	after func(time.Duration) <-chan time.Time,
) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		delay := CalculateBackoff(i)
		slog.Warn("data store not ready; retrying",
			slog.String("store", name),
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-after(delay):
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", name, attempts, err)
}
