package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// BatchLock はバッチ全体を覆うプロセス横断の排他ロックです
// 取得できなければそのバッチは丸ごとスキップされます（次回トリガー任せ）
type BatchLock interface {
	// TryLock は wait の間だけ取得を試みます。取れなければ false（エラーではない）
	TryLock(ctx context.Context, wait time.Duration) (bool, error)
	Unlock(ctx context.Context) error
}

// RedisConfig はRedis接続の設定です
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient はRedisクライアントを作成します
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisLock は BatchLock のRedis実装です（SET NX + TTL）
// TTLはプロセスが異常終了した場合の自動解放のためで、正常系では Unlock が解放します
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

var _ BatchLock = (*RedisLock)(nil)

const lockPollInterval = 500 * time.Millisecond

// NewRedisLock はロックを作成します。ttl にはバッチ1回の想定最大時間を渡します
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

func (l *RedisLock) TryLock(ctx context.Context, wait time.Duration) (bool, error) {
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// 自分のトークンのときだけ削除する（TTL切れ後に他プロセスのロックを消さない）
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLock) Unlock(ctx context.Context) error {
	if err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	return nil
}
