package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pricescout:refresh:url:"

// Deduplicator 基于 Redis SetNX 的刷新去重。
//
// 同一商品 URL 在窗口期内只刷新一次，避免调度周期与手动批量
// 更新叠加时重复打服务商接口。
type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

// New 创建去重器。ttl 为去重窗口，非正值回退到 10 分钟。
func New(rdb *redis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Deduplicator{
		rdb: rdb,
		ttl: ttl,
	}
}

// Seen 报告该 URL 是否在窗口内已刷新过，未见过则立即标记。
func (d *Deduplicator) Seen(ctx context.Context, url string) (bool, error) {
	if d == nil || d.rdb == nil || url == "" {
		return false, nil
	}
	key := keyPrefix + hashURL(url)
	ok, err := d.rdb.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !ok, nil
}

// Forget 清除标记，让该 URL 可以立即再次刷新。
func (d *Deduplicator) Forget(ctx context.Context, url string) error {
	if d == nil || d.rdb == nil || url == "" {
		return nil
	}
	key := keyPrefix + hashURL(url)
	if err := d.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
