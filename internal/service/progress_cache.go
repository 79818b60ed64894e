package service

import (
	"context"
	"edu_progress_backend/pkg/logger"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const courseProgressKeyPrefix = "progress:course:"

func courseProgressKey(userID, courseID uint) string {
	return fmt.Sprintf("%s%d:user:%d", courseProgressKeyPrefix, courseID, userID)
}

// RedisProgressCache Redis 不可用时降级为直接计算
type RedisProgressCache struct {
	Client *redis.Client
	TTL    time.Duration
}

var _ ProgressCache = (*RedisProgressCache)(nil)

func NewRedisProgressCache(client *redis.Client, ttl time.Duration) *RedisProgressCache {
	return &RedisProgressCache{Client: client, TTL: ttl}
}

func (c *RedisProgressCache) enabled() bool {
	return c != nil && c.Client != nil && c.TTL > 0
}

func (c *RedisProgressCache) GetCourseProgress(ctx context.Context, userID, courseID uint) (*CourseProgress, bool) {
	if !c.enabled() {
		return nil, false
	}
	data, err := c.Client.Get(ctx, courseProgressKey(userID, courseID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("course progress cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var cp CourseProgress
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, false
	}
	return &cp, true
}

func (c *RedisProgressCache) SetCourseProgress(ctx context.Context, userID, courseID uint, cp *CourseProgress) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return
	}
	if err := c.Client.Set(ctx, courseProgressKey(userID, courseID), data, c.TTL).Err(); err != nil {
		logger.Log.Warn("course progress cache write failed", zap.Error(err))
	}
}

func (c *RedisProgressCache) InvalidateCourseProgress(ctx context.Context, userID, courseID uint) {
	if !c.enabled() {
		return
	}
	// 请求已取消时也要清掉缓存
	if err := c.Client.Del(context.WithoutCancel(ctx), courseProgressKey(userID, courseID)).Err(); err != nil {
		logger.Log.Warn("course progress cache invalidation failed",
			zap.Uint("userId", userID),
			zap.Uint("courseId", courseID),
			zap.Error(err))
	}
}
