package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"thunder-scheduler/backend/internal/repository"
	"thunder-scheduler/backend/pkg/logger"
	"thunder-scheduler/backend/pkg/redis"
)

// CalendarCache 日历数据缓存。键带版本号，写入班级或停课记录后递增版本即可整体失效。
// *redis.Client 实现该接口。
type CalendarCache interface {
	CalendarVersion(ctx context.Context) (int64, error)
	BumpCalendarVersion(ctx context.Context) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// calendarLoader 带缓存的日历读取。缓存异常只记录日志，不影响读取。
type calendarLoader struct {
	repo   repository.CalendarRepository
	cache  CalendarCache
	ttl    time.Duration
	logger *zap.Logger
}

func newCalendarLoader(repo repository.CalendarRepository, cache CalendarCache, ttl time.Duration, logger *zap.Logger) *calendarLoader {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &calendarLoader{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Load 读取 [start, end] 的日历数据
func (l *calendarLoader) Load(ctx context.Context, start, end time.Time) (*repository.Calendar, error) {
	log := logger.FromContext(ctx, l.logger)
	if l.cache == nil {
		return l.repo.LoadCalendar(ctx, start, end)
	}

	version, err := l.cache.CalendarVersion(ctx)
	if err != nil {
		log.Warn("读取日历缓存版本失败，直接查库", zap.Error(err))
		return l.repo.LoadCalendar(ctx, start, end)
	}
	key := redis.CalendarKey(version, start, end)

	var cached repository.Calendar
	switch err := l.cache.GetJSON(ctx, key, &cached); {
	case err == nil:
		return &cached, nil
	case !errors.Is(err, redis.ErrCacheMiss):
		log.Warn("读取日历缓存失败", zap.String("key", key), zap.Error(err))
	}

	cal, err := l.repo.LoadCalendar(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if err := l.cache.SetJSON(ctx, key, cal, l.ttl); err != nil {
		log.Warn("写入日历缓存失败", zap.String("key", key), zap.Error(err))
	}
	return cal, nil
}

// Invalidate 使全部日历缓存失效
func (l *calendarLoader) Invalidate(ctx context.Context) {
	if l.cache == nil {
		return
	}
	if err := l.cache.BumpCalendarVersion(ctx); err != nil {
		logger.FromContext(ctx, l.logger).Warn("递增日历缓存版本失败", zap.Error(err))
	}
}
