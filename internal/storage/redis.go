package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"recruit-dashboard/internal/config"
	"recruit-dashboard/internal/constants"
	"recruit-dashboard/internal/tracing"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = redis.Nil

var redisTracer = otel.Tracer("recruit-dashboard/storage/redis")

// Redis 岗位描述的只读缓存。岗位创建后不可修改，缓存无需失效逻辑。
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建 Redis 客户端并检查连通性
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// FormatKey 用配置的前缀替换键模板中的占位符
func (r *Redis) FormatKey(keyConstant string, parts ...string) string {
	prefix := constants.DefaultKeyPrefix
	if r.config != nil && r.config.KeyPrefix != "" {
		prefix = r.config.KeyPrefix
	}
	base := strings.Replace(keyConstant, constants.PrefixPlaceholder, prefix, 1)
	if len(parts) > 0 {
		return base + strings.Join(parts, ":")
	}
	return base
}

func (r *Redis) jobTTL() time.Duration {
	if r.config == nil || r.config.JobCacheTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(r.config.JobCacheTTLMinutes) * time.Minute
}

// GetJobDescription 读取缓存的岗位描述，未命中返回 ErrCacheMiss
func (r *Redis) GetJobDescription(ctx context.Context, jobID uint) (string, error) {
	key := r.FormatKey(constants.JobDescriptionKey, strconv.FormatUint(uint64(jobID), 10))
	ctx, span := redisTracer.Start(ctx, "Redis.GetJobDescription")
	defer span.End()
	span.SetAttributes(attribute.String("db.redis.key", tracing.SafeRedisKey(key)))

	val, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return "", ErrCacheMiss
		}
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return "", fmt.Errorf("读取岗位描述缓存失败: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return val, nil
}

// SetJobDescription 写入岗位描述缓存
func (r *Redis) SetJobDescription(ctx context.Context, jobID uint, description string) error {
	key := r.FormatKey(constants.JobDescriptionKey, strconv.FormatUint(uint64(jobID), 10))
	ctx, span := redisTracer.Start(ctx, "Redis.SetJobDescription")
	defer span.End()

	if err := r.Client.Set(ctx, key, description, r.jobTTL()).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("写入岗位描述缓存失败: %w", err)
	}
	return nil
}

// Ping 检查连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// Close 关闭连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}
