package storage

import (
	"context"
	"fmt"
	"strings"

	"recruit-dashboard/internal/config"
	applogger "recruit-dashboard/internal/logger"
)

// Storage 聚合所有存储依赖。SQLite 必须可用，其余组件未配置或连接失败时为 nil。
type Storage struct {
	// 关系型数据库
	SQLite *SQLite

	// 岗位描述缓存
	Redis *Redis

	// 简历归档
	MinIO *MinIO

	// 候选人事件
	RabbitMQ *RabbitMQ
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	log := applogger.Component("storage")

	db, err := NewSQLite(&cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("初始化SQLite失败: %w", err)
	}
	s := &Storage{SQLite: db}
	log.Info().Str("path", cfg.Store.Path).Msg("SQLite初始化成功")

	var initErrors []string

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		log.Debug().Msg("Redis未配置, 跳过初始化")
	}

	if cfg.MinIO.Endpoint != "" {
		s.MinIO, err = NewMinIO(ctx, &cfg.MinIO)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	} else {
		log.Debug().Msg("MinIO未配置, 跳过初始化")
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	} else {
		log.Debug().Msg("RabbitMQ未配置, 跳过初始化")
	}

	if len(initErrors) > 0 {
		log.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("以下可选存储组件初始化失败，已禁用")
	}
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	log := applogger.Component("storage")
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.SQLite != nil {
		if err := s.SQLite.Close(); err != nil {
			log.Error().Err(err).Msg("关闭SQLite失败")
		}
	}
}
