package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"recruit-dashboard/internal/config"
	applogger "recruit-dashboard/internal/logger"
	"recruit-dashboard/internal/storage/models"
	"recruit-dashboard/internal/tracing"

	"github.com/glebarez/sqlite"
	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrRecordNotFound 记录不存在
var ErrRecordNotFound = gorm.ErrRecordNotFound

// ErrStoreLocked 数据库文件已被另一个进程持有
var ErrStoreLocked = errors.New("store file is locked by another process")

// RecordStore 岗位与候选人的持久化接口
type RecordStore interface {
	ListJobs(ctx context.Context) ([]models.Job, error)
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uint) (*models.Job, error)
	ListCandidatesByJob(ctx context.Context, jobID uint) ([]models.Candidate, error)
	GetCandidate(ctx context.Context, id uint) (*models.Candidate, error)
	CreateCandidate(ctx context.Context, candidate *models.Candidate) error
	UpdateCandidateStatus(ctx context.Context, id uint, status string) (bool, error)
	DeleteCandidate(ctx context.Context, id uint) (bool, error)
	Ping(ctx context.Context) error
}

var _ RecordStore = (*SQLite)(nil)

// SQLite 单文件关系存储，进程内只持有一个连接
type SQLite struct {
	db   *gorm.DB
	cfg  *config.StoreConfig
	lock *flock.Flock
}

// NewSQLite 打开（必要时创建）数据库文件并执行幂等的建表
func NewSQLite(cfg *config.StoreConfig) (*SQLite, error) {
	if cfg == nil {
		return nil, fmt.Errorf("SQLite配置不能为空")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("SQLite数据库路径不能为空")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	var fileLock *flock.Flock
	if cfg.LockEnabled() {
		fileLock = flock.New(cfg.Path + ".lock")
		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("获取数据库文件锁失败: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("%w: %s", ErrStoreLocked, cfg.Path)
		}
	}

	busyTimeout := cfg.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.Path, busyTimeout)

	gormCfg := &gorm.Config{
		Logger:                 newGormLogger(cfg.LogLevel),
		SkipDefaultTransaction: true, // 每个操作本身就是单条原子语句
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		unlock(fileLock)
		return nil, fmt.Errorf("打开SQLite数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		unlock(fileLock)
		return nil, fmt.Errorf("获取底层数据库连接失败: %w", err)
	}
	// SQLite 单写者，一个连接即可避免 SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.Use(NewGormTracingPlugin(filepath.Base(cfg.Path))); err != nil {
		_ = sqlDB.Close()
		unlock(fileLock)
		return nil, fmt.Errorf("注册GORM追踪插件失败: %w", err)
	}

	s := &SQLite{db: db, cfg: cfg, lock: fileLock}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("连接SQLite失败: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newGormLogger(level int) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case 1:
		logLevel = logger.Silent
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Error
	}
	return logger.New(
		log.New(applogger.Logger, "[gorm] ", 0),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func unlock(l *flock.Flock) {
	if l != nil {
		_ = l.Unlock()
	}
}

// Migrate 建表，表已存在时只补齐缺失的列和索引，不会丢数据
func (s *SQLite) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{Logger: s.db.Logger.LogMode(logger.Silent)}).
		AutoMigrate(&models.Job{}, &models.Candidate{})
	if err != nil {
		return fmt.Errorf("初始化数据库表结构失败: %w", err)
	}
	return nil
}

// DB 返回 GORM 实例
func (s *SQLite) DB() *gorm.DB {
	return s.db
}

// Path 数据库文件路径
func (s *SQLite) Path() string {
	return s.cfg.Path
}

// Ping 检查连接
func (s *SQLite) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接并释放文件锁
func (s *SQLite) Close() error {
	defer unlock(s.lock)
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLite) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return sqliteTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// ListJobs 按创建时间倒序返回全部岗位
func (s *SQLite) ListJobs(ctx context.Context) ([]models.Job, error) {
	ctx, span := s.startSpan(ctx, "SQLite.ListJobs")
	defer span.End()

	jobs := make([]models.Job, 0)
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&jobs).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("查询岗位列表失败: %w", err)
	}
	span.SetAttributes(attribute.Int("jobs.count", len(jobs)))
	return jobs, nil
}

// CreateJob 插入岗位，回填 ID 和 CreatedAt
func (s *SQLite) CreateJob(ctx context.Context, job *models.Job) error {
	ctx, span := s.startSpan(ctx, "SQLite.CreateJob")
	defer span.End()

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("创建岗位失败: %w", err)
	}
	span.SetAttributes(attribute.Int64("job.id", int64(job.ID)))
	return nil
}

// GetJob 按 ID 查询岗位，不存在时返回 ErrRecordNotFound
func (s *SQLite) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	ctx, span := s.startSpan(ctx, "SQLite.GetJob", attribute.Int64("job.id", int64(id)))
	defer span.End()

	var job models.Job
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("查询岗位失败: %w", err)
	}
	return &job, nil
}

// ListCandidatesByJob 按分数倒序返回岗位下的候选人，同分按 ID 升序
func (s *SQLite) ListCandidatesByJob(ctx context.Context, jobID uint) ([]models.Candidate, error) {
	ctx, span := s.startSpan(ctx, "SQLite.ListCandidatesByJob", attribute.Int64("job.id", int64(jobID)))
	defer span.End()

	candidates := make([]models.Candidate, 0)
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("score DESC").
		Order("id ASC").
		Find(&candidates).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("查询候选人列表失败: %w", err)
	}
	span.SetAttributes(attribute.Int("candidates.count", len(candidates)))
	return candidates, nil
}

// GetCandidate 按 ID 查询候选人，不存在时返回 ErrRecordNotFound
func (s *SQLite) GetCandidate(ctx context.Context, id uint) (*models.Candidate, error) {
	ctx, span := s.startSpan(ctx, "SQLite.GetCandidate", attribute.Int64("candidate.id", int64(id)))
	defer span.End()

	var candidate models.Candidate
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}
	return &candidate, nil
}

// CreateCandidate 插入候选人，Status 为空时使用 pending
func (s *SQLite) CreateCandidate(ctx context.Context, candidate *models.Candidate) error {
	ctx, span := s.startSpan(ctx, "SQLite.CreateCandidate", attribute.Int64("job.id", int64(candidate.JobID)))
	defer span.End()

	if candidate.Status == "" {
		candidate.Status = models.StatusPending
	}
	if err := s.db.WithContext(ctx).Omit("Job").Create(candidate).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("创建候选人失败: %w", err)
	}
	span.SetAttributes(attribute.Int64("candidate.id", int64(candidate.ID)))
	return nil
}

// UpdateCandidateStatus 更新状态，返回该 ID 是否存在
func (s *SQLite) UpdateCandidateStatus(ctx context.Context, id uint, status string) (bool, error) {
	ctx, span := s.startSpan(ctx, "SQLite.UpdateCandidateStatus",
		attribute.Int64("candidate.id", int64(id)),
		attribute.String("candidate.status", status),
	)
	defer span.End()

	// SQLite 的 changes() 统计的是命中的行，值未变化也计为 1
	res := s.db.WithContext(ctx).Model(&models.Candidate{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		tracing.RecordError(span, res.Error, tracing.ErrorTypeDB)
		return false, fmt.Errorf("更新候选人状态失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteCandidate 物理删除，返回是否删除了记录
func (s *SQLite) DeleteCandidate(ctx context.Context, id uint) (bool, error) {
	ctx, span := s.startSpan(ctx, "SQLite.DeleteCandidate", attribute.Int64("candidate.id", int64(id)))
	defer span.End()

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Candidate{})
	if res.Error != nil {
		tracing.RecordError(span, res.Error, tracing.ErrorTypeDB)
		return false, fmt.Errorf("删除候选人失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
