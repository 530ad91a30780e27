package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"recruit-dashboard/internal/config"
	applogger "recruit-dashboard/internal/logger"
	"recruit-dashboard/internal/tracing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var minioTracer = otel.Tracer("recruit-dashboard/storage/minio")

// MinIO 简历原件和提取文本的归档
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	parsedBucket   string
	log            zerolog.Logger
}

// NewMinIO 创建客户端并确保两个存储桶存在
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: cfg.OriginalsBucket,
		parsedBucket:   cfg.ParsedTextBucket,
		log:            applogger.Component("minio"),
	}

	for _, bucket := range []string{m.originalBucket, m.parsedBucket} {
		if err := m.ensureBucketExists(ctx, bucket); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 失败: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: m.cfg.Location}); err != nil {
		// 并发启动时可能被别的实例抢先创建
		if again, errExists := m.client.BucketExists(ctx, bucketName); errExists == nil && again {
			return nil
		}
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.log.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

// NewArchiveKey 为一次上传生成归档 ID
func NewArchiveKey() string {
	return uuid.NewString()
}

// UploadResumeFile 上传简历原件，返回对象键
func (m *MinIO) UploadResumeFile(ctx context.Context, archiveKey, fileName string, reader io.Reader, fileSize int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	objectName := fmt.Sprintf("resume/%s/original%s", archiveKey, ext)

	ctx, span := minioTracer.Start(ctx, "MinIO.UploadResumeFile")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", m.originalBucket),
		attribute.String("minio.object", objectName),
		attribute.Int64("minio.size", fileSize),
	)

	info, err := m.client.PutObject(ctx, m.originalBucket, objectName, reader, fileSize,
		minio.PutObjectOptions{ContentType: getContentType(ext)})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.originalBucket, objectName, err)
	}
	m.log.Debug().Str("object", objectName).Str("etag", info.ETag).Int64("size", info.Size).Msg("简历原件已归档")
	return objectName, nil
}

// UploadParsedText 上传提取出的纯文本，返回对象键
func (m *MinIO) UploadParsedText(ctx context.Context, archiveKey, text string) (string, error) {
	objectName := fmt.Sprintf("resume/%s/parsed_text.txt", archiveKey)

	ctx, span := minioTracer.Start(ctx, "MinIO.UploadParsedText")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", m.parsedBucket),
		attribute.String("minio.object", objectName),
		attribute.Int("text.length", len(text)),
	)

	_, err := m.client.PutObject(ctx, m.parsedBucket, objectName, strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("上传解析文本 %s 到存储桶 %s 失败: %w", objectName, m.parsedBucket, err)
	}
	return objectName, nil
}

// PresignedOriginalURL 生成简历原件的临时下载地址
func (m *MinIO) PresignedOriginalURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(m.cfg.PresignExpiryMins) * time.Minute
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	u, err := m.client.PresignedGetObject(ctx, m.originalBucket, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}

// Ping 检查服务可达
func (m *MinIO) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.originalBucket)
	return err
}

func getContentType(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
