package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"recruit-dashboard/internal/storage/models"
)

// IntegrityReport 数据一致性检查结果，各字段为问题记录的 ID
type IntegrityReport struct {
	OrphanCandidates   []uint `json:"orphan_candidates"`
	ScoreOutOfRange    []uint `json:"score_out_of_range"`
	InvalidStatus      []uint `json:"invalid_status"`
	UnparsableAnalysis []uint `json:"unparsable_analysis"`
}

// Clean 没有发现任何问题
func (r *IntegrityReport) Clean() bool {
	return len(r.OrphanCandidates) == 0 && len(r.ScoreOutOfRange) == 0 &&
		len(r.InvalidStatus) == 0 && len(r.UnparsableAnalysis) == 0
}

// CheckIntegrity 扫描候选人表，找出引用了不存在岗位、分数越界、状态非法或 analysis 不是合法 JSON 的记录
func (s *SQLite) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}
	db := s.db.WithContext(ctx)

	if err := db.Table("candidates AS c").
		Joins("LEFT JOIN jobs AS j ON j.id = c.job_id").
		Where("j.id IS NULL").
		Order("c.id").
		Pluck("c.id", &report.OrphanCandidates).Error; err != nil {
		return nil, fmt.Errorf("检查孤立候选人失败: %w", err)
	}

	if err := db.Model(&models.Candidate{}).
		Where("score < ? OR score > ?", 0, 100).
		Order("id").
		Pluck("id", &report.ScoreOutOfRange).Error; err != nil {
		return nil, fmt.Errorf("检查分数范围失败: %w", err)
	}

	if err := db.Model(&models.Candidate{}).
		Where("status NOT IN ?", []string{models.StatusPending, models.StatusShortlisted, models.StatusRejected}).
		Order("id").
		Pluck("id", &report.InvalidStatus).Error; err != nil {
		return nil, fmt.Errorf("检查候选人状态失败: %w", err)
	}

	type analysisRow struct {
		ID       uint
		Analysis string
	}
	var rows []analysisRow
	if err := db.Model(&models.Candidate{}).
		Select("id, analysis").
		Where("analysis IS NOT NULL AND analysis <> ''").
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("读取 analysis 失败: %w", err)
	}
	for _, row := range rows {
		if !json.Valid([]byte(row.Analysis)) {
			report.UnparsableAnalysis = append(report.UnparsableAnalysis, row.ID)
		}
	}

	return report, nil
}

// RepairScoresAndStatus 把越界分数截断到 [0,100]，非法状态重置为 pending，返回受影响的行数
func (s *SQLite) RepairScoresAndStatus(ctx context.Context) (int64, error) {
	db := s.db.WithContext(ctx)

	low := db.Model(&models.Candidate{}).Where("score < ?", 0).Update("score", 0)
	if low.Error != nil {
		return 0, fmt.Errorf("修复分数下界失败: %w", low.Error)
	}
	high := db.Model(&models.Candidate{}).Where("score > ?", 100).Update("score", 100)
	if high.Error != nil {
		return 0, fmt.Errorf("修复分数上界失败: %w", high.Error)
	}
	status := db.Model(&models.Candidate{}).
		Where("status NOT IN ?", []string{models.StatusPending, models.StatusShortlisted, models.StatusRejected}).
		Update("status", models.StatusPending)
	if status.Error != nil {
		return 0, fmt.Errorf("修复候选人状态失败: %w", status.Error)
	}
	return low.RowsAffected + high.RowsAffected + status.RowsAffected, nil
}
