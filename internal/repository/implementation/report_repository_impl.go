package implementation

import (
	"context"
	"errors"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/mapper"
	"ai-report-be/internal/model"
	"ai-report-be/internal/repository/contract"
	"ai-report-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ReportMapper
}

func NewReportRepository(db *gorm.DB) contract.ReportRepository {
	return &ReportRepositoryImpl{
		db:     db,
		mapper: mapper.NewReportMapper(),
	}
}

func (r *ReportRepositoryImpl) Create(ctx context.Context, report *entity.Report) error {
	m, err := r.mapper.ToModel(report)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	report.CreatedAt = m.CreatedAt
	return nil
}

func (r *ReportRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Report, error) {
	var m model.Report
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}

func (r *ReportRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Report, error) {
	var models []*model.Report
	query := r.db.WithContext(ctx)
	query = specification.Apply(query, specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	reports := make([]*entity.Report, 0, len(models))
	for _, m := range models {
		e, err := r.mapper.ToEntity(m)
		if err != nil {
			return nil, err
		}
		reports = append(reports, e)
	}
	return reports, nil
}
