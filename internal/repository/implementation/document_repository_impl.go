package implementation

import (
	"context"
	"errors"
	"time"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/mapper"
	"ai-report-be/internal/model"
	"ai-report-be/internal/repository/contract"
	"ai-report-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, document *entity.Document) error {
	m := r.mapper.ToModel(document)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*document = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentRepositoryImpl) Update(ctx context.Context, document *entity.Document) error {
	m := r.mapper.ToModel(document)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*document = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Document{}, id).Error
}

func (r *DocumentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	var m model.Document
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *DocumentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	var models []*model.Document
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *DocumentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.Document{}).Count(&count).Error
	return count, err
}

func (r *DocumentRepositoryImpl) MarkIndexed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id).
		Update("indexed_at", time.Now()).Error
}
