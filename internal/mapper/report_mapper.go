package mapper

import (
	"encoding/json"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/model"
	"ai-report-be/pkg/mapreduce"

	"gorm.io/datatypes"
)

type ReportMapper struct{}

func NewReportMapper() *ReportMapper {
	return &ReportMapper{}
}

func (m *ReportMapper) ToEntity(r *model.Report) (*entity.Report, error) {
	if r == nil {
		return nil, nil
	}

	outcomes := mapreduce.ExtractionBatch{}
	if len(r.Outcomes) > 0 {
		if err := json.Unmarshal(r.Outcomes, &outcomes); err != nil {
			return nil, err
		}
	}

	return &entity.Report{
		Id:         r.Id,
		Query:      r.Query,
		Collection: r.Collection,
		Status:     mapreduce.State(r.Status),
		Text:       r.Text,
		Counts: mapreduce.Counts{
			Total:       r.DocumentsTotal,
			Informative: r.DocumentsInformative,
			Skipped:     r.DocumentsSkipped,
			Failed:      r.DocumentsFailed,
		},
		ShortCircuited: r.ShortCircuited,
		ErrorKind:      mapreduce.ErrorKind(r.ErrorKind),
		ErrorMessage:   r.ErrorMessage,
		FailedState:    mapreduce.State(r.FailedState),
		Outcomes:       outcomes,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		CreatedAt:      r.CreatedAt,
	}, nil
}

func (m *ReportMapper) ToModel(r *entity.Report) (*model.Report, error) {
	if r == nil {
		return nil, nil
	}

	outcomes := r.Outcomes
	if outcomes == nil {
		outcomes = mapreduce.ExtractionBatch{}
	}
	raw, err := json.Marshal(outcomes)
	if err != nil {
		return nil, err
	}

	return &model.Report{
		Id:                   r.Id,
		Query:                r.Query,
		Collection:           r.Collection,
		Status:               string(r.Status),
		Text:                 r.Text,
		DocumentsTotal:       r.Counts.Total,
		DocumentsInformative: r.Counts.Informative,
		DocumentsSkipped:     r.Counts.Skipped,
		DocumentsFailed:      r.Counts.Failed,
		ShortCircuited:       r.ShortCircuited,
		ErrorKind:            string(r.ErrorKind),
		ErrorMessage:         r.ErrorMessage,
		FailedState:          string(r.FailedState),
		Outcomes:             datatypes.JSON(raw),
		StartedAt:            r.StartedAt,
		FinishedAt:           r.FinishedAt,
		CreatedAt:            r.CreatedAt,
	}, nil
}
