package specification

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByID matches one primary key.
type ByID struct {
	ID uuid.UUID
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

// ByIDs matches any of the given primary keys. An empty list matches nothing.
type ByIDs struct {
	IDs []uuid.UUID
}

func (s ByIDs) Apply(db *gorm.DB) *gorm.DB {
	if len(s.IDs) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where("id IN ?", s.IDs)
}

var sortColumn = regexp.MustCompile(`^[a-z_]+(\.[a-z_]+)?$`)

// OrderBy sorts on a column, optionally table qualified. Anything that is not
// a plain column name is ignored so user input never reaches ORDER BY.
type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	if !sortColumn.MatchString(s.Field) {
		return db
	}
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", s.Field, direction))
}

// Pagination limits the result window. A non-positive Limit leaves the
// query unbounded.
type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	if s.Limit > 0 {
		db = db.Limit(s.Limit)
	}
	if s.Offset > 0 {
		db = db.Offset(s.Offset)
	}
	return db
}

// Page converts a 1-based page number and size into a Pagination.
func Page(page, size int) Pagination {
	if page < 1 {
		page = 1
	}
	return Pagination{Limit: size, Offset: (page - 1) * size}
}
