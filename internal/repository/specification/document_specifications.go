package specification

import (
	"strings"

	"gorm.io/gorm"
)

// ByCollection limits documents to one collection. An empty name matches all.
type ByCollection struct {
	Collection string
}

func (s ByCollection) Apply(db *gorm.DB) *gorm.DB {
	if s.Collection == "" {
		return db
	}
	return db.Where("collection = ?", s.Collection)
}

// DocumentSearchQuery matches documents whose title or content contains any
// of the query terms. Postgres ILIKE, case insensitive.
type DocumentSearchQuery struct {
	Query string
}

func (s DocumentSearchQuery) Apply(db *gorm.DB) *gorm.DB {
	terms := SearchTerms(s.Query)
	if len(terms) == 0 {
		return db.Where("1 = 0")
	}
	clause := db.Session(&gorm.Session{NewDB: true})
	for i, term := range terms {
		pattern := "%" + term + "%"
		if i == 0 {
			clause = clause.Where("title ILIKE ? OR content ILIKE ?", pattern, pattern)
			continue
		}
		clause = clause.Or("title ILIKE ? OR content ILIKE ?", pattern, pattern)
	}
	return db.Where(clause)
}

// SearchTerms splits a query into lowercase words of three or more letters,
// dropping duplicates and LIKE wildcards.
func SearchTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127)
	})
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if len([]rune(f)) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// Indexed keeps only documents whose chunks have been embedded.
type Indexed struct{}

func (s Indexed) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("indexed_at IS NOT NULL")
}

// ByStatus filters reports by final run state.
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// ChunkSearchQuery matches chunks containing any of the query terms.
type ChunkSearchQuery struct {
	Query string
}

func (s ChunkSearchQuery) Apply(db *gorm.DB) *gorm.DB {
	terms := SearchTerms(s.Query)
	if len(terms) == 0 {
		return db.Where("1 = 0")
	}
	clause := db.Session(&gorm.Session{NewDB: true})
	for i, term := range terms {
		pattern := "%" + term + "%"
		if i == 0 {
			clause = clause.Where("document_chunks.content ILIKE ?", pattern)
			continue
		}
		clause = clause.Or("document_chunks.content ILIKE ?", pattern)
	}
	return db.Where(clause)
}

// ChunkInCollection joins chunks to live documents of one collection. An
// empty name keeps every collection.
type ChunkInCollection struct {
	Collection string
}

func (s ChunkInCollection) Apply(db *gorm.DB) *gorm.DB {
	db = db.Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.deleted_at IS NULL")
	if s.Collection == "" {
		return db
	}
	return db.Where("documents.collection = ?", s.Collection)
}
