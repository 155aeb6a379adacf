package sql

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"echoes/internal/entity"
)

var (
	// ErrInsufficientCredits is returned when a spend would take the
	// balance below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrDuplicateSale is returned when a purchase sale id was already
	// processed.
	ErrDuplicateSale = errors.New("sale already processed")
)

// GormRepository implements Repository using GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new repository instance
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// calculatePagination calculates pagination metrics
func (r *GormRepository) calculatePagination(totalCount int64, page, pageSize int) *entity.Meta {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}

	return &entity.Meta{
		Total:    totalCount,
		Page:     int64(page),
		PageSize: int64(pageSize),
	}
}

func pageWindow(params *entity.BaseParams) (page, pageSize, offset int) {
	page, pageSize = 1, 20
	if params != nil {
		if params.Page > 0 {
			page = int(params.Page)
		}
		if params.PageSize > 0 {
			pageSize = int(params.PageSize)
		}
	}
	offset = (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}
	return page, pageSize, offset
}

// isDuplicateKey covers the drivers that translate to gorm.ErrDuplicatedKey
// plus the ones that only report a textual constraint error.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
