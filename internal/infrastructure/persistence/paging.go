package persistence

import (
	"strings"

	"github.com/erp/stockcore/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// applyPaging restricts query to filter's time window on timeColumn and applies
// ordering by orderColumns in the filter direction, then offset and limit
func applyPaging(query *gorm.DB, filter shared.Filter, timeColumn string, orderColumns ...string) *gorm.DB {
	f := filter.Normalize()
	if f.From != nil {
		query = query.Where(timeColumn+" >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where(timeColumn+" < ?", *f.To)
	}
	dir := ValidateSortOrder(f.OrderDir)
	for _, col := range orderColumns {
		query = query.Order(col + " " + dir)
	}
	return query.Offset(f.Offset()).Limit(f.PageSize)
}

// applyWindow applies only the time window, for counting
func applyWindow(query *gorm.DB, filter shared.Filter, timeColumn string) *gorm.DB {
	if filter.From != nil {
		query = query.Where(timeColumn+" >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where(timeColumn+" < ?", *filter.To)
	}
	return query
}
