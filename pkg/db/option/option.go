package option

import (
	"strings"
	"time"

	"github.com/smallbiznis/inspectconnect/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 250
)

// QueryOption mutates a gorm statement before it is executed.
type QueryOption interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(stmt *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(stmt *gorm.DB) *gorm.DB {
	return f(stmt)
}

// ApplyPagination limits the statement to one page plus one row so callers can detect has_more.
// Rows are expected in (created_at desc, id desc) order.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = defaultPageSize
		}
		if size > maxPageSize {
			size = maxPageSize
		}

		token := strings.TrimSpace(page.PageToken)
		if token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor != nil {
				createdAt, parseErr := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
				if parseErr == nil && cursor.ID != "" {
					stmt = stmt.Where(
						"(created_at < ?) OR (created_at = ? AND id < ?)",
						createdAt, createdAt, cursor.ID,
					)
				}
			}
		}

		return stmt.Limit(size + 1)
	})
}

// OrderByNewest orders rows for cursor pagination.
func OrderByNewest() QueryOption {
	return QueryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		return stmt.Order("created_at desc").Order("id desc")
	})
}
