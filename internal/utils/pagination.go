package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// List page sizes for admin listings.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// PageParams reads ?page and ?limit. Missing or invalid values fall back to
// the first page of DefaultPageLimit items; limit is capped at MaxPageLimit.
func PageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page"))
	limit, _ = strconv.Atoi(c.Query("limit"))
	return normalizePage(page, limit)
}

// PageBounds turns a page number and size into a row limit and offset.
func PageBounds(page, limit int) (int, int) {
	page, limit = normalizePage(page, limit)
	return limit, (page - 1) * limit
}

// NewPagination builds the metadata for one page of totalItems.
func NewPagination(page, limit, totalItems int) *Pagination {
	page, limit = normalizePage(page, limit)
	return &Pagination{
		Page:       page,
		Limit:      limit,
		TotalItems: totalItems,
		TotalPages: (totalItems + limit - 1) / limit,
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}
