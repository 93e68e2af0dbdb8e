package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationDefaults(t *testing.T) {
	p := PaginationRequest{}
	assert.Equal(t, 1, p.GetPage())
	assert.Equal(t, 20, p.GetPageSize())
	assert.Equal(t, 0, p.GetOffset())
}

func TestPaginationClamping(t *testing.T) {
	p := PaginationRequest{Page: 3, PageSize: 500}
	assert.Equal(t, 100, p.GetPageSize())
	assert.Equal(t, 200, p.GetOffset())
}

func TestTotalPages(t *testing.T) {
	p := PaginationRequest{PageSize: 20}
	assert.Equal(t, 0, p.TotalPages(0))
	assert.Equal(t, 1, p.TotalPages(20))
	assert.Equal(t, 2, p.TotalPages(21))
}
