package common

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend/internal/pathway"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWriteErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"不存在返回 404", pathway.NewNotFound("临床路径不存在"), http.StatusNotFound},
		{"校验失败返回 400", pathway.NewValidation("名称不能为空"), http.StatusBadRequest},
		{"未分类错误返回 500", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(rec)

			WriteError(ctx, c.err)
			assert.Equal(t, c.status, rec.Code)
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	WriteError(ctx, pathway.NewInternal("查询失败", errors.New("connection refused")))
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
