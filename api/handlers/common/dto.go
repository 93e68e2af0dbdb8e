package common

import (
	"net/http"

	"backend/internal/pathway"

	"github.com/gin-gonic/gin"
)

// APIResponse 通用响应结构，用于封装成功或失败结果。
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ErrorResponse 统一错误返回结构。
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// WriteError 把领域错误翻译为 HTTP 响应。
// not_found 对应 404，validation 对应 400，其余一律 500 并隐藏内部细节。
func WriteError(c *gin.Context, err error) {
	switch pathway.KindOf(err) {
	case pathway.ErrKindNotFound:
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Code: string(pathway.ErrKindNotFound), Message: err.Error()})
	case pathway.ErrKindValidation:
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Code: string(pathway.ErrKindValidation), Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Code: string(pathway.ErrKindInternal), Message: "服务器内部错误"})
	}
}

// WriteBindError 请求体解析失败的统一返回
func WriteBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: "请求参数错误: " + err.Error()})
}
