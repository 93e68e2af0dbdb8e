package pathways

import (
	"net/http"
	"strconv"

	response "backend/api/handlers/common"
	"backend/internal/pathway"

	"github.com/gin-gonic/gin"
)

// InstanceHandler 路径实例运行 Handler
type InstanceHandler struct {
	service *pathway.InstanceService
}

// NewInstanceHandler 创建 InstanceHandler 实例
func NewInstanceHandler(service *pathway.InstanceService) *InstanceHandler {
	return &InstanceHandler{service: service}
}

// StartInstance 启动实例
// @Summary 启动一次路径执行
// @Tags Instances
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body StartInstanceRequest true "启动请求"
// @Success 201 {object} pathway.PathwayInstance
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/instances [post]
func (h *InstanceHandler) StartInstance(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userID := c.GetString("user_id")

	var req StartInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	instance, err := h.service.StartInstance(c.Request.Context(), tenantID, userID, &pathway.StartInstanceRequest{
		PathwayID: req.PathwayID,
		Reference: req.Reference,
		Category:  req.Category,
	})
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, instance)
}

// ListInstances 查询实例列表
// @Summary 查询实例列表
// @Tags Instances
// @Security BearerAuth
// @Produce json
// @Param pathway_id query string false "路径 ID"
// @Param status query string false "状态 ACTIVE|COMPLETED"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} pathway.ListInstancesResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/instances [get]
func (h *InstanceHandler) ListInstances(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	req := &pathway.ListInstancesRequest{
		TenantID:  tenantID,
		PathwayID: c.Query("pathway_id"),
		Status:    pathway.InstanceStatus(c.Query("status")),
	}

	if page := c.Query("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil {
			req.Page = p
		}
	}
	if pageSize := c.Query("page_size"); pageSize != "" {
		if ps, err := strconv.Atoi(pageSize); err == nil {
			req.PageSize = ps
		}
	}

	resp, err := h.service.ListInstances(c.Request.Context(), req)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetInstance 查询实例详情
// @Summary 查询实例详情
// @Description 返回实例、当前节点及其可选出边与历史答案
// @Tags Instances
// @Security BearerAuth
// @Produce json
// @Param id path string true "实例 ID"
// @Success 200 {object} pathway.InstanceView
// @Failure 404 {object} response.ErrorResponse
// @Router /api/instances/{id} [get]
func (h *InstanceHandler) GetInstance(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	view, err := h.service.GetInstance(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Continue 从指引节点继续
// @Summary 从指引节点继续推进
// @Tags Instances
// @Security BearerAuth
// @Produce json
// @Param id path string true "实例 ID"
// @Success 200 {object} pathway.TransitionResult
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/instances/{id}/continue [post]
func (h *InstanceHandler) Continue(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	result, err := h.service.ContinueFromInstruction(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Answer 提交答案
// @Summary 在问题节点选择一个答案
// @Description 答案记录与状态迁移在同一事务内完成
// @Tags Instances
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "实例 ID"
// @Param request body AnswerRequest true "答案"
// @Success 200 {object} pathway.TransitionResult
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/instances/{id}/answer [post]
func (h *InstanceHandler) Answer(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	result, err := h.service.AnswerQuestion(c.Request.Context(), tenantID, c.Param("id"), &pathway.AnswerQuestionRequest{
		OptionID: req.OptionID,
		Note:     req.Note,
	})
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
