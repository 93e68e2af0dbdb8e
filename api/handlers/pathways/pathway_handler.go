package pathways

import (
	"net/http"
	"strconv"

	response "backend/api/handlers/common"
	"backend/internal/pathway"

	"github.com/gin-gonic/gin"
)

// PathwayHandler 临床路径模板管理 Handler
type PathwayHandler struct {
	service  *pathway.PathwayService
	override *pathway.OverrideService
}

// NewPathwayHandler 创建 PathwayHandler 实例
func NewPathwayHandler(service *pathway.PathwayService, override *pathway.OverrideService) *PathwayHandler {
	return &PathwayHandler{service: service, override: override}
}

// ListPathways 查询路径列表
// @Summary 查询路径列表
// @Description 按分类与类别筛选当前租户的路径
// @Tags Pathways
// @Security BearerAuth
// @Produce json
// @Param category query string false "分类"
// @Param kind query string false "类别 primary|supporting|module"
// @Param active query bool false "仅启用的"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} pathway.ListPathwaysResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/pathways [get]
func (h *PathwayHandler) ListPathways(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	req := &pathway.ListPathwaysRequest{
		TenantID:   tenantID,
		Category:   c.Query("category"),
		Kind:       pathway.PathwayKind(c.Query("kind")),
		ActiveOnly: c.Query("active") == "true",
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

	resp, err := h.service.ListPathways(c.Request.Context(), req)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListLibrary 查询全局默认库
// @Summary 查询全局默认路径库
// @Description 所有租户共享的启用中的全局路径
// @Tags Pathways
// @Security BearerAuth
// @Produce json
// @Success 200 {array} pathway.Pathway
// @Failure 500 {object} response.ErrorResponse
// @Router /api/library/pathways [get]
func (h *PathwayHandler) ListLibrary(c *gin.Context) {
	pathways, err := h.service.ListLibrary(c.Request.Context())
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, pathways)
}

// GetPathway 查询单个路径
// @Summary 查询单个路径
// @Tags Pathways
// @Security BearerAuth
// @Produce json
// @Param id path string true "路径 ID"
// @Success 200 {object} pathway.Pathway
// @Failure 404 {object} response.ErrorResponse
// @Router /api/pathways/{id} [get]
func (h *PathwayHandler) GetPathway(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	p, err := h.service.GetPathway(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// CreatePathway 创建路径
// @Summary 创建路径
// @Tags Pathways
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreatePathwayRequest true "创建请求"
// @Success 201 {object} pathway.Pathway
// @Failure 400 {object} response.ErrorResponse
// @Router /api/pathways [post]
func (h *PathwayHandler) CreatePathway(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userID := c.GetString("user_id")

	var req CreatePathwayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	p, err := h.service.CreatePathway(c.Request.Context(), &pathway.CreatePathwayRequest{
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Colour:      req.Colour,
		Category:    req.Category,
		Kind:        pathway.PathwayKind(req.Kind),
		CreatedBy:   userID,
	})
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

// UpdatePathway 更新路径
// @Summary 更新路径
// @Description 已审批路径的实际修改会使其回落到草稿状态
// @Tags Pathways
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "路径 ID"
// @Param request body UpdatePathwayRequest true "更新请求"
// @Success 200 {object} pathway.Pathway
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/pathways/{id} [put]
func (h *PathwayHandler) UpdatePathway(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userID := c.GetString("user_id")

	var req UpdatePathwayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	update := &pathway.UpdatePathwayRequest{
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
		Colour:      req.Colour,
		Category:    req.Category,
		UpdatedBy:   userID,
	}
	if req.Kind != nil {
		kind := pathway.PathwayKind(*req.Kind)
		update.Kind = &kind
	}

	p, err := h.service.UpdatePathway(c.Request.Context(), tenantID, c.Param("id"), update)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// ApprovePathway 审批路径
// @Summary 审批路径
// @Tags Pathways
// @Security BearerAuth
// @Produce json
// @Param id path string true "路径 ID"
// @Success 200 {object} pathway.Pathway
// @Failure 404 {object} response.ErrorResponse
// @Router /api/pathways/{id}/approve [post]
func (h *PathwayHandler) ApprovePathway(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userID := c.GetString("user_id")

	p, err := h.service.ApprovePathway(c.Request.Context(), tenantID, c.Param("id"), userID)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// DeletePathway 删除路径
// @Summary 删除路径
// @Description 级联删除节点、出边、交叉引用与运行记录
// @Tags Pathways
// @Security BearerAuth
// @Param id path string true "路径 ID"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Router /api/pathways/{id} [delete]
func (h *PathwayHandler) DeletePathway(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	if err := h.service.DeletePathway(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		response.WriteError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateOverride 创建租户覆盖
// @Summary 创建全局路径的租户覆盖
// @Description 幂等：重复调用返回已有覆盖
// @Tags Pathways
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateOverrideRequest true "覆盖请求"
// @Success 201 {object} pathway.Pathway
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/pathways/overrides [post]
func (h *PathwayHandler) CreateOverride(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userID := c.GetString("user_id")

	var req CreateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	p, err := h.override.CreateOverride(c.Request.Context(), tenantID, req.SourcePathwayID, userID)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

// RevertOverride 回退租户覆盖
// @Summary 删除租户覆盖，回退到全局默认版本
// @Tags Pathways
// @Security BearerAuth
// @Param sourceId path string true "全局源路径 ID"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Router /api/pathways/overrides/{sourceId} [delete]
func (h *PathwayHandler) RevertOverride(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	if err := h.override.RevertOverride(c.Request.Context(), tenantID, c.Param("sourceId")); err != nil {
		response.WriteError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
