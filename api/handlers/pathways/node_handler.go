package pathways

import (
	"net/http"

	response "backend/api/handlers/common"
	"backend/internal/pathway"

	"github.com/gin-gonic/gin"
)

// NodeHandler 路径图结构管理 Handler
type NodeHandler struct {
	service *pathway.NodeService
}

// NewNodeHandler 创建 NodeHandler 实例
func NewNodeHandler(service *pathway.NodeService) *NodeHandler {
	return &NodeHandler{service: service}
}

// CreateNode 创建节点
// @Summary 在路径下创建节点
// @Tags Nodes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "路径 ID"
// @Param request body CreateNodeRequest true "创建请求"
// @Success 201 {object} pathway.PathwayNode
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/pathways/{id}/nodes [post]
func (h *NodeHandler) CreateNode(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	node, err := h.service.CreateNode(c.Request.Context(), tenantID, c.Param("id"), &pathway.CreateNodeRequest{
		Type:      pathway.NodeType(req.Type),
		Title:     req.Title,
		Body:      req.Body,
		IsStart:   req.IsStart,
		ActionKey: req.ActionKey,
		PosX:      req.PosX,
		PosY:      req.PosY,
		Style:     req.Style,
	})
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, node)
}

// UpdateNode 更新节点
// @Summary 更新节点
// @Tags Nodes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "节点 ID"
// @Param request body UpdateNodeRequest true "更新请求"
// @Success 200 {object} pathway.PathwayNode
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/nodes/{id} [put]
func (h *NodeHandler) UpdateNode(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	update := &pathway.UpdateNodeRequest{
		Title:     req.Title,
		Body:      req.Body,
		SortOrder: req.SortOrder,
		IsStart:   req.IsStart,
		ActionKey: req.ActionKey,
		PosX:      req.PosX,
		PosY:      req.PosY,
		Style:     req.Style,
	}
	if req.Type != nil {
		nodeType := pathway.NodeType(*req.Type)
		update.Type = &nodeType
	}

	node, err := h.service.UpdateNode(c.Request.Context(), tenantID, c.Param("id"), update)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, node)
}

// DeleteNode 删除节点
// @Summary 删除节点
// @Description 级联删除出边、交叉引用及关联的答案记录
// @Tags Nodes
// @Security BearerAuth
// @Param id path string true "节点 ID"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Router /api/nodes/{id} [delete]
func (h *NodeHandler) DeleteNode(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	if err := h.service.DeleteNode(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		response.WriteError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// BulkUpdatePositions 批量更新画布坐标
// @Summary 批量更新节点画布坐标
// @Description 不存在的节点静默跳过
// @Tags Nodes
// @Security BearerAuth
// @Accept json
// @Param id path string true "路径 ID"
// @Param request body BulkPositionsRequest true "坐标列表"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Router /api/pathways/{id}/positions [put]
func (h *NodeHandler) BulkUpdatePositions(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req BulkPositionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	positions := make([]pathway.NodePosition, 0, len(req.Positions))
	for _, p := range req.Positions {
		positions = append(positions, pathway.NodePosition{NodeID: p.NodeID, X: p.X, Y: p.Y})
	}

	if err := h.service.BulkUpdatePositions(c.Request.Context(), tenantID, c.Param("id"), positions); err != nil {
		response.WriteError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateOption 创建答案选项
// @Summary 在节点下创建答案选项
// @Description 机器键缺省时从标签派生，节点内冲突自动追加数字后缀
// @Tags Nodes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "节点 ID"
// @Param request body CreateOptionRequest true "创建请求"
// @Success 201 {object} pathway.AnswerOption
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/nodes/{id}/options [post]
func (h *NodeHandler) CreateOption(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req CreateOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	option, err := h.service.CreateAnswerOption(c.Request.Context(), tenantID, c.Param("id"), &pathway.CreateAnswerOptionRequest{
		Label:        req.Label,
		ValueKey:     req.ValueKey,
		Description:  req.Description,
		NextNodeID:   req.NextNodeID,
		ActionKey:    req.ActionKey,
		SourceHandle: req.SourceHandle,
		TargetHandle: req.TargetHandle,
	})
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, option)
}

// UpdateOption 更新答案选项
// @Summary 更新答案选项
// @Tags Nodes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "选项 ID"
// @Param request body UpdateOptionRequest true "更新请求"
// @Success 200 {object} pathway.AnswerOption
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/options/{id} [put]
func (h *NodeHandler) UpdateOption(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req UpdateOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	option, err := h.service.UpdateAnswerOption(c.Request.Context(), tenantID, c.Param("id"), &pathway.UpdateAnswerOptionRequest{
		Label:         req.Label,
		ValueKey:      req.ValueKey,
		Description:   req.Description,
		NextNodeID:    req.NextNodeID,
		ClearNextNode: req.ClearNextNode,
		ActionKey:     req.ActionKey,
		SourceHandle:  req.SourceHandle,
		TargetHandle:  req.TargetHandle,
	})
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, option)
}

// DeleteOption 删除答案选项
// @Summary 删除答案选项
// @Tags Nodes
// @Security BearerAuth
// @Param id path string true "选项 ID"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Router /api/options/{id} [delete]
func (h *NodeHandler) DeleteOption(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	if err := h.service.DeleteAnswerOption(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		response.WriteError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateLink 创建交叉引用
// @Summary 创建节点到其他路径的命名引用
// @Tags Nodes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "节点 ID"
// @Param request body CreateLinkRequest true "创建请求"
// @Success 201 {object} pathway.PathwayLink
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/nodes/{id}/links [post]
func (h *NodeHandler) CreateLink(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteBindError(c, err)
		return
	}

	link, err := h.service.CreateNodeLink(c.Request.Context(), tenantID, c.Param("id"), req.TargetPathwayID, req.Label)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

// DeleteLink 删除交叉引用
// @Summary 删除交叉引用
// @Tags Nodes
// @Security BearerAuth
// @Param id path string true "引用 ID"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Router /api/links/{id} [delete]
func (h *NodeHandler) DeleteLink(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	if err := h.service.DeleteNodeLink(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		response.WriteError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
