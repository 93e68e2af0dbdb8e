package pathways

import (
	"gorm.io/datatypes"
)

// ========== 路径 ==========

// CreatePathwayRequest 创建路径请求体
type CreatePathwayRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Colour      string `json:"colour"`
	Category    string `json:"category"`
	Kind        string `json:"kind"`
}

// UpdatePathwayRequest 更新路径请求体，缺省字段不修改
type UpdatePathwayRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
	Colour      *string `json:"colour"`
	Category    *string `json:"category"`
	Kind        *string `json:"kind"`
}

// CreateOverrideRequest 创建租户覆盖请求体
type CreateOverrideRequest struct {
	SourcePathwayID string `json:"sourcePathwayId" binding:"required"`
}

// ========== 节点 ==========

// CreateNodeRequest 创建节点请求体
type CreateNodeRequest struct {
	Type      string         `json:"type" binding:"required"`
	Title     string         `json:"title" binding:"required"`
	Body      string         `json:"body"`
	IsStart   bool           `json:"isStart"`
	ActionKey string         `json:"actionKey"`
	PosX      float64        `json:"posX"`
	PosY      float64        `json:"posY"`
	Style     datatypes.JSON `json:"style"`
}

// UpdateNodeRequest 更新节点请求体，缺省字段不修改
type UpdateNodeRequest struct {
	Type      *string        `json:"type"`
	Title     *string        `json:"title"`
	Body      *string        `json:"body"`
	SortOrder *int           `json:"sortOrder"`
	IsStart   *bool          `json:"isStart"`
	ActionKey *string        `json:"actionKey"`
	PosX      *float64       `json:"posX"`
	PosY      *float64       `json:"posY"`
	Style     datatypes.JSON `json:"style"`
}

// BulkPositionsRequest 批量更新画布坐标请求体
type BulkPositionsRequest struct {
	Positions []NodePositionDTO `json:"positions" binding:"required"`
}

// NodePositionDTO 单个节点坐标
type NodePositionDTO struct {
	NodeID string  `json:"nodeId" binding:"required"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// ========== 答案选项 ==========

// CreateOptionRequest 创建答案选项请求体
type CreateOptionRequest struct {
	Label        string  `json:"label" binding:"required"`
	ValueKey     string  `json:"valueKey"`
	Description  string  `json:"description"`
	NextNodeID   *string `json:"nextNodeId"`
	ActionKey    string  `json:"actionKey"`
	SourceHandle string  `json:"sourceHandle"`
	TargetHandle string  `json:"targetHandle"`
}

// UpdateOptionRequest 更新答案选项请求体，缺省字段不修改；
// clearNextNode 为真时清空跳转目标（退化为终止分支）。
type UpdateOptionRequest struct {
	Label         *string `json:"label"`
	ValueKey      *string `json:"valueKey"`
	Description   *string `json:"description"`
	NextNodeID    *string `json:"nextNodeId"`
	ClearNextNode bool    `json:"clearNextNode"`
	ActionKey     *string `json:"actionKey"`
	SourceHandle  *string `json:"sourceHandle"`
	TargetHandle  *string `json:"targetHandle"`
}

// ========== 交叉引用 ==========

// CreateLinkRequest 创建交叉引用请求体
type CreateLinkRequest struct {
	TargetPathwayID string `json:"targetPathwayId" binding:"required"`
	Label           string `json:"label" binding:"required"`
}

// ========== 实例 ==========

// StartInstanceRequest 启动实例请求体
type StartInstanceRequest struct {
	PathwayID string `json:"pathwayId" binding:"required"`
	Reference string `json:"reference"`
	Category  string `json:"category"`
}

// AnswerRequest 提交答案请求体
type AnswerRequest struct {
	OptionID string `json:"optionId" binding:"required"`
	Note     string `json:"note"`
}
