package pathway

import (
	"context"
	"errors"
	"strings"

	"backend/internal/logger"
	"backend/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NodeService 路径图结构管理服务：节点、答案选项与交叉引用
type NodeService struct {
	db *gorm.DB
}

// NewNodeService 创建 NodeService 实例
func NewNodeService(db *gorm.DB) *NodeService {
	return &NodeService{db: db}
}

// validNodeTypes 节点类型白名单
var validNodeTypes = map[NodeType]bool{
	NodeTypeInstruction: true,
	NodeTypeQuestion:    true,
	NodeTypePanel:       true,
	NodeTypeEnd:         true,
}

// ============================================================================
// 节点
// ============================================================================

// CreateNodeRequest 创建节点请求
type CreateNodeRequest struct {
	Type      NodeType
	Title     string
	Body      string
	IsStart   bool
	ActionKey string
	PosX      float64
	PosY      float64
	Style     datatypes.JSON
}

// CreateNode 在路径下创建节点，排序号自动取 max+1；
// 置为起始节点时在同一事务内清除同路径其他节点的起始标记。
func (s *NodeService) CreateNode(ctx context.Context, tenantID, pathwayID string, req *CreateNodeRequest) (*PathwayNode, error) {
	p, err := s.ownedPathway(ctx, tenantID, pathwayID)
	if err != nil {
		return nil, err
	}

	if !validNodeTypes[req.Type] {
		return nil, NewValidation("无效的节点类型: %s", req.Type)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, NewValidation("节点标题不能为空")
	}

	node := &PathwayNode{
		ID:        uuid.New().String(),
		PathwayID: p.ID,
		Type:      req.Type,
		Title:     strings.TrimSpace(req.Title),
		Body:      req.Body,
		IsStart:   req.IsStart,
		ActionKey: req.ActionKey,
		PosX:      req.PosX,
		PosY:      req.PosY,
		Style:     req.Style,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 排序号兜底规则：现有最大排序号 + 1
		var maxOrder int
		if err := tx.Model(&PathwayNode{}).
			Where("pathway_id = ?", p.ID).
			Select("COALESCE(MAX(sort_order), 0)").
			Scan(&maxOrder).Error; err != nil {
			return err
		}
		node.SortOrder = maxOrder + 1

		if req.IsStart {
			if err := tx.Model(&PathwayNode{}).
				Where("pathway_id = ?", p.ID).
				Update("is_start", false).Error; err != nil {
				return err
			}
		}

		return tx.Create(node).Error
	})
	if err != nil {
		return nil, s.internal(ctx, "创建节点失败", err, zap.String("pathway_id", pathwayID))
	}

	return node, nil
}

// UpdateNodeRequest 更新节点请求，nil 字段表示不修改
type UpdateNodeRequest struct {
	Type      *NodeType
	Title     *string
	Body      *string
	SortOrder *int
	IsStart   *bool
	ActionKey *string
	PosX      *float64
	PosY      *float64
	Style     datatypes.JSON
}

// UpdateNode 更新节点字段；IsStart 置真时原子地清除同路径其他起始标记
func (s *NodeService) UpdateNode(ctx context.Context, tenantID, nodeID string, req *UpdateNodeRequest) (*PathwayNode, error) {
	node, err := s.ownedNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if req.Type != nil {
		if !validNodeTypes[*req.Type] {
			return nil, NewValidation("无效的节点类型: %s", *req.Type)
		}
		updates["type"] = *req.Type
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, NewValidation("节点标题不能为空")
		}
		updates["title"] = title
	}
	if req.Body != nil {
		updates["body"] = *req.Body
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}
	if req.IsStart != nil {
		updates["is_start"] = *req.IsStart
	}
	if req.ActionKey != nil {
		updates["action_key"] = *req.ActionKey
	}
	if req.PosX != nil {
		updates["pos_x"] = *req.PosX
	}
	if req.PosY != nil {
		updates["pos_y"] = *req.PosY
	}
	if req.Style != nil {
		updates["style"] = req.Style
	}

	if len(updates) == 0 {
		return node, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.IsStart != nil && *req.IsStart {
			if err := tx.Model(&PathwayNode{}).
				Where("pathway_id = ? AND id <> ?", node.PathwayID, node.ID).
				Update("is_start", false).Error; err != nil {
				return err
			}
		}
		return tx.Model(&PathwayNode{}).Where("id = ?", node.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, s.internal(ctx, "更新节点失败", err, zap.String("node_id", nodeID))
	}

	return s.ownedNode(ctx, tenantID, nodeID)
}

// DeleteNode 删除节点。
// 存储层没有级联，顺序由引擎显式保证：
// 先删引用该节点或其出边的答案记录，再删出边与交叉引用，最后删节点本体。
func (s *NodeService) DeleteNode(ctx context.Context, tenantID, nodeID string) error {
	node, err := s.ownedNode(ctx, tenantID, nodeID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		optionIDs := tx.Model(&AnswerOption{}).Select("id").Where("node_id = ?", node.ID)

		if err := tx.Where("node_id = ? OR option_id IN (?)", node.ID, optionIDs).
			Delete(&InstanceAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("node_id = ?", node.ID).Delete(&AnswerOption{}).Error; err != nil {
			return err
		}
		if err := tx.Where("node_id = ?", node.ID).Delete(&PathwayLink{}).Error; err != nil {
			return err
		}
		return tx.Delete(&PathwayNode{}, "id = ?", node.ID).Error
	})
	if err != nil {
		return s.internal(ctx, "删除节点失败", err, zap.String("node_id", nodeID))
	}

	return nil
}

// NodePosition 单个节点的画布坐标
type NodePosition struct {
	NodeID string  `json:"nodeId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// BulkUpdatePositions 批量写入画布坐标。
// 找不到的节点静默跳过（仅告警日志），容忍与并发删除的竞争，不让整批失败。
func (s *NodeService) BulkUpdatePositions(ctx context.Context, tenantID, pathwayID string, updates []NodePosition) error {
	p, err := s.ownedPathway(ctx, tenantID, pathwayID)
	if err != nil {
		return err
	}

	for _, u := range updates {
		result := s.db.WithContext(ctx).
			Model(&PathwayNode{}).
			Where("id = ? AND pathway_id = ?", u.NodeID, p.ID).
			Updates(map[string]any{"pos_x": u.X, "pos_y": u.Y})
		if result.Error != nil {
			return s.internal(ctx, "批量更新坐标失败", result.Error, zap.String("node_id", u.NodeID))
		}
		if result.RowsAffected == 0 {
			logger.WithContext(ctx).Warn("坐标更新跳过不存在的节点",
				zap.String("pathway_id", p.ID),
				zap.String("node_id", u.NodeID),
			)
		}
	}

	return nil
}

// ============================================================================
// 答案选项（出边）
// ============================================================================

// CreateAnswerOptionRequest 创建答案选项请求
type CreateAnswerOptionRequest struct {
	Label        string
	ValueKey     string // 可选：显式指定机器键，为空时从标签派生
	Description  string
	NextNodeID   *string
	ActionKey    string
	SourceHandle string
	TargetHandle string
}

// CreateAnswerOption 在节点下创建答案选项。
// 机器键在节点范围内唯一：显式键冲突返回校验错误，派生键冲突追加数字后缀。
func (s *NodeService) CreateAnswerOption(ctx context.Context, tenantID, nodeID string, req *CreateAnswerOptionRequest) (*AnswerOption, error) {
	node, err := s.ownedNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Label) == "" {
		return nil, NewValidation("答案标签不能为空")
	}

	// 目标节点必须属于同一路径
	if req.NextNodeID != nil {
		if err := s.sameGraphNode(ctx, node.PathwayID, *req.NextNodeID); err != nil {
			return nil, err
		}
	}

	taken, err := s.takenValueKeys(ctx, node.ID, "")
	if err != nil {
		return nil, err
	}

	valueKey := strings.TrimSpace(req.ValueKey)
	if valueKey != "" {
		if taken[valueKey] {
			return nil, NewValidation("机器键 %q 在该节点下已存在", valueKey)
		}
	} else {
		valueKey = ensureUniqueValueKey(deriveValueKey(req.Label), taken)
	}

	option := &AnswerOption{
		ID:           uuid.New().String(),
		NodeID:       node.ID,
		Label:        strings.TrimSpace(req.Label),
		Description:  req.Description,
		ValueKey:     valueKey,
		NextNodeID:   req.NextNodeID,
		ActionKey:    req.ActionKey,
		SourceHandle: req.SourceHandle,
		TargetHandle: req.TargetHandle,
	}

	if err := s.db.WithContext(ctx).Create(option).Error; err != nil {
		return nil, s.internal(ctx, "创建答案选项失败", err, zap.String("node_id", nodeID))
	}

	return option, nil
}

// UpdateAnswerOptionRequest 更新答案选项请求，nil 字段表示不修改。
// ClearNextNode 为真时把目标节点清空（变为终止分支）。
type UpdateAnswerOptionRequest struct {
	Label         *string
	ValueKey      *string
	Description   *string
	NextNodeID    *string
	ClearNextNode bool
	ActionKey     *string
	SourceHandle  *string
	TargetHandle  *string
}

// UpdateAnswerOption 更新答案选项；显式机器键重查唯一性（排除自身行）
func (s *NodeService) UpdateAnswerOption(ctx context.Context, tenantID, optionID string, req *UpdateAnswerOptionRequest) (*AnswerOption, error) {
	option, node, err := s.ownedOption(ctx, tenantID, optionID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if req.Label != nil {
		label := strings.TrimSpace(*req.Label)
		if label == "" {
			return nil, NewValidation("答案标签不能为空")
		}
		updates["label"] = label
	}
	if req.ValueKey != nil {
		valueKey := strings.TrimSpace(*req.ValueKey)
		if valueKey == "" {
			return nil, NewValidation("机器键不能为空")
		}
		taken, err := s.takenValueKeys(ctx, option.NodeID, option.ID)
		if err != nil {
			return nil, err
		}
		if taken[valueKey] {
			return nil, NewValidation("机器键 %q 在该节点下已存在", valueKey)
		}
		updates["value_key"] = valueKey
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ClearNextNode {
		updates["next_node_id"] = nil
	} else if req.NextNodeID != nil {
		if err := s.sameGraphNode(ctx, node.PathwayID, *req.NextNodeID); err != nil {
			return nil, err
		}
		updates["next_node_id"] = *req.NextNodeID
	}
	if req.ActionKey != nil {
		updates["action_key"] = *req.ActionKey
	}
	if req.SourceHandle != nil {
		updates["source_handle"] = *req.SourceHandle
	}
	if req.TargetHandle != nil {
		updates["target_handle"] = *req.TargetHandle
	}

	if len(updates) == 0 {
		return option, nil
	}

	if err := s.db.WithContext(ctx).
		Model(&AnswerOption{}).
		Where("id = ?", option.ID).
		Updates(updates).Error; err != nil {
		return nil, s.internal(ctx, "更新答案选项失败", err, zap.String("option_id", optionID))
	}

	updated, _, err := s.ownedOption(ctx, tenantID, optionID)
	return updated, err
}

// DeleteAnswerOption 删除答案选项，级联删除引用它的答案记录
func (s *NodeService) DeleteAnswerOption(ctx context.Context, tenantID, optionID string) error {
	option, _, err := s.ownedOption(ctx, tenantID, optionID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("option_id = ?", option.ID).Delete(&InstanceAnswer{}).Error; err != nil {
			return err
		}
		return tx.Delete(&AnswerOption{}, "id = ?", option.ID).Error
	})
	if err != nil {
		return s.internal(ctx, "删除答案选项失败", err, zap.String("option_id", optionID))
	}

	return nil
}

// ============================================================================
// 路径交叉引用
// ============================================================================

// CreateNodeLink 创建节点到其他路径的命名引用。
// 禁止指向节点自己所属的路径；同一 (节点, 目标路径) 至多一条。
func (s *NodeService) CreateNodeLink(ctx context.Context, tenantID, nodeID, targetPathwayID, label string) (*PathwayLink, error) {
	node, err := s.ownedNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, err
	}

	if targetPathwayID == node.PathwayID {
		return nil, NewValidation("交叉引用不能指向节点所属的路径")
	}
	if strings.TrimSpace(label) == "" {
		return nil, NewValidation("引用名称不能为空")
	}

	// 目标路径必须对当前租户可见：本租户的或全局库里的
	var target Pathway
	err = s.db.WithContext(ctx).
		Where("id = ? AND tenant_id IN (?)", targetPathwayID, []string{tenantID, tenant.GlobalTenantID}).
		First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound("目标路径不存在")
		}
		return nil, s.internal(ctx, "查询目标路径失败", err, zap.String("target_pathway_id", targetPathwayID))
	}

	var existing int64
	if err := s.db.WithContext(ctx).
		Model(&PathwayLink{}).
		Where("node_id = ? AND target_pathway_id = ?", node.ID, targetPathwayID).
		Count(&existing).Error; err != nil {
		return nil, s.internal(ctx, "查询交叉引用失败", err, zap.String("node_id", nodeID))
	}
	if existing > 0 {
		return nil, NewValidation("该节点已存在指向此路径的引用")
	}

	link := &PathwayLink{
		ID:              uuid.New().String(),
		NodeID:          node.ID,
		TargetPathwayID: targetPathwayID,
		Label:           strings.TrimSpace(label),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxOrdinal int
		if err := tx.Model(&PathwayLink{}).
			Where("node_id = ?", node.ID).
			Select("COALESCE(MAX(ordinal), 0)").
			Scan(&maxOrdinal).Error; err != nil {
			return err
		}
		link.Ordinal = maxOrdinal + 1
		return tx.Create(link).Error
	})
	if err != nil {
		return nil, s.internal(ctx, "创建交叉引用失败", err, zap.String("node_id", nodeID))
	}

	return link, nil
}

// DeleteNodeLink 删除交叉引用
func (s *NodeService) DeleteNodeLink(ctx context.Context, tenantID, linkID string) error {
	var link PathwayLink
	err := s.db.WithContext(ctx).
		Joins("JOIN pathway_nodes ON pathway_nodes.id = pathway_links.node_id").
		Joins("JOIN pathways ON pathways.id = pathway_nodes.pathway_id").
		Where("pathway_links.id = ? AND pathways.tenant_id = ?", linkID, tenantID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFound("交叉引用不存在")
		}
		return s.internal(ctx, "查询交叉引用失败", err, zap.String("link_id", linkID))
	}

	if err := s.db.WithContext(ctx).Delete(&PathwayLink{}, "id = ?", link.ID).Error; err != nil {
		return s.internal(ctx, "删除交叉引用失败", err, zap.String("link_id", linkID))
	}

	return nil
}

// ============================================================================
// 内部辅助
// ============================================================================

// ownedPathway 校验路径归属；跨租户等同不存在
func (s *NodeService) ownedPathway(ctx context.Context, tenantID, pathwayID string) (*Pathway, error) {
	var p Pathway
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", pathwayID, tenantID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound("临床路径不存在")
		}
		return nil, s.internal(ctx, "查询路径失败", err, zap.String("pathway_id", pathwayID))
	}
	return &p, nil
}

// ownedNode 校验节点归属（经由所属路径的租户）
func (s *NodeService) ownedNode(ctx context.Context, tenantID, nodeID string) (*PathwayNode, error) {
	var node PathwayNode
	err := s.db.WithContext(ctx).
		Joins("JOIN pathways ON pathways.id = pathway_nodes.pathway_id").
		Where("pathway_nodes.id = ? AND pathways.tenant_id = ?", nodeID, tenantID).
		First(&node).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound("节点不存在")
		}
		return nil, s.internal(ctx, "查询节点失败", err, zap.String("node_id", nodeID))
	}
	return &node, nil
}

// ownedOption 校验答案选项归属，同时返回其所属节点
func (s *NodeService) ownedOption(ctx context.Context, tenantID, optionID string) (*AnswerOption, *PathwayNode, error) {
	var option AnswerOption
	err := s.db.WithContext(ctx).
		Joins("JOIN pathway_nodes ON pathway_nodes.id = answer_options.node_id").
		Joins("JOIN pathways ON pathways.id = pathway_nodes.pathway_id").
		Where("answer_options.id = ? AND pathways.tenant_id = ?", optionID, tenantID).
		First(&option).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, NewNotFound("答案选项不存在")
		}
		return nil, nil, s.internal(ctx, "查询答案选项失败", err, zap.String("option_id", optionID))
	}

	node, err := s.ownedNode(ctx, tenantID, option.NodeID)
	if err != nil {
		return nil, nil, err
	}
	return &option, node, nil
}

// sameGraphNode 校验目标节点存在且属于同一路径
func (s *NodeService) sameGraphNode(ctx context.Context, pathwayID, nodeID string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&PathwayNode{}).
		Where("id = ? AND pathway_id = ?", nodeID, pathwayID).
		Count(&count).Error; err != nil {
		return s.internal(ctx, "查询目标节点失败", err, zap.String("node_id", nodeID))
	}
	if count == 0 {
		return NewValidation("目标节点不存在或不属于同一路径")
	}
	return nil
}

// takenValueKeys 查询节点下已占用的机器键集合，excludeOptionID 用于更新时排除自身
func (s *NodeService) takenValueKeys(ctx context.Context, nodeID, excludeOptionID string) (map[string]bool, error) {
	query := s.db.WithContext(ctx).
		Model(&AnswerOption{}).
		Where("node_id = ?", nodeID)
	if excludeOptionID != "" {
		query = query.Where("id <> ?", excludeOptionID)
	}

	var keys []string
	if err := query.Pluck("value_key", &keys).Error; err != nil {
		return nil, s.internal(ctx, "查询机器键失败", err, zap.String("node_id", nodeID))
	}

	taken := make(map[string]bool, len(keys))
	for _, k := range keys {
		taken[k] = true
	}
	return taken, nil
}

// internal 记录带上下文的内部错误并返回脱敏后的 internal 错误
func (s *NodeService) internal(ctx context.Context, msg string, err error, fields ...zap.Field) error {
	logger.WithContext(ctx).Error(msg, append(fields, zap.Error(err))...)
	return NewInternal(msg, err)
}
