package pathway

import (
	"context"
	"errors"
	"time"

	"backend/internal/common"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InstanceService 路径实例运行服务：启动、推进与查询
type InstanceService struct {
	db *gorm.DB
}

// NewInstanceService 创建 InstanceService 实例
func NewInstanceService(db *gorm.DB) *InstanceService {
	return &InstanceService{db: db}
}

// TransitionResult 一次状态迁移的结果
type TransitionResult struct {
	Completed     bool    `json:"completed"`
	ActionKey     string  `json:"actionKey,omitempty"`
	CurrentNodeID *string `json:"currentNodeId,omitempty"`
}

// StartInstanceRequest 启动实例请求
type StartInstanceRequest struct {
	PathwayID string
	Reference string
	Category  string
}

// StartInstance 启动一次路径执行。
// 起点取 is_start 标记的节点，缺失时回退到排序号最小的节点；
// 空图无法执行，返回校验错误。
func (s *InstanceService) StartInstance(ctx context.Context, tenantID, userID string, req *StartInstanceRequest) (*PathwayInstance, error) {
	var p Pathway
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id IN (?)", req.PathwayID, []string{tenantID, tenant.GlobalTenantID}).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound("临床路径不存在")
		}
		return nil, s.internal(ctx, "查询路径失败", err, zap.String("pathway_id", req.PathwayID))
	}

	if !p.Active {
		return nil, NewValidation("路径已停用，无法启动")
	}

	start, err := s.resolveStartNode(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	instance := &PathwayInstance{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		PathwayID:     p.ID,
		StartedBy:     userID,
		Status:        InstanceActive,
		Reference:     req.Reference,
		Category:      req.Category,
		CurrentNodeID: &start.ID,
	}

	if err := s.db.WithContext(ctx).Create(instance).Error; err != nil {
		return nil, s.internal(ctx, "创建路径实例失败", err, zap.String("pathway_id", p.ID))
	}

	metrics.InstancesStartedTotal.WithLabelValues(tenantID).Inc()
	logger.WithContext(ctx).Info("路径实例已启动",
		zap.String("instance_id", instance.ID),
		zap.String("pathway_id", p.ID),
		zap.String("start_node_id", start.ID),
	)

	return instance, nil
}

// ContinueFromInstruction 从 INSTRUCTION 节点继续。
// 推进优先级：第一条带目标的出边 > 排序号更大的下一个节点 > 以当前节点动作完成。
func (s *InstanceService) ContinueFromInstruction(ctx context.Context, tenantID, instanceID string) (*TransitionResult, error) {
	instance, err := s.activeInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}

	node, err := s.currentNode(ctx, instance)
	if err != nil {
		return nil, err
	}
	if node == nil {
		// 当前节点已被删除，实例无法再推进
		return s.forceComplete(ctx, instance, "")
	}

	if node.Type != NodeTypeInstruction {
		return nil, NewValidation("当前节点不是指引节点，无法直接继续")
	}

	// 出边优先：按创建顺序取第一条有目标的
	var options []AnswerOption
	if err := s.db.WithContext(ctx).
		Where("node_id = ? AND next_node_id IS NOT NULL", node.ID).
		Order("created_at ASC").
		Find(&options).Error; err != nil {
		return nil, s.internal(ctx, "查询出边失败", err, zap.String("node_id", node.ID))
	}
	if len(options) > 0 {
		return s.moveTo(ctx, instance, *options[0].NextNodeID)
	}

	// 无出边时按排序号兜底推进
	var next PathwayNode
	err = s.db.WithContext(ctx).
		Where("pathway_id = ? AND sort_order > ?", node.PathwayID, node.SortOrder).
		Order("sort_order ASC").
		First(&next).Error
	if err == nil {
		return s.moveTo(ctx, instance, next.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.internal(ctx, "查询后续节点失败", err, zap.String("node_id", node.ID))
	}

	// 图到头了：以当前节点的动作完成
	return s.complete(ctx, instance, node.ActionKey)
}

// AnswerQuestionRequest 回答问题请求
type AnswerQuestionRequest struct {
	OptionID string
	Note     string
}

// AnswerQuestion 在 QUESTION 节点选择一个答案。
// 答案记录与状态迁移在同一事务内完成：要么都生效，要么都不生效。
// 终止分支（出边无目标）使实例直接完成，动作取出边的 ActionKey。
func (s *InstanceService) AnswerQuestion(ctx context.Context, tenantID, instanceID string, req *AnswerQuestionRequest) (*TransitionResult, error) {
	instance, err := s.activeInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}

	node, err := s.currentNode(ctx, instance)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return s.forceComplete(ctx, instance, "")
	}

	if node.Type != NodeTypeQuestion {
		return nil, NewValidation("当前节点不是问题节点，无法提交答案")
	}

	// 选项必须属于当前节点
	var option AnswerOption
	err = s.db.WithContext(ctx).
		Where("id = ? AND node_id = ?", req.OptionID, node.ID).
		First(&option).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidation("答案选项不存在或不属于当前节点")
		}
		return nil, s.internal(ctx, "查询答案选项失败", err, zap.String("option_id", req.OptionID))
	}

	var result *TransitionResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		answer := &InstanceAnswer{
			ID:         uuid.New().String(),
			InstanceID: instance.ID,
			NodeID:     node.ID,
			OptionID:   &option.ID,
			ValueKey:   option.ValueKey,
			Note:       req.Note,
		}
		if err := tx.Create(answer).Error; err != nil {
			return err
		}

		if option.NextNodeID == nil {
			now := time.Now().UTC()
			if err := tx.Model(&PathwayInstance{}).
				Where("id = ?", instance.ID).
				Updates(map[string]any{
					"status":          InstanceCompleted,
					"current_node_id": nil,
					"action_key":      option.ActionKey,
					"completed_at":    now,
				}).Error; err != nil {
				return err
			}
			result = &TransitionResult{Completed: true, ActionKey: option.ActionKey}
			return nil
		}

		if err := tx.Model(&PathwayInstance{}).
			Where("id = ?", instance.ID).
			Update("current_node_id", *option.NextNodeID).Error; err != nil {
			return err
		}
		result = &TransitionResult{CurrentNodeID: option.NextNodeID}
		return nil
	})
	if err != nil {
		return nil, s.internal(ctx, "提交答案失败", err,
			zap.String("instance_id", instanceID),
			zap.String("option_id", req.OptionID),
		)
	}

	metrics.AnswersRecordedTotal.WithLabelValues(tenantID).Inc()
	if result.Completed {
		metrics.InstancesCompletedTotal.WithLabelValues(tenantID).Inc()
	}

	return result, nil
}

// InstanceView 实例详情视图：实例本体加当前节点及其可选出边、历史答案
type InstanceView struct {
	Instance    *PathwayInstance  `json:"instance"`
	CurrentNode *PathwayNode      `json:"currentNode,omitempty"`
	Options     []*AnswerOption   `json:"options,omitempty"`
	Links       []*PathwayLink    `json:"links,omitempty"`
	Answers     []*InstanceAnswer `json:"answers"`
}

// GetInstance 查询实例详情。
// 活动实例停在 END 节点时在读路径上就地完成（动作取节点 ActionKey）；
// 当前节点已被删除的实例同样收敛为完成态。
func (s *InstanceService) GetInstance(ctx context.Context, tenantID, instanceID string) (*InstanceView, error) {
	var instance PathwayInstance
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", instanceID, tenantID).
		First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound("路径实例不存在")
		}
		return nil, s.internal(ctx, "查询路径实例失败", err, zap.String("instance_id", instanceID))
	}

	view := &InstanceView{Instance: &instance}

	if instance.Status == InstanceActive {
		node, err := s.currentNode(ctx, &instance)
		if err != nil {
			return nil, err
		}
		switch {
		case node == nil:
			if _, err := s.forceComplete(ctx, &instance, ""); err != nil {
				return nil, err
			}
		case node.Type == NodeTypeEnd:
			if _, err := s.complete(ctx, &instance, node.ActionKey); err != nil {
				return nil, err
			}
			view.CurrentNode = node
		default:
			view.CurrentNode = node

			if err := s.db.WithContext(ctx).
				Where("node_id = ?", node.ID).
				Order("created_at ASC").
				Find(&view.Options).Error; err != nil {
				return nil, s.internal(ctx, "查询出边失败", err, zap.String("node_id", node.ID))
			}
			if err := s.db.WithContext(ctx).
				Where("node_id = ?", node.ID).
				Order("ordinal ASC").
				Find(&view.Links).Error; err != nil {
				return nil, s.internal(ctx, "查询交叉引用失败", err, zap.String("node_id", node.ID))
			}
		}
	}

	if err := s.db.WithContext(ctx).
		Where("instance_id = ?", instance.ID).
		Order("created_at ASC").
		Find(&view.Answers).Error; err != nil {
		return nil, s.internal(ctx, "查询答案记录失败", err, zap.String("instance_id", instanceID))
	}

	return view, nil
}

// ListInstancesRequest 查询实例列表请求
type ListInstancesRequest struct {
	TenantID  string
	PathwayID string
	Status    InstanceStatus
	Page      int
	PageSize  int
}

// ListInstancesResponse 查询实例列表响应
type ListInstancesResponse struct {
	Instances  []*PathwayInstance `json:"instances"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// ListInstances 查询当前租户的实例列表
func (s *InstanceService) ListInstances(ctx context.Context, req *ListInstancesRequest) (*ListInstancesResponse, error) {
	query := s.db.WithContext(ctx).
		Model(&PathwayInstance{}).
		Scopes(common.ByTenant(req.TenantID))

	if req.PathwayID != "" {
		query = query.Where("pathway_id = ?", req.PathwayID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, s.internal(ctx, "统计实例数量失败", err, zap.String("tenant_id", req.TenantID))
	}

	pagination := common.PaginationRequest{Page: req.Page, PageSize: req.PageSize}

	var instances []*PathwayInstance
	if err := query.
		Order("created_at DESC").
		Offset(pagination.GetOffset()).
		Limit(pagination.GetPageSize()).
		Find(&instances).Error; err != nil {
		return nil, s.internal(ctx, "查询实例列表失败", err, zap.String("tenant_id", req.TenantID))
	}

	return &ListInstancesResponse{
		Instances:  instances,
		Total:      total,
		Page:       pagination.GetPage(),
		PageSize:   pagination.GetPageSize(),
		TotalPages: pagination.TotalPages(total),
	}, nil
}

// ============================================================================
// 内部辅助
// ============================================================================

// resolveStartNode 解析起点：is_start 标记优先，其次排序号最小
func (s *InstanceService) resolveStartNode(ctx context.Context, pathwayID string) (*PathwayNode, error) {
	var start PathwayNode
	err := s.db.WithContext(ctx).
		Where("pathway_id = ? AND is_start = ?", pathwayID, true).
		First(&start).Error
	if err == nil {
		return &start, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.internal(ctx, "查询起始节点失败", err, zap.String("pathway_id", pathwayID))
	}

	err = s.db.WithContext(ctx).
		Where("pathway_id = ?", pathwayID).
		Order("sort_order ASC").
		First(&start).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidation("路径没有任何节点，无法启动")
		}
		return nil, s.internal(ctx, "查询起始节点失败", err, zap.String("pathway_id", pathwayID))
	}
	return &start, nil
}

// activeInstance 加载活动实例；已完成的实例拒绝继续推进
func (s *InstanceService) activeInstance(ctx context.Context, tenantID, instanceID string) (*PathwayInstance, error) {
	var instance PathwayInstance
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", instanceID, tenantID).
		First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound("路径实例不存在")
		}
		return nil, s.internal(ctx, "查询路径实例失败", err, zap.String("instance_id", instanceID))
	}

	if instance.IsCompleted() {
		return nil, NewValidation("实例已完成，无法继续推进")
	}

	return &instance, nil
}

// currentNode 加载实例当前节点；节点已被删除时返回 (nil, nil)
func (s *InstanceService) currentNode(ctx context.Context, instance *PathwayInstance) (*PathwayNode, error) {
	if instance.CurrentNodeID == nil {
		return nil, nil
	}

	var node PathwayNode
	err := s.db.WithContext(ctx).
		Where("id = ?", *instance.CurrentNodeID).
		First(&node).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, s.internal(ctx, "查询当前节点失败", err, zap.String("node_id", *instance.CurrentNodeID))
	}
	return &node, nil
}

// moveTo 把实例推进到指定节点
func (s *InstanceService) moveTo(ctx context.Context, instance *PathwayInstance, nodeID string) (*TransitionResult, error) {
	if err := s.db.WithContext(ctx).
		Model(&PathwayInstance{}).
		Where("id = ?", instance.ID).
		Update("current_node_id", nodeID).Error; err != nil {
		return nil, s.internal(ctx, "推进实例失败", err, zap.String("instance_id", instance.ID))
	}
	return &TransitionResult{CurrentNodeID: &nodeID}, nil
}

// complete 以给定动作把实例置为完成态
func (s *InstanceService) complete(ctx context.Context, instance *PathwayInstance, actionKey string) (*TransitionResult, error) {
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&PathwayInstance{}).
		Where("id = ?", instance.ID).
		Updates(map[string]any{
			"status":          InstanceCompleted,
			"current_node_id": nil,
			"action_key":      actionKey,
			"completed_at":    now,
		}).Error; err != nil {
		return nil, s.internal(ctx, "完成实例失败", err, zap.String("instance_id", instance.ID))
	}

	instance.Status = InstanceCompleted
	instance.CurrentNodeID = nil
	instance.ActionKey = actionKey
	instance.CompletedAt = &now

	metrics.InstancesCompletedTotal.WithLabelValues(instance.TenantID).Inc()
	logger.WithContext(ctx).Info("路径实例已完成",
		zap.String("instance_id", instance.ID),
		zap.String("action_key", actionKey),
	)

	return &TransitionResult{Completed: true, ActionKey: actionKey}, nil
}

// forceComplete 当前节点已不存在时把实例收敛为完成态
func (s *InstanceService) forceComplete(ctx context.Context, instance *PathwayInstance, actionKey string) (*TransitionResult, error) {
	logger.WithContext(ctx).Warn("实例当前节点已被删除，强制完成",
		zap.String("instance_id", instance.ID),
	)
	return s.complete(ctx, instance, actionKey)
}

func (s *InstanceService) internal(ctx context.Context, msg string, err error, fields ...zap.Field) error {
	logger.WithContext(ctx).Error(msg, append(fields, zap.Error(err))...)
	return NewInternal(msg, err)
}
