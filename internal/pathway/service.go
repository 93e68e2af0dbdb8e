package pathway

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend/internal/common"
	"backend/internal/logger"
	"backend/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// placeholderNames 创建路径时拒绝的占位名称（不区分大小写）
var placeholderNames = map[string]bool{
	"new pathway":  true,
	"new workflow": true,
	"未命名路径":        true,
}

// PathwayService 临床路径模板管理服务
type PathwayService struct {
	db *gorm.DB
}

// NewPathwayService 创建 PathwayService 实例
func NewPathwayService(db *gorm.DB) *PathwayService {
	return &PathwayService{db: db}
}

// ListPathwaysRequest 查询路径列表请求
type ListPathwaysRequest struct {
	TenantID   string
	Category   string
	Kind       PathwayKind
	ActiveOnly bool
	Page       int
	PageSize   int
}

// ListPathwaysResponse 查询路径列表响应
type ListPathwaysResponse struct {
	Pathways   []*Pathway `json:"pathways"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// ListPathways 查询当前租户的路径列表
func (s *PathwayService) ListPathways(ctx context.Context, req *ListPathwaysRequest) (*ListPathwaysResponse, error) {
	query := s.db.WithContext(ctx).
		Model(&Pathway{}).
		Scopes(common.ByTenant(req.TenantID))

	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.Kind != "" {
		query = query.Where("kind = ?", req.Kind)
	}
	if req.ActiveOnly {
		query = query.Scopes(common.ActiveOnly())
	}

	// 统计总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, s.internal(ctx, "统计路径数量失败", err, zap.String("tenant_id", req.TenantID))
	}

	// 分页
	pagination := common.PaginationRequest{Page: req.Page, PageSize: req.PageSize}

	var pathways []*Pathway
	if err := query.
		Order("name ASC").
		Limit(pagination.GetPageSize()).
		Offset(pagination.GetOffset()).
		Find(&pathways).Error; err != nil {
		return nil, s.internal(ctx, "查询路径列表失败", err, zap.String("tenant_id", req.TenantID))
	}

	return &ListPathwaysResponse{
		Pathways:   pathways,
		Total:      total,
		Page:       pagination.GetPage(),
		PageSize:   pagination.GetPageSize(),
		TotalPages: pagination.TotalPages(total),
	}, nil
}

// ListLibrary 查询全局默认路径库（供租户挑选并创建覆盖副本）
func (s *PathwayService) ListLibrary(ctx context.Context) ([]*Pathway, error) {
	var pathways []*Pathway
	if err := s.db.WithContext(ctx).
		Scopes(common.ByTenant(tenant.GlobalTenantID), common.ActiveOnly()).
		Order("name ASC").
		Find(&pathways).Error; err != nil {
		return nil, s.internal(ctx, "查询全局路径库失败", err)
	}
	return pathways, nil
}

// GetPathway 查询单个路径；跨租户访问与不存在同样返回 not_found
func (s *PathwayService) GetPathway(ctx context.Context, tenantID, pathwayID string) (*Pathway, error) {
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

// CreatePathwayRequest 创建路径请求
type CreatePathwayRequest struct {
	TenantID    string
	Name        string
	Description string
	Colour      string
	Category    string
	Kind        PathwayKind
	CreatedBy   string
}

// CreatePathway 创建路径，初始状态为 DRAFT
func (s *PathwayService) CreatePathway(ctx context.Context, req *CreatePathwayRequest) (*Pathway, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidation("路径名称不能为空")
	}
	if placeholderNames[strings.ToLower(name)] {
		return nil, NewValidation("请为路径取一个有意义的名称")
	}

	kind := req.Kind
	if kind == "" {
		kind = KindPrimary
	}

	p := &Pathway{
		ID:          uuid.New().String(),
		TenantID:    req.TenantID,
		Name:        name,
		Description: req.Description,
		Active:      true,
		Colour:      req.Colour,
		Category:    req.Category,
		Kind:        kind,
		Status:      StatusDraft,
		UpdatedBy:   req.CreatedBy,
	}

	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, s.internal(ctx, "创建路径失败", err, zap.String("tenant_id", req.TenantID))
	}

	return p, nil
}

// UpdatePathwayRequest 更新路径请求，nil 字段表示不修改
type UpdatePathwayRequest struct {
	Name        *string
	Description *string
	Active      *bool
	Colour      *string
	Category    *string
	Kind        *PathwayKind
	UpdatedBy   string
}

// UpdatePathway 更新路径字段。
// 若路径处于 APPROVED 且任一面向用户的字段发生实际变化，
// 状态强制回落到 DRAFT 并清空审批人信息；原值写回不触发重置。
func (s *PathwayService) UpdatePathway(ctx context.Context, tenantID, pathwayID string, req *UpdatePathwayRequest) (*Pathway, error) {
	p, err := s.GetPathway(ctx, tenantID, pathwayID)
	if err != nil {
		return nil, err
	}

	// 只收集真正发生变化的字段
	updates := make(map[string]any)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewValidation("路径名称不能为空")
		}
		if name != p.Name {
			updates["name"] = name
		}
	}
	if req.Description != nil && *req.Description != p.Description {
		updates["description"] = *req.Description
	}
	if req.Active != nil && *req.Active != p.Active {
		updates["active"] = *req.Active
	}
	if req.Colour != nil && *req.Colour != p.Colour {
		updates["colour"] = *req.Colour
	}
	if req.Category != nil && *req.Category != p.Category {
		updates["category"] = *req.Category
	}
	if req.Kind != nil && *req.Kind != p.Kind {
		updates["kind"] = *req.Kind
	}

	// 无实际变化时直接返回，不触发审批重置
	if len(updates) == 0 {
		return p, nil
	}

	updates["updated_by"] = req.UpdatedBy
	if p.Status == StatusApproved {
		updates["status"] = StatusDraft
		updates["approved_by"] = ""
		updates["approved_at"] = nil
	}

	if err := s.db.WithContext(ctx).
		Model(&Pathway{}).
		Where("id = ?", p.ID).
		Updates(updates).Error; err != nil {
		return nil, s.internal(ctx, "更新路径失败", err, zap.String("pathway_id", pathwayID))
	}

	return s.GetPathway(ctx, tenantID, pathwayID)
}

// ApprovePathway 审批路径：记录审批人与时间。
// 审批时不做结构校验，默认审批人已人工审阅过整张图。
func (s *PathwayService) ApprovePathway(ctx context.Context, tenantID, pathwayID, approver string) (*Pathway, error) {
	p, err := s.GetPathway(ctx, tenantID, pathwayID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&Pathway{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"status":      StatusApproved,
			"approved_by": approver,
			"approved_at": now,
		}).Error; err != nil {
		return nil, s.internal(ctx, "审批路径失败", err, zap.String("pathway_id", pathwayID))
	}

	return s.GetPathway(ctx, tenantID, pathwayID)
}

// DeletePathway 删除路径并在同一事务内级联清理：
// 答案记录 → 实例 → 选项 → 交叉引用 → 节点 → 路径本体。
// 存储层不做级联，删除顺序由引擎显式保证。
func (s *PathwayService) DeletePathway(ctx context.Context, tenantID, pathwayID string) error {
	p, err := s.GetPathway(ctx, tenantID, pathwayID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nodeIDs := tx.Model(&PathwayNode{}).Select("id").Where("pathway_id = ?", p.ID)
		instanceIDs := tx.Model(&PathwayInstance{}).Select("id").Where("pathway_id = ?", p.ID)

		if err := tx.Where("instance_id IN (?)", instanceIDs).Delete(&InstanceAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("node_id IN (?)", nodeIDs).Delete(&InstanceAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("pathway_id = ?", p.ID).Delete(&PathwayInstance{}).Error; err != nil {
			return err
		}
		if err := tx.Where("node_id IN (?)", nodeIDs).Delete(&AnswerOption{}).Error; err != nil {
			return err
		}
		if err := tx.Where("node_id IN (?)", nodeIDs).Delete(&PathwayLink{}).Error; err != nil {
			return err
		}
		if err := tx.Where("pathway_id = ?", p.ID).Delete(&PathwayNode{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Pathway{}, "id = ?", p.ID).Error
	})
	if err != nil {
		return s.internal(ctx, "删除路径失败", err, zap.String("pathway_id", pathwayID))
	}

	return nil
}

// internal 记录带上下文的内部错误并返回脱敏后的 internal 错误
func (s *PathwayService) internal(ctx context.Context, msg string, err error, fields ...zap.Field) error {
	logger.WithContext(ctx).Error(msg, append(fields, zap.Error(err))...)
	return NewInternal(msg, err)
}
