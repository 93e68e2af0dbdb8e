package pathway

import (
	"context"
	"errors"

	"backend/internal/logger"
	"backend/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OverrideService 全局路径的租户覆盖管理。
// 租户不能直接编辑全局库，通过覆盖获得一份可编辑的深拷贝。
type OverrideService struct {
	db *gorm.DB
}

// NewOverrideService 创建 OverrideService 实例
func NewOverrideService(db *gorm.DB) *OverrideService {
	return &OverrideService{db: db}
}

// CreateOverride 为租户创建全局路径的本地覆盖副本。
// 幂等：同一 (租户, 源路径) 重复调用始终返回同一份覆盖，不会产生第二份。
// 拷贝包含路径行、全部节点、全部答案选项（内部跳转指向新节点）与交叉引用
// （目标路径 ID 保持指向原路径，不做重映射）。
func (s *OverrideService) CreateOverride(ctx context.Context, tenantID, sourcePathwayID, actorID string) (*Pathway, error) {
	if tenantID == tenant.GlobalTenantID {
		return nil, NewValidation("全局租户不需要创建覆盖")
	}

	// 源路径必须来自全局默认库
	var source Pathway
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", sourcePathwayID, tenant.GlobalTenantID).
		First(&source).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFound("全局路径不存在")
		}
		return nil, s.internal(ctx, "查询全局路径失败", err, zap.String("source_pathway_id", sourcePathwayID))
	}

	// 已有覆盖直接返回
	if existing, err := s.findOverride(ctx, tenantID, sourcePathwayID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	override := &Pathway{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		Name:            source.Name,
		Description:     source.Description,
		Active:          source.Active,
		Colour:          source.Colour,
		Category:        source.Category,
		Kind:            source.Kind,
		Status:          StatusDraft,
		SourcePathwayID: &source.ID,
		UpdatedBy:       actorID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(override).Error; err != nil {
			return err
		}

		var nodes []PathwayNode
		if err := tx.Where("pathway_id = ?", source.ID).
			Order("sort_order ASC").
			Find(&nodes).Error; err != nil {
			return err
		}
		if len(nodes) == 0 {
			return nil
		}

		// 第一遍：拷贝节点，建立旧 ID 到新 ID 的映射
		idMap := make(map[string]string, len(nodes))
		oldNodeIDs := make([]string, 0, len(nodes))
		for i := range nodes {
			oldID := nodes[i].ID
			oldNodeIDs = append(oldNodeIDs, oldID)

			copied := nodes[i]
			copied.ID = uuid.New().String()
			copied.PathwayID = override.ID
			if err := tx.Create(&copied).Error; err != nil {
				return err
			}
			idMap[oldID] = copied.ID
		}

		// 第二遍：拷贝答案选项，内部跳转按映射表重定向
		var options []AnswerOption
		if err := tx.Where("node_id IN (?)", oldNodeIDs).Find(&options).Error; err != nil {
			return err
		}
		for i := range options {
			copied := options[i]
			copied.ID = uuid.New().String()
			copied.NodeID = idMap[copied.NodeID]
			if copied.NextNodeID != nil {
				if mapped, ok := idMap[*copied.NextNodeID]; ok {
					copied.NextNodeID = &mapped
				} else {
					// 指向已不存在节点的悬空出边拷贝为终止分支
					copied.NextNodeID = nil
				}
			}
			if err := tx.Create(&copied).Error; err != nil {
				return err
			}
		}

		// 交叉引用照搬：目标路径是独立对象，不属于被拷贝的图
		var links []PathwayLink
		if err := tx.Where("node_id IN (?)", oldNodeIDs).Find(&links).Error; err != nil {
			return err
		}
		for i := range links {
			copied := links[i]
			copied.ID = uuid.New().String()
			copied.NodeID = idMap[copied.NodeID]
			if err := tx.Create(&copied).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		// 并发创建撞上唯一索引时另一个请求已经建好了副本，直接复用
		if existing, ferr := s.findOverride(ctx, tenantID, sourcePathwayID); ferr == nil && existing != nil {
			return existing, nil
		}
		return nil, s.internal(ctx, "创建路径覆盖失败", err,
			zap.String("tenant_id", tenantID),
			zap.String("source_pathway_id", sourcePathwayID),
		)
	}

	logger.WithContext(ctx).Info("已创建路径覆盖",
		zap.String("tenant_id", tenantID),
		zap.String("source_pathway_id", sourcePathwayID),
		zap.String("override_id", override.ID),
	)

	return override, nil
}

// RevertOverride 删除租户覆盖，回退到全局默认版本。
// 覆盖下的图结构与运行记录一并级联删除。
func (s *OverrideService) RevertOverride(ctx context.Context, tenantID, sourcePathwayID string) error {
	existing, err := s.findOverride(ctx, tenantID, sourcePathwayID)
	if err != nil {
		return err
	}
	if existing == nil {
		return NewNotFound("该路径没有租户覆盖")
	}

	svc := NewPathwayService(s.db)
	return svc.DeletePathway(ctx, tenantID, existing.ID)
}

// findOverride 查找租户对某个全局路径的覆盖，不存在时返回 (nil, nil)
func (s *OverrideService) findOverride(ctx context.Context, tenantID, sourcePathwayID string) (*Pathway, error) {
	var p Pathway
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND source_pathway_id = ?", tenantID, sourcePathwayID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, s.internal(ctx, "查询路径覆盖失败", err,
			zap.String("tenant_id", tenantID),
			zap.String("source_pathway_id", sourcePathwayID),
		)
	}
	return &p, nil
}

func (s *OverrideService) internal(ctx context.Context, msg string, err error, fields ...zap.Field) error {
	logger.WithContext(ctx).Error(msg, append(fields, zap.Error(err))...)
	return NewInternal(msg, err)
}
