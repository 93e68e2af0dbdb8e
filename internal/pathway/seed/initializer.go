package seed

import (
	"context"
	"errors"
	"strings"

	"backend/internal/logger"
	"backend/internal/pathway"
	"backend/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Initializer 把种子库安装到全局租户。
// 幂等：按路径名称判重，已存在的全局路径跳过，不覆盖人工改动。
type Initializer struct {
	db     *gorm.DB
	loader *LibraryLoader
}

// NewInitializer 创建种子初始化器
func NewInitializer(db *gorm.DB) *Initializer {
	return &Initializer{
		db:     db,
		loader: NewLibraryLoader(),
	}
}

// InstallFromDirectory 加载目录下的种子文件并安装缺失的全局路径
func (i *Initializer) InstallFromDirectory(ctx context.Context, dir string) error {
	if err := i.loader.LoadFromDirectory(dir); err != nil {
		return err
	}

	installed := 0
	for slug, p := range i.loader.Pathways() {
		created, err := i.installPathway(ctx, p)
		if err != nil {
			return err
		}
		if created {
			installed++
			logger.WithContext(ctx).Info("已安装种子路径",
				zap.String("slug", slug),
				zap.String("name", p.Name),
			)
		}
	}

	logger.WithContext(ctx).Info("种子库安装完成",
		zap.Int("total", len(i.loader.Pathways())),
		zap.Int("installed", installed),
	)

	return nil
}

// installPathway 安装一条种子路径；已存在同名全局路径时跳过
func (i *Initializer) installPathway(ctx context.Context, seed *SeedPathway) (bool, error) {
	var existing pathway.Pathway
	err := i.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenant.GlobalTenantID, seed.Name).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	kind := pathway.PathwayKind(seed.Kind)
	if kind == "" {
		kind = pathway.KindPrimary
	}

	p := &pathway.Pathway{
		ID:          uuid.New().String(),
		TenantID:    tenant.GlobalTenantID,
		Name:        seed.Name,
		Description: seed.Description,
		Active:      true,
		Colour:      seed.Colour,
		Category:    seed.Category,
		Kind:        kind,
		Status:      pathway.StatusApproved,
	}

	err = i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}

		// 第一遍：建节点，记录符号 key 到实际 ID 的映射
		nodeIDs := make(map[string]string, len(seed.Nodes))
		for order, sn := range seed.Nodes {
			node := &pathway.PathwayNode{
				ID:        uuid.New().String(),
				PathwayID: p.ID,
				Type:      pathway.NodeType(sn.Type),
				Title:     sn.Title,
				Body:      sn.Body,
				SortOrder: order + 1,
				IsStart:   sn.IsStart,
				ActionKey: sn.ActionKey,
			}
			if err := tx.Create(node).Error; err != nil {
				return err
			}
			nodeIDs[sn.Key] = node.ID
		}

		// 第二遍：建出边，Next 引用解析为节点 ID
		for _, sn := range seed.Nodes {
			for _, so := range sn.Options {
				valueKey := so.ValueKey
				if valueKey == "" {
					valueKey = strings.ToLower(strings.ReplaceAll(so.Label, " ", "_"))
				}

				option := &pathway.AnswerOption{
					ID:        uuid.New().String(),
					NodeID:    nodeIDs[sn.Key],
					Label:     so.Label,
					ValueKey:  valueKey,
					ActionKey: so.ActionKey,
				}
				if so.Next != "" {
					next := nodeIDs[so.Next]
					option.NextNodeID = &next
				}
				if err := tx.Create(option).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return true, nil
}
