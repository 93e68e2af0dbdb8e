package pathway

import (
	"context"
	"testing"

	"backend/internal/tenant"

	"github.com/stretchr/testify/require"
)

// buildGlobalPathway 构造一条全局路径：Q -> I -> E，并带一条交叉引用
func buildGlobalPathway(t *testing.T, svc *PathwayService, nodeSvc *NodeService) (global *Pathway, linkTarget *Pathway) {
	t.Helper()
	ctx := context.Background()

	global = createTestPathway(t, svc, tenant.GlobalTenantID, "全局胸痛分诊")
	linkTarget = createTestPathway(t, svc, tenant.GlobalTenantID, "全局转诊说明")

	q, err := nodeSvc.CreateNode(ctx, tenant.GlobalTenantID, global.ID, &CreateNodeRequest{
		Type: NodeTypeQuestion, Title: "症状持续？", IsStart: true,
	})
	require.NoError(t, err)
	i, err := nodeSvc.CreateNode(ctx, tenant.GlobalTenantID, global.ID, &CreateNodeRequest{
		Type: NodeTypeInstruction, Title: "建议就诊",
	})
	require.NoError(t, err)
	e, err := nodeSvc.CreateNode(ctx, tenant.GlobalTenantID, global.ID, &CreateNodeRequest{
		Type: NodeTypeEnd, Title: "转急诊", ActionKey: "REFER",
	})
	require.NoError(t, err)

	_, err = nodeSvc.CreateAnswerOption(ctx, tenant.GlobalTenantID, q.ID, &CreateAnswerOptionRequest{
		Label: "是", NextNodeID: &e.ID,
	})
	require.NoError(t, err)
	_, err = nodeSvc.CreateAnswerOption(ctx, tenant.GlobalTenantID, q.ID, &CreateAnswerOptionRequest{
		Label: "否", NextNodeID: &i.ID,
	})
	require.NoError(t, err)
	_, err = nodeSvc.CreateNodeLink(ctx, tenant.GlobalTenantID, q.ID, linkTarget.ID, "相关路径")
	require.NoError(t, err)

	return global, linkTarget
}

func TestCreateOverrideDeepCopy(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)
	nodeSvc := NewNodeService(db)
	overrideSvc := NewOverrideService(db)

	global, linkTarget := buildGlobalPathway(t, svc, nodeSvc)

	override, err := overrideSvc.CreateOverride(ctx, "tenant-a", global.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, "tenant-a", override.TenantID)
	require.Equal(t, StatusDraft, override.Status)
	require.NotNil(t, override.SourcePathwayID)
	require.Equal(t, global.ID, *override.SourcePathwayID)
	require.Equal(t, global.Name, override.Name)

	// 节点数量一致，且全部换了新 ID
	var copiedNodes []PathwayNode
	require.NoError(t, db.Where("pathway_id = ?", override.ID).Order("sort_order ASC").Find(&copiedNodes).Error)
	require.Len(t, copiedNodes, 3)

	copiedIDs := make(map[string]bool, len(copiedNodes))
	for _, n := range copiedNodes {
		copiedIDs[n.ID] = true
	}

	// 出边的内部跳转指向副本节点，而不是原图节点
	nodeIDs := []string{copiedNodes[0].ID, copiedNodes[1].ID, copiedNodes[2].ID}
	var copiedOptions []AnswerOption
	require.NoError(t, db.Where("node_id IN (?)", nodeIDs).Find(&copiedOptions).Error)
	require.Len(t, copiedOptions, 2)
	for _, o := range copiedOptions {
		require.NotNil(t, o.NextNodeID)
		require.True(t, copiedIDs[*o.NextNodeID], "出边应指向副本内的节点")
	}

	// 交叉引用照搬，目标路径仍指向原全局路径
	var copiedLinks []PathwayLink
	require.NoError(t, db.Where("node_id IN (?)", nodeIDs).Find(&copiedLinks).Error)
	require.Len(t, copiedLinks, 1)
	require.Equal(t, linkTarget.ID, copiedLinks[0].TargetPathwayID)

	// 原图完全未被改动
	var originalNodes int64
	require.NoError(t, db.Model(&PathwayNode{}).Where("pathway_id = ?", global.ID).Count(&originalNodes).Error)
	require.EqualValues(t, 3, originalNodes)
}

func TestCreateOverrideIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)
	nodeSvc := NewNodeService(db)
	overrideSvc := NewOverrideService(db)

	global, _ := buildGlobalPathway(t, svc, nodeSvc)

	first, err := overrideSvc.CreateOverride(ctx, "tenant-a", global.ID, "user-1")
	require.NoError(t, err)
	second, err := overrideSvc.CreateOverride(ctx, "tenant-a", global.ID, "user-2")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&Pathway{}).
		Where("tenant_id = ? AND source_pathway_id = ?", "tenant-a", global.ID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)

	// 不同租户各自独立
	other, err := overrideSvc.CreateOverride(ctx, "tenant-b", global.ID, "user-3")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
}

func TestCreateOverrideValidation(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)
	overrideSvc := NewOverrideService(db)

	// 源必须是全局路径
	local := createTestPathway(t, svc, "tenant-a", "本地路径")
	_, err := overrideSvc.CreateOverride(ctx, "tenant-b", local.ID, "user-1")
	require.True(t, IsNotFound(err))

	// 全局租户自身不需要覆盖
	global := createTestPathway(t, svc, tenant.GlobalTenantID, "全局路径")
	_, err = overrideSvc.CreateOverride(ctx, tenant.GlobalTenantID, global.ID, "user-1")
	require.True(t, IsValidation(err))
}

func TestRevertOverride(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)
	nodeSvc := NewNodeService(db)
	overrideSvc := NewOverrideService(db)

	global, _ := buildGlobalPathway(t, svc, nodeSvc)

	override, err := overrideSvc.CreateOverride(ctx, "tenant-a", global.ID, "user-1")
	require.NoError(t, err)

	require.NoError(t, overrideSvc.RevertOverride(ctx, "tenant-a", global.ID))

	_, err = svc.GetPathway(ctx, "tenant-a", override.ID)
	require.True(t, IsNotFound(err))

	// 副本的图结构一并清理
	var count int64
	require.NoError(t, db.Model(&PathwayNode{}).Where("pathway_id = ?", override.ID).Count(&count).Error)
	require.Zero(t, count)

	// 没有覆盖时回退报不存在
	require.True(t, IsNotFound(overrideSvc.RevertOverride(ctx, "tenant-a", global.ID)))

	// 原全局图不受影响
	require.NoError(t, db.Model(&PathwayNode{}).Where("pathway_id = ?", global.ID).Count(&count).Error)
	require.EqualValues(t, 3, count)
}
