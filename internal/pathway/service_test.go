package pathway

import (
	"context"
	"fmt"
	"testing"

	"backend/internal/logger"
	"backend/internal/tenant"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupPathwayTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = logger.Init("debug", "console", "stdout")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func createTestPathway(t *testing.T, svc *PathwayService, tenantID, name string) *Pathway {
	t.Helper()
	p, err := svc.CreatePathway(context.Background(), &CreatePathwayRequest{
		TenantID:  tenantID,
		Name:      name,
		CreatedBy: "user-1",
	})
	require.NoError(t, err)
	return p
}

func TestCreatePathwayValidation(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)

	_, err := svc.CreatePathway(ctx, &CreatePathwayRequest{TenantID: "tenant-a", Name: "  "})
	require.True(t, IsValidation(err))

	// 占位名称拒绝，不区分大小写
	_, err = svc.CreatePathway(ctx, &CreatePathwayRequest{TenantID: "tenant-a", Name: "New Pathway"})
	require.True(t, IsValidation(err))
	_, err = svc.CreatePathway(ctx, &CreatePathwayRequest{TenantID: "tenant-a", Name: "new workflow"})
	require.True(t, IsValidation(err))

	p, err := svc.CreatePathway(ctx, &CreatePathwayRequest{TenantID: "tenant-a", Name: "胸痛分诊"})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, p.Status)
	require.Equal(t, KindPrimary, p.Kind)
	require.True(t, p.Active)
}

func TestGetPathwayCrossTenant(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)

	p := createTestPathway(t, svc, "tenant-a", "发热分诊")

	// 其他租户看不到，表现与不存在一致
	_, err := svc.GetPathway(ctx, "tenant-b", p.ID)
	require.True(t, IsNotFound(err))

	got, err := svc.GetPathway(ctx, "tenant-a", p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
}

func TestApprovalResetOnRealChange(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)

	p := createTestPathway(t, svc, "tenant-a", "腹痛分诊")
	approved, err := svc.ApprovePathway(ctx, "tenant-a", p.ID, "dr-lead")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, "dr-lead", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	// 原值写回不触发审批重置
	sameName := "腹痛分诊"
	unchanged, err := svc.UpdatePathway(ctx, "tenant-a", p.ID, &UpdatePathwayRequest{
		Name:      &sameName,
		UpdatedBy: "editor-1",
	})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, unchanged.Status)
	require.Equal(t, "dr-lead", unchanged.ApprovedBy)

	// 实际修改描述后回落到 DRAFT 并清空审批信息
	desc := "更新后的描述"
	changed, err := svc.UpdatePathway(ctx, "tenant-a", p.ID, &UpdatePathwayRequest{
		Description: &desc,
		UpdatedBy:   "editor-1",
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, changed.Status)
	require.Empty(t, changed.ApprovedBy)
	require.Nil(t, changed.ApprovedAt)
	require.Equal(t, "editor-1", changed.UpdatedBy)
}

func TestUpdatePathwayEmptyName(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)

	p := createTestPathway(t, svc, "tenant-a", "转诊路径")
	empty := "   "
	_, err := svc.UpdatePathway(ctx, "tenant-a", p.ID, &UpdatePathwayRequest{Name: &empty})
	require.True(t, IsValidation(err))
}

func TestDeletePathwayCascade(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)
	nodeSvc := NewNodeService(db)
	instSvc := NewInstanceService(db)

	p := createTestPathway(t, svc, "tenant-a", "头痛分诊")
	other := createTestPathway(t, svc, "tenant-a", "转专科")

	q, err := nodeSvc.CreateNode(ctx, "tenant-a", p.ID, &CreateNodeRequest{
		Type: NodeTypeQuestion, Title: "是否伴随呕吐？", IsStart: true,
	})
	require.NoError(t, err)
	end, err := nodeSvc.CreateNode(ctx, "tenant-a", p.ID, &CreateNodeRequest{
		Type: NodeTypeEnd, Title: "转急诊", ActionKey: "REFER",
	})
	require.NoError(t, err)

	opt, err := nodeSvc.CreateAnswerOption(ctx, "tenant-a", q.ID, &CreateAnswerOptionRequest{
		Label: "是", NextNodeID: &end.ID,
	})
	require.NoError(t, err)
	_, err = nodeSvc.CreateNodeLink(ctx, "tenant-a", q.ID, other.ID, "相关路径")
	require.NoError(t, err)

	inst, err := instSvc.StartInstance(ctx, "tenant-a", "user-1", &StartInstanceRequest{PathwayID: p.ID})
	require.NoError(t, err)
	_, err = instSvc.AnswerQuestion(ctx, "tenant-a", inst.ID, &AnswerQuestionRequest{OptionID: opt.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePathway(ctx, "tenant-a", p.ID))

	for model, desc := range map[string]interface{}{
		"nodes":     &PathwayNode{},
		"options":   &AnswerOption{},
		"links":     &PathwayLink{},
		"instances": &PathwayInstance{},
		"answers":   &InstanceAnswer{},
	} {
		var count int64
		require.NoError(t, db.Model(desc).Count(&count).Error, model)
		require.Zero(t, count, "%s 应被级联删除", model)
	}

	// 被引用的目标路径本身不受影响
	_, err = svc.GetPathway(ctx, "tenant-a", other.ID)
	require.NoError(t, err)
}

func TestListPathwaysFilters(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)

	p1 := createTestPathway(t, svc, "tenant-a", "胸痛分诊")
	createTestPathway(t, svc, "tenant-a", "处方续配")
	createTestPathway(t, svc, "tenant-b", "其他租户路径")

	cat := "急诊"
	_, err := svc.UpdatePathway(ctx, "tenant-a", p1.ID, &UpdatePathwayRequest{Category: &cat})
	require.NoError(t, err)

	resp, err := svc.ListPathways(ctx, &ListPathwaysRequest{TenantID: "tenant-a"})
	require.NoError(t, err)
	require.EqualValues(t, 2, resp.Total)

	resp, err = svc.ListPathways(ctx, &ListPathwaysRequest{TenantID: "tenant-a", Category: "急诊"})
	require.NoError(t, err)
	require.EqualValues(t, 1, resp.Total)
	require.Equal(t, p1.ID, resp.Pathways[0].ID)
}

func TestListLibraryOnlyActiveGlobal(t *testing.T) {
	ctx := context.Background()
	db := setupPathwayTestDB(t)
	svc := NewPathwayService(db)

	g := createTestPathway(t, svc, tenant.GlobalTenantID, "全局胸痛")
	disabled := createTestPathway(t, svc, tenant.GlobalTenantID, "停用路径")
	createTestPathway(t, svc, "tenant-a", "租户私有")

	inactive := false
	_, err := svc.UpdatePathway(ctx, tenant.GlobalTenantID, disabled.ID, &UpdatePathwayRequest{Active: &inactive})
	require.NoError(t, err)

	library, err := svc.ListLibrary(ctx)
	require.NoError(t, err)
	require.Len(t, library, 1)
	require.Equal(t, g.ID, library[0].ID)
}
