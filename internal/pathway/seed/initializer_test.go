package seed

import (
	"context"
	"fmt"
	"testing"

	"backend/internal/logger"
	"backend/internal/pathway"
	"backend/internal/tenant"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = logger.Init("debug", "console", "stdout")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(pathway.Models()...))
	return db
}

func TestInstallFromDirectory(t *testing.T) {
	ctx := context.Background()
	db := setupSeedTestDB(t)
	dir := t.TempDir()
	writeSeedFile(t, dir, "triage.yaml", validSeed)

	initializer := NewInitializer(db)
	require.NoError(t, initializer.InstallFromDirectory(ctx, dir))

	var p pathway.Pathway
	require.NoError(t, db.First(&p, "tenant_id = ? AND name = ?", tenant.GlobalTenantID, "胸痛分诊").Error)
	require.Equal(t, pathway.StatusApproved, p.Status)
	require.True(t, p.Active)

	var nodes []pathway.PathwayNode
	require.NoError(t, db.Where("pathway_id = ?", p.ID).Order("sort_order ASC").Find(&nodes).Error)
	require.Len(t, nodes, 2)
	require.True(t, nodes[0].IsStart)
	require.Equal(t, pathway.NodeTypeEnd, nodes[1].Type)

	// 符号引用解析为真实节点 ID
	var options []pathway.AnswerOption
	require.NoError(t, db.Where("node_id = ?", nodes[0].ID).Find(&options).Error)
	require.Len(t, options, 2)
	for _, o := range options {
		switch o.ValueKey {
		case "yes":
			require.NotNil(t, o.NextNodeID)
			require.Equal(t, nodes[1].ID, *o.NextNodeID)
		case "no":
			require.Nil(t, o.NextNodeID)
			require.Equal(t, "SELF_CARE", o.ActionKey)
		default:
			t.Fatalf("意外的机器键: %s", o.ValueKey)
		}
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupSeedTestDB(t)
	dir := t.TempDir()
	writeSeedFile(t, dir, "triage.yaml", validSeed)

	require.NoError(t, NewInitializer(db).InstallFromDirectory(ctx, dir))
	require.NoError(t, NewInitializer(db).InstallFromDirectory(ctx, dir))

	var count int64
	require.NoError(t, db.Model(&pathway.Pathway{}).
		Where("tenant_id = ?", tenant.GlobalTenantID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestInstallDoesNotOverwriteEdits(t *testing.T) {
	ctx := context.Background()
	db := setupSeedTestDB(t)
	dir := t.TempDir()
	writeSeedFile(t, dir, "triage.yaml", validSeed)

	require.NoError(t, NewInitializer(db).InstallFromDirectory(ctx, dir))

	// 管理员改了全局路径的描述，重装不应覆盖
	require.NoError(t, db.Model(&pathway.Pathway{}).
		Where("tenant_id = ? AND name = ?", tenant.GlobalTenantID, "胸痛分诊").
		Update("description", "人工修改过").Error)

	require.NoError(t, NewInitializer(db).InstallFromDirectory(ctx, dir))

	var p pathway.Pathway
	require.NoError(t, db.First(&p, "tenant_id = ? AND name = ?", tenant.GlobalTenantID, "胸痛分诊").Error)
	require.Equal(t, "人工修改过", p.Description)
}
