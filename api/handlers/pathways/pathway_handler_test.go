package pathways

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend/internal/logger"
	"backend/internal/pathway"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = logger.Init("debug", "console", "stdout")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(pathway.Models()...))
	return db
}

// newTestRouter 构建测试路由，用固定租户身份代替 JWT 中间件
func newTestRouter(db *gorm.DB, tenantID, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("tenant_id", tenantID)
		c.Set("user_id", userID)
		c.Next()
	})

	pathwaySvc := pathway.NewPathwayService(db)
	overrideSvc := pathway.NewOverrideService(db)
	nodeSvc := pathway.NewNodeService(db)
	instanceSvc := pathway.NewInstanceService(db)

	h := NewPathwayHandler(pathwaySvc, overrideSvc)
	n := NewNodeHandler(nodeSvc)
	i := NewInstanceHandler(instanceSvc)

	api := router.Group("/api")
	api.GET("/pathways", h.ListPathways)
	api.POST("/pathways", h.CreatePathway)
	api.GET("/pathways/:id", h.GetPathway)
	api.PUT("/pathways/:id", h.UpdatePathway)
	api.DELETE("/pathways/:id", h.DeletePathway)
	api.POST("/pathways/:id/approve", h.ApprovePathway)
	api.POST("/pathways/:id/nodes", n.CreateNode)
	api.POST("/nodes/:id/options", n.CreateOption)
	api.POST("/instances", i.StartInstance)
	api.GET("/instances/:id", i.GetInstance)
	api.POST("/instances/:id/answer", i.Answer)

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPathwayHandlerLifecycle(t *testing.T) {
	db := setupHandlerTestDB(t)
	router := newTestRouter(db, "tenant-a", "user-1")

	// 创建
	rec := doJSON(t, router, http.MethodPost, "/api/pathways", CreatePathwayRequest{Name: "胸痛分诊"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created pathway.Pathway
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "胸痛分诊", created.Name)
	require.Equal(t, pathway.StatusDraft, created.Status)

	// 占位名称被拒绝
	rec = doJSON(t, router, http.MethodPost, "/api/pathways", CreatePathwayRequest{Name: "New Pathway"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// 查询
	rec = doJSON(t, router, http.MethodGet, "/api/pathways/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// 审批
	rec = doJSON(t, router, http.MethodPost, "/api/pathways/"+created.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var approved pathway.Pathway
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approved))
	require.Equal(t, pathway.StatusApproved, approved.Status)
	require.Equal(t, "user-1", approved.ApprovedBy)

	// 删除
	rec = doJSON(t, router, http.MethodDelete, "/api/pathways/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/api/pathways/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPathwayHandlerTenantIsolation(t *testing.T) {
	db := setupHandlerTestDB(t)
	ownerRouter := newTestRouter(db, "tenant-a", "user-1")
	strangerRouter := newTestRouter(db, "tenant-b", "user-2")

	rec := doJSON(t, ownerRouter, http.MethodPost, "/api/pathways", CreatePathwayRequest{Name: "私有路径"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created pathway.Pathway
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, strangerRouter, http.MethodGet, "/api/pathways/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstanceHandlerFlow(t *testing.T) {
	db := setupHandlerTestDB(t)
	router := newTestRouter(db, "tenant-a", "user-1")

	rec := doJSON(t, router, http.MethodPost, "/api/pathways", CreatePathwayRequest{Name: "运行流程"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var p pathway.Pathway
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))

	rec = doJSON(t, router, http.MethodPost, "/api/pathways/"+p.ID+"/nodes", CreateNodeRequest{
		Type: "QUESTION", Title: "继续吗？", IsStart: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var q pathway.PathwayNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))

	rec = doJSON(t, router, http.MethodPost, "/api/nodes/"+q.ID+"/options", CreateOptionRequest{
		Label: "结束", ActionKey: "SELF_CARE",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var opt pathway.AnswerOption
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opt))

	rec = doJSON(t, router, http.MethodPost, "/api/instances", StartInstanceRequest{PathwayID: p.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	var inst pathway.PathwayInstance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inst))
	require.Equal(t, pathway.InstanceActive, inst.Status)

	// 缺少必填字段
	rec = doJSON(t, router, http.MethodPost, "/api/instances/"+inst.ID+"/answer", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/instances/"+inst.ID+"/answer", AnswerRequest{OptionID: opt.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	var result pathway.TransitionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Completed)
	require.Equal(t, "SELF_CARE", result.ActionKey)

	rec = doJSON(t, router, http.MethodGet, "/api/instances/"+inst.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view pathway.InstanceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, pathway.InstanceCompleted, view.Instance.Status)
	require.Len(t, view.Answers, 1)
}
