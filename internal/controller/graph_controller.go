package controller

import (
	"knowledge_graph_backend/internal/service"
	"knowledge_graph_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// GraphController 关系维护与整图操作
type GraphController struct {
	Service *service.KnowledgeGraphService
	Export  *service.GraphExportService
}

func NewGraphController(svc *service.KnowledgeGraphService, export *service.GraphExportService) *GraphController {
	return &GraphController{Service: svc, Export: export}
}

// @Summary 创建知识点关系 (老师/管理员)
// @Description 先修关系成环时返回 409
// @Tags 知识图谱
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateRelationshipRequest true "关系信息"
// @Success 201 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/relationships [post]
func (c *GraphController) CreateRelationship(ctx *gin.Context) {
	var req service.CreateRelationshipRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	rel, err := c.Service.CreateRelationship(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, rel)
}

// @Summary 更新关系强度或描述 (老师/管理员)
// @Tags 知识图谱
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "关系ID"
// @Param body body service.UpdateRelationshipRequest true "需要修改的字段"
// @Success 200 {object} util.Response
// @Router /api/relationships/{id} [put]
func (c *GraphController) UpdateRelationship(ctx *gin.Context) {
	var req service.UpdateRelationshipRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	rel, err := c.Service.UpdateRelationship(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if rel == nil {
		util.NotFound(ctx, "relationship")
		return
	}
	util.Success(ctx, rel)
}

// @Summary 删除关系 (老师/管理员)
// @Tags 知识图谱
// @Produce json
// @Security BearerAuth
// @Param id path string true "关系ID"
// @Success 200 {object} util.Response
// @Router /api/relationships/{id} [delete]
func (c *GraphController) DeleteRelationship(ctx *gin.Context) {
	ok, err := c.Service.DeleteRelationship(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !ok {
		util.NotFound(ctx, "relationship")
		return
	}
	util.Success(ctx, nil)
}

// @Summary 检查新增先修关系是否成环
// @Tags 知识图谱
// @Produce json
// @Security BearerAuth
// @Param source_id query string true "源知识点"
// @Param target_id query string true "目标知识点"
// @Success 200 {object} util.Response
// @Router /api/relationships/cycle-check [get]
func (c *GraphController) CycleCheck(ctx *gin.Context) {
	sourceID, targetID := ctx.Query("source_id"), ctx.Query("target_id")
	if sourceID == "" || targetID == "" {
		util.BadRequest(ctx, "source_id and target_id are required")
		return
	}

	cyclic, err := c.Service.CheckCircularDependency(ctx.Request.Context(), sourceID, targetID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"would_create_cycle": cyclic})
}

// @Summary 校验整个知识图谱
// @Tags 知识图谱
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/graph/validate [get]
func (c *GraphController) Validate(ctx *gin.Context) {
	result, err := c.Service.ValidateGraph(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 查找两个知识点之间的最短学习路径
// @Tags 知识图谱
// @Produce json
// @Security BearerAuth
// @Param from query string true "起点知识点"
// @Param to query string true "终点知识点"
// @Success 200 {object} util.Response
// @Router /api/graph/path [get]
func (c *GraphController) Path(ctx *gin.Context) {
	from, to := ctx.Query("from"), ctx.Query("to")
	if from == "" || to == "" {
		util.BadRequest(ctx, "from and to are required")
		return
	}

	path, err := c.Service.FindLearningPath(ctx.Request.Context(), from, to)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if path == nil {
		util.NotFound(ctx, "learning path")
		return
	}
	util.Success(ctx, path)
}

// @Summary 导出知识图谱快照 (老师/管理员)
// @Tags 知识图谱
// @Produce json
// @Security BearerAuth
// @Success 201 {object} util.Response
// @Router /api/graph/export [post]
func (c *GraphController) ExportGraph(ctx *gin.Context) {
	result, err := c.Export.Export(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, result)
}
