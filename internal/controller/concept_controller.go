package controller

import (
	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/service"
	"knowledge_graph_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ConceptController struct {
	Service *service.KnowledgeGraphService
}

func NewConceptController(svc *service.KnowledgeGraphService) *ConceptController {
	return &ConceptController{Service: svc}
}

// @Summary 获取知识点列表
// @Tags 知识点
// @Produce json
// @Security BearerAuth
// @Param type query []string false "类型，可重复或逗号分隔"
// @Param difficulty_level query []string false "难度"
// @Param is_active query bool false "是否启用"
// @Param search query string false "名称/描述关键字"
// @Success 200 {object} util.Response
// @Router /api/concepts [get]
func (c *ConceptController) List(ctx *gin.Context) {
	filters := model.ConceptFilters{Search: ctx.Query("search")}
	for _, t := range util.QueryList(ctx, "type") {
		filters.Types = append(filters.Types, model.ConceptType(t))
	}
	for _, d := range util.QueryList(ctx, "difficulty_level") {
		filters.Difficulties = append(filters.Difficulties, model.DifficultyLevel(d))
	}
	if raw := ctx.Query("is_active"); raw != "" {
		active := raw == "true" || raw == "1"
		filters.IsActive = &active
	}

	concepts, err := c.Service.GetConcepts(ctx.Request.Context(), filters)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, concepts)
}

// @Summary 获取知识点详情
// @Tags 知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "知识点ID"
// @Success 200 {object} util.Response
// @Router /api/concepts/{id} [get]
func (c *ConceptController) Get(ctx *gin.Context) {
	concept, err := c.Service.GetConcept(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if concept == nil {
		util.NotFound(ctx, "concept")
		return
	}
	util.Success(ctx, concept)
}

// @Summary 按 slug 获取知识点
// @Tags 知识点
// @Produce json
// @Security BearerAuth
// @Param slug path string true "知识点 slug"
// @Success 200 {object} util.Response
// @Router /api/concepts/slug/{slug} [get]
func (c *ConceptController) GetBySlug(ctx *gin.Context) {
	concept, err := c.Service.GetConceptBySlug(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if concept == nil {
		util.NotFound(ctx, "concept")
		return
	}
	util.Success(ctx, concept)
}

// @Summary 创建知识点 (老师/管理员)
// @Tags 知识点
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateConceptRequest true "知识点信息"
// @Success 201 {object} util.Response
// @Router /api/concepts [post]
func (c *ConceptController) Create(ctx *gin.Context) {
	var req service.CreateConceptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	concept, err := c.Service.CreateConcept(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, concept)
}

// @Summary 更新知识点 (老师/管理员)
// @Tags 知识点
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "知识点ID"
// @Param body body service.UpdateConceptRequest true "需要修改的字段"
// @Success 200 {object} util.Response
// @Router /api/concepts/{id} [put]
func (c *ConceptController) Update(ctx *gin.Context) {
	var req service.UpdateConceptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	concept, err := c.Service.UpdateConcept(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if concept == nil {
		util.NotFound(ctx, "concept")
		return
	}
	util.Success(ctx, concept)
}

// @Summary 停用知识点 (老师/管理员)
// @Tags 知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "知识点ID"
// @Success 200 {object} util.Response
// @Router /api/concepts/{id} [delete]
func (c *ConceptController) Delete(ctx *gin.Context) {
	ok, err := c.Service.DeleteConcept(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !ok {
		util.NotFound(ctx, "concept")
		return
	}
	util.Success(ctx, nil)
}

// @Summary 获取知识点的关系
// @Tags 知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "知识点ID"
// @Param type query string false "关系类型"
// @Success 200 {object} util.Response
// @Router /api/concepts/{id}/relationships [get]
func (c *ConceptController) Relationships(ctx *gin.Context) {
	rels, err := c.Service.GetRelationships(ctx.Request.Context(), ctx.Param("id"), model.RelationshipType(ctx.Query("type")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, rels)
}

// @Summary 获取直接前置知识点
// @Tags 知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "知识点ID"
// @Success 200 {object} util.Response
// @Router /api/concepts/{id}/prerequisites [get]
func (c *ConceptController) Prerequisites(ctx *gin.Context) {
	concepts, err := c.Service.GetPrerequisites(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, concepts)
}

// @Summary 获取依赖该知识点的后续知识点
// @Tags 知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "知识点ID"
// @Success 200 {object} util.Response
// @Router /api/concepts/{id}/dependents [get]
func (c *ConceptController) Dependents(ctx *gin.Context) {
	concepts, err := c.Service.GetDependents(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, concepts)
}

// @Summary 获取完整前置链
// @Tags 知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "知识点ID"
// @Success 200 {object} util.Response
// @Router /api/concepts/{id}/chain [get]
func (c *ConceptController) Chain(ctx *gin.Context) {
	chain, err := c.Service.GetPrerequisiteChain(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, chain)
}

// @Summary 获取覆盖该知识点的课程
// @Tags 知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "知识点ID"
// @Success 200 {object} util.Response
// @Router /api/concepts/{id}/courses [get]
func (c *ConceptController) Courses(ctx *gin.Context) {
	mappings, err := c.Service.GetConceptCourses(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, mappings)
}

// @Summary 检查当前用户是否满足知识点的前置要求
// @Tags 知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "知识点ID"
// @Param min_level query string false "最低掌握等级，默认 intermediate"
// @Success 200 {object} util.Response
// @Router /api/concepts/{id}/prerequisites/check [get]
func (c *ConceptController) CheckPrerequisites(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	minLevel := model.MasteryLevel(ctx.DefaultQuery("min_level", string(model.MasteryIntermediate)))
	result, err := c.Service.ValidatePrerequisites(ctx.Request.Context(), userID, ctx.Param("id"), minLevel)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
