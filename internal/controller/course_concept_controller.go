package controller

import (
	"math"

	"knowledge_graph_backend/internal/service"
	"knowledge_graph_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// CourseConceptController 课程与知识点的映射及选课前置检查
type CourseConceptController struct {
	Graph         *service.KnowledgeGraphService
	Prerequisites *service.PrerequisiteCheckService
}

func NewCourseConceptController(graph *service.KnowledgeGraphService, prerequisites *service.PrerequisiteCheckService) *CourseConceptController {
	return &CourseConceptController{Graph: graph, Prerequisites: prerequisites}
}

// @Summary 获取课程覆盖的知识点
// @Tags 课程知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/concepts [get]
func (c *CourseConceptController) List(ctx *gin.Context) {
	mappings, err := c.Graph.GetCourseConcepts(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, mappings)
}

// @Summary 关联知识点到课程 (老师/管理员)
// @Description 已存在映射时更新覆盖程度、顺序与权重
// @Tags 课程知识点
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "课程ID"
// @Param body body service.LinkConceptRequest true "映射信息"
// @Success 201 {object} util.Response
// @Router /api/courses/{id}/concepts [post]
func (c *CourseConceptController) Link(ctx *gin.Context) {
	var req service.LinkConceptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	mapping, err := c.Graph.LinkConceptToCourse(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, mapping)
}

// @Summary 取消课程与知识点的关联 (老师/管理员)
// @Tags 课程知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "课程ID"
// @Param conceptId path string true "知识点ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/concepts/{conceptId} [delete]
func (c *CourseConceptController) Unlink(ctx *gin.Context) {
	ok, err := c.Graph.UnlinkConceptFromCourse(ctx.Request.Context(), ctx.Param("id"), ctx.Param("conceptId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !ok {
		util.NotFound(ctx, "course concept link")
		return
	}
	util.Success(ctx, nil)
}

// @Summary 检查当前用户能否选修课程
// @Tags 课程知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "课程ID"
// @Param threshold query number false "最低掌握度 0-1"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/prerequisites/check [get]
func (c *CourseConceptController) Check(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	threshold := util.QueryFloat(ctx, "threshold", c.Prerequisites.DefaultThreshold)
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 || threshold > 1 {
		util.BadRequest(ctx, "threshold must be between 0 and 1")
		return
	}

	result, err := c.Prerequisites.CheckCoursePrerequisites(ctx.Request.Context(), userID, ctx.Param("id"), threshold)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 批量检查多门课程的前置要求
// @Tags 课程知识点
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.BulkPrerequisiteCheckRequest true "课程列表"
// @Success 200 {object} util.Response
// @Router /api/courses/prerequisites/check [post]
func (c *CourseConceptController) BulkCheck(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.BulkPrerequisiteCheckRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	threshold := c.Prerequisites.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results, err := c.Prerequisites.BulkCheckCoursePrerequisites(ctx.Request.Context(), userID, req.CourseIDs, threshold)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// @Summary 获取课程的前置知识树
// @Tags 课程知识点
// @Produce json
// @Security BearerAuth
// @Param id path string true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/prerequisites/tree [get]
func (c *CourseConceptController) Tree(ctx *gin.Context) {
	tree, err := c.Prerequisites.GetPrerequisiteTree(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, tree)
}
