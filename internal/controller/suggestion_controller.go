package controller

import (
	"knowledge_graph_backend/internal/service"
	"knowledge_graph_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// SuggestionController AI 生成的知识图谱建议，生成后由老师审核入库
type SuggestionController struct {
	SuggestionService *service.ConceptSuggestionService
}

func NewSuggestionController(suggestionService *service.ConceptSuggestionService) *SuggestionController {
	return &SuggestionController{SuggestionService: suggestionService}
}

// @Summary 根据课程生成知识点建议 (老师/管理员)
// @Tags AI建议
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param courseId path string true "课程ID"
// @Param body body service.SuggestFromCourseRequest false "补充上下文"
// @Success 201 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/suggestions/course/{courseId} [post]
func (c *SuggestionController) SuggestFromCourse(ctx *gin.Context) {
	var req service.SuggestFromCourseRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	batch, err := c.SuggestionService.SuggestFromCourse(ctx.Request.Context(), ctx.Param("courseId"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, batch)
}

// @Summary 根据知识点名称生成相关知识点建议 (老师/管理员)
// @Tags AI建议
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body service.SuggestRelatedRequest true "知识点名称"
// @Success 201 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/suggestions/concept [post]
func (c *SuggestionController) SuggestRelated(ctx *gin.Context) {
	var req service.SuggestRelatedRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	batch, err := c.SuggestionService.SuggestRelatedConcepts(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, batch)
}

// @Summary 获取建议批次
// @Tags AI建议
// @Security BearerAuth
// @Produce json
// @Param batchId path string true "批次ID"
// @Success 200 {object} util.Response
// @Router /api/suggestions/{batchId} [get]
func (c *SuggestionController) GetBatch(ctx *gin.Context) {
	batch, err := c.SuggestionService.GetBatch(ctx.Request.Context(), ctx.Param("batchId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, batch)
}

// @Summary 调整批次内条目的审核状态
// @Tags AI建议
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param batchId path string true "批次ID"
// @Param body body service.SetItemStatusRequest true "条目状态"
// @Success 200 {object} util.Response
// @Router /api/suggestions/{batchId}/items [patch]
func (c *SuggestionController) SetItemStatus(ctx *gin.Context) {
	var req service.SetItemStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	batch, err := c.SuggestionService.SetItemStatus(ctx.Request.Context(), ctx.Param("batchId"), req.Items)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, batch)
}

// @Summary 通过批次中所有待审核条目
// @Description 依次创建知识点、关系与课程映射，无法解析名称的条目保持待审核
// @Tags AI建议
// @Security BearerAuth
// @Produce json
// @Param batchId path string true "批次ID"
// @Success 200 {object} util.Response
// @Router /api/suggestions/{batchId}/approve [post]
func (c *SuggestionController) ApproveBatch(ctx *gin.Context) {
	result, err := c.SuggestionService.ApproveBatch(ctx.Request.Context(), ctx.Param("batchId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 拒绝批次中所有未通过的条目
// @Tags AI建议
// @Security BearerAuth
// @Produce json
// @Param batchId path string true "批次ID"
// @Success 200 {object} util.Response
// @Router /api/suggestions/{batchId}/reject [post]
func (c *SuggestionController) RejectBatch(ctx *gin.Context) {
	batch, err := c.SuggestionService.RejectBatch(ctx.Request.Context(), ctx.Param("batchId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, batch)
}
