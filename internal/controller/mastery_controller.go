package controller

import (
	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/service"
	"knowledge_graph_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MasteryController struct {
	Service *service.UserMasteryService
}

func NewMasteryController(svc *service.UserMasteryService) *MasteryController {
	return &MasteryController{Service: svc}
}

// @Summary 获取当前用户的掌握度列表
// @Tags 掌握度
// @Produce json
// @Security BearerAuth
// @Param mastery_level query []string false "掌握等级，可重复或逗号分隔"
// @Param min_confidence query number false "最低置信度"
// @Param recently_practiced query bool false "仅最近 30 天练习过的"
// @Success 200 {object} util.Response
// @Router /api/mastery [get]
func (c *MasteryController) List(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var filters model.MasteryFilters
	for _, l := range util.QueryList(ctx, "mastery_level") {
		filters.Levels = append(filters.Levels, model.MasteryLevel(l))
	}
	if ctx.Query("min_confidence") != "" {
		v := util.QueryFloat(ctx, "min_confidence", 0)
		filters.MinConfidence = &v
	}
	filters.RecentlyPracticed = ctx.Query("recently_practiced") == "true"

	masteries, err := c.Service.GetUserMasteries(ctx.Request.Context(), userID, filters)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, masteries)
}

// @Summary 获取当前用户的掌握度汇总
// @Tags 掌握度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/mastery/summary [get]
func (c *MasteryController) Summary(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	summary, err := c.Service.GetMasterySummary(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary 获取当前用户对某个知识点的掌握度
// @Tags 掌握度
// @Produce json
// @Security BearerAuth
// @Param conceptId path string true "知识点ID"
// @Success 200 {object} util.Response
// @Router /api/mastery/{conceptId} [get]
func (c *MasteryController) Get(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	mastery, err := c.Service.GetMastery(ctx.Request.Context(), userID, ctx.Param("conceptId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if mastery == nil {
		util.NotFound(ctx, "mastery record")
		return
	}
	util.Success(ctx, mastery)
}

// @Summary 追加一条掌握度证据
// @Tags 掌握度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param conceptId path string true "知识点ID"
// @Param body body service.EvidenceRequest true "证据"
// @Success 201 {object} util.Response
// @Router /api/mastery/{conceptId}/evidence [post]
func (c *MasteryController) AddEvidence(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.EvidenceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	mastery, err := c.Service.AddEvidence(ctx.Request.Context(), userID, ctx.Param("conceptId"), req.ToEvidencePoint())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, mastery)
}

// @Summary 记录测评成绩
// @Tags 掌握度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.AssessmentRequest true "测评结果"
// @Success 201 {object} util.Response
// @Router /api/mastery/assessments [post]
func (c *MasteryController) RecordAssessment(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.AssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	mastery, err := c.Service.RecordAssessment(ctx.Request.Context(), userID, req.ConceptID, req.AssessmentID, req.Score)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, mastery)
}

// @Summary 记录练习结果
// @Tags 掌握度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.PracticeRequest true "练习结果"
// @Success 201 {object} util.Response
// @Router /api/mastery/practice [post]
func (c *MasteryController) RecordPractice(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.PracticeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	mastery, err := c.Service.RecordPractice(ctx.Request.Context(), userID, req.ConceptID, req.ExerciseID, req.Attempts, req.Success)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, mastery)
}

// @Summary 记录学习时长
// @Tags 掌握度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.TimeSpentRequest true "学习时长(分钟)"
// @Success 201 {object} util.Response
// @Router /api/mastery/time-spent [post]
func (c *MasteryController) RecordTimeSpent(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.TimeSpentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	mastery, err := c.Service.RecordTimeSpent(ctx.Request.Context(), userID, req.ConceptID, req.Minutes)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, mastery)
}

// @Summary 记录课程完成
// @Description 为课程覆盖的每个知识点追加证据
// @Tags 掌握度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CourseCompletionRequest true "课程完成信息"
// @Success 201 {object} util.Response
// @Router /api/mastery/course-completions [post]
func (c *MasteryController) RecordCourseCompletion(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.CourseCompletionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	recorded, err := c.Service.RecordCourseCompletion(ctx.Request.Context(), userID, req.CourseID, req.Score)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"course_id": req.CourseID, "concepts_updated": recorded})
}

// @Summary 获取掌握度计算配置 (管理员)
// @Tags 管理员
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/mastery/config [get]
func (c *MasteryController) GetConfig(ctx *gin.Context) {
	util.Success(ctx, c.Service.Config())
}

// @Summary 更新掌握度计算配置 (管理员)
// @Description 未给出的字段沿用默认值
// @Tags 管理员
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.MasteryConfigOverride true "配置覆盖项"
// @Success 200 {object} util.Response
// @Router /api/admin/mastery/config [put]
func (c *MasteryController) UpdateConfig(ctx *gin.Context) {
	var override model.MasteryConfigOverride
	if err := ctx.ShouldBindJSON(&override); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	cfg, err := c.Service.SetConfig(override)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, cfg)
}
