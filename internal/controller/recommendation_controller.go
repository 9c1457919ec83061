package controller

import (
	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/service"
	"knowledge_graph_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RecommendationController struct {
	Service *service.LearningRecommendationService
}

func NewRecommendationController(svc *service.LearningRecommendationService) *RecommendationController {
	return &RecommendationController{Service: svc}
}

// @Summary 获取学习推荐
// @Tags 学习推荐
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量"
// @Param concept_type query []string false "知识点类型"
// @Param difficulty query string false "难度偏好"
// @Param topics query []string false "感兴趣的主题"
// @Param time_available query number false "可投入的小时数"
// @Success 200 {object} util.Response
// @Router /api/recommendations [get]
func (c *RecommendationController) List(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	opts := model.RecommendationOptions{
		Limit:                util.QueryInt(ctx, "limit", 0),
		DifficultyPreference: model.DifficultyLevel(ctx.Query("difficulty")),
	}
	for _, t := range util.QueryList(ctx, "concept_type") {
		opts.ConceptTypes = append(opts.ConceptTypes, model.ConceptType(t))
	}
	topics := util.QueryList(ctx, "topics")
	if len(topics) > 0 || ctx.Query("time_available") != "" {
		prefs := &model.UserPreferences{Topics: topics}
		if ctx.Query("time_available") != "" {
			hours := util.QueryFloat(ctx, "time_available", 0)
			prefs.TimeAvailable = &hours
		}
		opts.UserPreferences = prefs
	}

	recs, err := c.Service.GetRecommendations(ctx.Request.Context(), userID, opts)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, recs)
}

// @Summary 完成某知识点后的下一步
// @Tags 学习推荐
// @Produce json
// @Security BearerAuth
// @Param conceptId path string true "已完成的知识点"
// @Param limit query int false "数量"
// @Success 200 {object} util.Response
// @Router /api/recommendations/next-steps/{conceptId} [get]
func (c *RecommendationController) NextSteps(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	recs, err := c.Service.GetNextSteps(ctx.Request.Context(), userID, ctx.Param("conceptId"), util.QueryInt(ctx, "limit", 0))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, recs)
}

// @Summary 补足薄弱类型的推荐
// @Tags 学习推荐
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量"
// @Success 200 {object} util.Response
// @Router /api/recommendations/fill-gaps [get]
func (c *RecommendationController) FillGaps(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	recs, err := c.Service.GetFillTheGapRecommendations(ctx.Request.Context(), userID, util.QueryInt(ctx, "limit", 0))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, recs)
}

// @Summary 课程推荐
// @Tags 学习推荐
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量"
// @Success 200 {object} util.Response
// @Router /api/recommendations/courses [get]
func (c *RecommendationController) Courses(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	recs, err := c.Service.GetCourseRecommendations(ctx.Request.Context(), userID, util.QueryInt(ctx, "limit", 0))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, recs)
}
