package controller

import (
	"errors"
	"net/http"

	"knowledge_graph_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// respondError 将服务层哨兵错误映射为 HTTP 状态码，其余按 500 处理
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrConceptNotFound),
		errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrBatchNotFound),
		errors.Is(err, util.ErrSuggestionItem):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrCircularDependency):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrRelationshipInvalid),
		errors.Is(err, util.ErrInvalidEvidence),
		errors.Is(err, util.ErrInvalidMasteryLevel),
		errors.Is(err, util.ErrInvalidMasteryConfig),
		errors.Is(err, util.ErrUnresolvedReference):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrGenerationFailed),
		errors.Is(err, util.ErrInvalidSuggestion):
		util.BadGateway(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// currentUserID 未登录时写入 401 并返回 false
func currentUserID(ctx *gin.Context) (string, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil || user.UserID == "" {
		util.Unauthorized(ctx)
		return "", false
	}
	return user.UserID, true
}
