package util

import (
	"net/http"

	"knowledge_graph_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: http.StatusCreated, Message: "created", Data: data})
}

// Error 中间件中调用时同时中止后续处理
func Error(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{Code: code, Message: message})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "authentication required")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "insufficient role for this operation")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound resource 如 "concept"、"relationship"
func NotFound(c *gin.Context, resource string) {
	Error(c, http.StatusNotFound, resource+" not found")
}

// Conflict 先修关系成环等与图谱现状冲突的写入
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// BadGateway 概念建议生成失败或返回内容不合法
func BadGateway(c *gin.Context, message string) {
	Error(c, http.StatusBadGateway, message)
}

func TooManyRequests(c *gin.Context) {
	Error(c, http.StatusTooManyRequests, "too many requests")
}

func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err),
	}
	if user := GetUserFromContext(c); user != nil {
		fields = append(fields, zap.String("user_id", user.UserID))
	}
	logger.Log.Error("Request failed", fields...)
	InternalServerError(c)
}
