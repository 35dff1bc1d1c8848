package util

import (
	"errors"
	"net/http"

	"kbot_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

// MapError 将领域错误映射为HTTP响应，未识别的错误记录日志并返回500
func MapError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownSession),
		errors.Is(err, ErrUnknownKnowledgeBase),
		errors.Is(err, ErrGraphNotBuilt):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidModuleReference),
		errors.Is(err, ErrInvalidArtifact),
		errors.Is(err, ErrMissingUserID):
		BadRequest(c, err.Error())
	case errors.Is(err, ErrSequenceConflict):
		Conflict(c, err.Error())
	case errors.Is(err, ErrSessionAbandoned):
		Error(c, http.StatusGone, err.Error())
	default:
		LogInternalError(c, err)
	}
}
