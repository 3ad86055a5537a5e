package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	logger "github.com/Gopher0727/MovieNight/middleware/log"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "user_id"

var errUnauthenticated = apperr.Unauthorized("authentication required")

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	ErrorID string `json:"error_id,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// okWithMessage is ok plus an envelope message; an empty message is omitted.
func okWithMessage(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Message: message})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func done(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

// fail renders err and attaches it to the gin context so the access log
// records it. Internal failures carry the trace id; in release mode their
// detail is replaced by a generic message.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Wrap(apperr.KindInternal, err, "internal server error")
	}
	status := apperr.HTTPStatus(appErr.Kind)

	resp := Response{Error: appErr.Error()}
	if status >= http.StatusInternalServerError {
		resp.ErrorID = logger.GetTraceID(c.Request.Context())
		if gin.Mode() == gin.ReleaseMode {
			resp.Error = appErr.Message
		}
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	fail(c, apperr.Wrap(apperr.KindValidation, err, "invalid request body"))
}

func userID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextUserID)
	if id == "" {
		fail(c, errUnauthenticated)
		return "", false
	}
	return id, true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		fail(c, apperr.Validation("%s must be a positive integer", name))
		return 0, false
	}
	return v, true
}

// pageRequest reads ?page and ?limit; unparseable values fall back to the
// defaults.
func pageRequest(c *gin.Context) model.PageRequest {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return model.NewPageRequest(page, limit)
}
