package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/english-mastery/backend/logger"
	"github.com/english-mastery/backend/services"
)

// Every JSON response uses the {code, message, data} envelope; code 0 is success.
func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"code": 0, "message": message, "data": data})
}

func respondError(c *gin.Context, log *logger.Logger, err error) {
	appErr := services.AsAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(appErr.Status, gin.H{"code": appErr.Code, "message": appErr.Message, "data": nil})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"code": services.CodeInvalidParams, "message": err.Error(), "data": nil})
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": services.CodeInvalidParams, "message": "invalid " + name, "data": nil})
		return 0, false
	}
	return uint(id), true
}

func currentUser(c *gin.Context) (uint, bool) {
	v, ok := c.Get("user_id")
	if id, isUint := v.(uint); ok && isUint {
		return id, true
	}
	c.JSON(http.StatusUnauthorized, gin.H{"code": services.CodeUnauthorized, "message": "authentication required", "data": nil})
	return 0, false
}
