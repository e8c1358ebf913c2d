package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/english-mastery/backend/ws"
)

type HealthController struct {
	db  *gorm.DB
	rdb *goredis.Client
	hub *ws.Hub
}

// NewHealthController accepts a nil redis client when redis is not configured.
func NewHealthController(db *gorm.DB, rdb *goredis.Client, hub *ws.Hub) *HealthController {
	return &HealthController{db: db, rdb: rdb, hub: hub}
}

func (hc *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	response := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"db":        "ok",
		"redis":     "disabled",
		"websocket": hc.hub.GetStats(),
	}
	healthy := true

	sqlDB, err := hc.db.DB()
	if err != nil {
		response["db"] = "error: cannot get DB instance"
		healthy = false
	} else if err := sqlDB.PingContext(ctx); err != nil {
		response["db"] = "error: cannot connect to DB"
		healthy = false
	}

	if hc.rdb != nil {
		response["redis"] = "ok"
		if err := hc.rdb.Ping(ctx).Err(); err != nil {
			response["redis"] = "error: cannot connect to redis"
			healthy = false
		}
	}

	if !healthy {
		response["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
