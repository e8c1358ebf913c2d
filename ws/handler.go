package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/english-mastery/backend/models"
	"github.com/english-mastery/backend/services"
	"github.com/english-mastery/backend/utils"
)

// Authenticator resolves an access token to an active account, applying
// the same revocation and account checks as the HTTP API.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *utils.Claims, error)
}

// HandleMaterialWebSocket upgrades an authenticated request and streams
// the user's material status updates. Browsers cannot set headers on a
// websocket handshake, so the token travels in the query string.
func HandleMaterialWebSocket(hub *Hub, auth Authenticator, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": services.CodeUnauthorized, "message": "missing token", "data": nil})
			return
		}
		user, _, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			appErr := services.AsAppError(err)
			if appErr.Status >= http.StatusInternalServerError {
				hub.log.Error("websocket authentication failed", "error", err)
			}
			c.JSON(appErr.Status, gin.H{"code": appErr.Code, "message": appErr.Message, "data": nil})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := hub.Register(user.ID, conn)
		hub.log.Debug("websocket connected", "user_id", user.ID)

		go hub.writePump(client)
		client.Send <- []byte(`{"type":"connected"}`)
		hub.readPump(client)

		hub.log.Debug("websocket disconnected", "user_id", user.ID)
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
