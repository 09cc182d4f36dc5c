package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"filevault/server/common/transport/httpresp"
)

const (
	ContextUserID = "auth_user_id"
	ContextEmail  = "auth_email"
)

type tokenAuth interface {
	ParseAuthContext(token string) (userID, email string, err error)
}

// AuthRequired resolves the bearer token into the caller identity and stores
// it on the gin context for handlers.
func AuthRequired(auth tokenAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrMissingBearerToken))
			return
		}
		userID, email, err := auth.ParseAuthContext(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrInvalidToken))
			return
		}
		c.Set(ContextUserID, userID)
		c.Set(ContextEmail, email)
		c.Next()
	}
}

// bearerToken also accepts ?access_token= because browsers cannot set headers
// on websocket upgrades.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		return token, token != ""
	}
	if token := strings.TrimSpace(c.Query("access_token")); token != "" {
		return token, true
	}
	return "", false
}

func Identity(c *gin.Context) (string, string, bool) {
	userID := c.GetString(ContextUserID)
	email := c.GetString(ContextEmail)
	if userID == "" || email == "" {
		return "", "", false
	}
	return userID, email, true
}
