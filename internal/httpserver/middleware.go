package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/podcraft/backend/internal/account"
)

const (
	contextKeyUser  = "auth_user"
	contextKeyToken = "auth_token"
	bearerPrefix    = "Bearer "
)

// authRequired resolves the bearer token to a user and aborts with 401 when
// it cannot.
func (server *Server) authRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		rawToken := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		user, err := server.accounts.Authenticate(ctx.Request.Context(), rawToken)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid or expired token"))
			return
		}
		ctx.Set(contextKeyUser, user)
		ctx.Set(contextKeyToken, rawToken)
		ctx.Next()
	}
}

// adminRequired aborts with 403 unless the authenticated user is an admin.
func (server *Server) adminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := currentUser(ctx)
		if !ok || !user.IsAdmin {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse("forbidden", "admin access required"))
			return
		}
		ctx.Next()
	}
}

func currentUser(ctx *gin.Context) (account.User, bool) {
	value, exists := ctx.Get(contextKeyUser)
	if !exists {
		return account.User{}, false
	}
	user, ok := value.(account.User)
	return user, ok
}

func currentToken(ctx *gin.Context) string {
	value, exists := ctx.Get(contextKeyToken)
	if !exists {
		return ""
	}
	token, _ := value.(string)
	return token
}
