package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podcraft/backend/internal/account"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (server *Server) handleRegister(ctx *gin.Context) {
	var request registerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	user, err := server.accounts.Register(ctx.Request.Context(), request.Email, request.Password, request.FirstName, request.LastName)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"user": mapUserPayload(user)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (server *Server) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	session, user, err := server.accounts.Login(ctx.Request.Context(), request.Email, request.Password)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"access_token":     session.Token,
		"token_type":       "bearer",
		"expires_unix_utc": session.ExpiresUnixUTC,
		"user":             mapUserPayload(user),
	})
}

func (server *Server) handleLogout(ctx *gin.Context) {
	if err := server.accounts.Logout(ctx.Request.Context(), currentToken(ctx)); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (server *Server) handleMe(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": mapUserPayload(user)})
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (server *Server) handleUpdateProfile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request updateProfileRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	updated, err := server.accounts.UpdateProfile(ctx.Request.Context(), user.UserID, account.ProfileUpdate{
		FirstName: request.FirstName,
		LastName:  request.LastName,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": mapUserPayload(updated)})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// handleForgotPassword always answers 200 so the endpoint cannot be used to
// probe for registered addresses. In production the token is delivered by
// mail; the response only says whether one was issued.
func (server *Server) handleForgotPassword(ctx *gin.Context) {
	var request forgotPasswordRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if _, err := server.accounts.ForgotPassword(ctx.Request.Context(), request.Email); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "reset_requested"})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (server *Server) handleResetPassword(ctx *gin.Context) {
	var request resetPasswordRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if err := server.accounts.ResetPassword(ctx.Request.Context(), request.Token, request.NewPassword); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "password_reset"})
}
