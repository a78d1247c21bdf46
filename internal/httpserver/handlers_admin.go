package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podcraft/backend/internal/admin"
)

func (server *Server) handleAdminListUsers(ctx *gin.Context) {
	offset, limit := pagingParams(ctx)
	summaries, err := server.admins.ListUsers(ctx.Request.Context(), offset, limit)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payloads := make([]gin.H, 0, len(summaries))
	for _, summary := range summaries {
		payloads = append(payloads, gin.H{
			"user":            mapUserPayload(summary.User),
			"current_credits": summary.CurrentCredits,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"users": payloads})
}

type adminUpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	IsAdmin   *bool   `json:"is_admin"`
}

func (server *Server) handleAdminUpdateUser(ctx *gin.Context) {
	var request adminUpdateUserRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	updated, err := server.admins.UpdateUser(ctx.Request.Context(), ctx.Param("userID"), admin.UserUpdate{
		FirstName: request.FirstName,
		LastName:  request.LastName,
		IsAdmin:   request.IsAdmin,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": mapUserPayload(updated)})
}

func (server *Server) handleAdminDeleteUser(ctx *gin.Context) {
	if err := server.admins.DeleteUser(ctx.Request.Context(), ctx.Param("userID")); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type grantCreditsRequest struct {
	Credits int64  `json:"credits"`
	Reason  string `json:"reason"`
}

func (server *Server) handleAdminGrantCredits(ctx *gin.Context) {
	operator, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request grantCreditsRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	granted, err := server.admins.GrantCredits(ctx.Request.Context(), operator.UserID, ctx.Param("userID"), request.Credits, request.Reason)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"transaction": mapTransactionPayload(granted)})
}

type setBalanceRequest struct {
	Balance int64 `json:"balance"`
}

func (server *Server) handleAdminSetBalance(ctx *gin.Context) {
	operator, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request setBalanceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	adjusted, err := server.admins.SetBalance(ctx.Request.Context(), operator.UserID, ctx.Param("userID"), request.Balance)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"transaction": mapTransactionPayload(adjusted)})
}

func (server *Server) handleAdminStats(ctx *gin.Context) {
	stats, err := server.admins.PlatformStats(ctx.Request.Context())
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	recent := make([]userPayload, 0, len(stats.RecentUsers))
	for _, user := range stats.RecentUsers {
		recent = append(recent, mapUserPayload(user))
	}
	ctx.JSON(http.StatusOK, gin.H{"stats": gin.H{
		"total_users":                  stats.TotalUsers,
		"total_admins":                 stats.TotalAdmins,
		"total_projects":               stats.TotalProjects,
		"total_credits_in_circulation": stats.TotalCreditsInCirculation,
		"recent_users":                 recent,
	}})
}
