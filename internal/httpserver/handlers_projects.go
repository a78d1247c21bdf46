package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/podcraft/backend/internal/project"
)

type projectDraftRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Voice       string `json:"voice"`
}

func (server *Server) handleCreateProject(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request projectDraftRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	created, err := server.projects.Create(ctx.Request.Context(), user.UserID, project.Draft{
		Title:       request.Title,
		Description: request.Description,
		Voice:       request.Voice,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"project": mapProjectPayload(created)})
}

func (server *Server) handleListProjects(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	offset, limit := pagingParams(ctx)
	listed, err := server.projects.List(ctx.Request.Context(), user.UserID, offset, limit)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payloads := make([]projectPayload, 0, len(listed))
	for _, item := range listed {
		payloads = append(payloads, mapProjectPayload(item))
	}
	ctx.JSON(http.StatusOK, gin.H{"projects": payloads})
}

func (server *Server) handleGetProject(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	loaded, err := server.projects.Get(ctx.Request.Context(), user.UserID, ctx.Param("projectID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"project": mapProjectPayload(loaded)})
}

type projectUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Voice       *string `json:"voice"`
}

func (server *Server) handleUpdateProject(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request projectUpdateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	updated, err := server.projects.Update(ctx.Request.Context(), user.UserID, ctx.Param("projectID"), project.DraftUpdate{
		Title:       request.Title,
		Description: request.Description,
		Voice:       request.Voice,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"project": mapProjectPayload(updated)})
}

func (server *Server) handleDeleteProject(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	if err := server.projects.Delete(ctx.Request.Context(), user.UserID, ctx.Param("projectID")); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type generateRequest struct {
	WithImage bool `json:"with_image"`
	WithVideo bool `json:"with_video"`
}

func (server *Server) handleGenerateProject(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request generateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	generated, err := server.projects.Generate(ctx.Request.Context(), user.UserID, ctx.Param("projectID"), project.GenerateOptions{
		WithImage: request.WithImage,
		WithVideo: request.WithVideo,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"project": mapProjectPayload(generated)})
}

func pagingParams(ctx *gin.Context) (offset int, limit int) {
	offset, _ = strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", "0"))
	return offset, limit
}
