package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	commonauth "filevault/server/common/auth"
	cmnenv "filevault/server/common/env"
	commonlog "filevault/server/common/log"
	"filevault/server/common/middleware"
	"filevault/server/common/transport/httpresp"
	"filevault/server/fileman/domain"
	"filevault/server/fileman/query"
	"filevault/server/fileman/realtime"
	"filevault/server/fileman/service"
)

type Handler struct {
	files *service.FileService
	auth  *commonauth.Service
	hub   *realtime.Hub
	ready func(context.Context) error
}

// NewHandler builds the HTTP surface. ready backs /health/ready and may be nil.
func NewHandler(files *service.FileService, auth *commonauth.Service, hub *realtime.Hub, ready func(context.Context) error) *Handler {
	return &Handler{files: files, auth: auth, hub: hub, ready: ready}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", h.readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.POST("/accounts", h.createAccount)

	api := v1.Group("")
	api.Use(middleware.AuthRequired(h.auth))
	{
		api.POST("/files", h.uploadFile)
		api.GET("/files", h.listFiles)
		api.PATCH("/files/:id/name", h.renameFile)
		api.PUT("/files/:id/users", h.setSharedUsers)
		api.DELETE("/files/:id", h.deleteFile)
		api.POST("/files/:id/download", h.presignDownload)
		api.GET("/usage", h.usage)
		api.GET("/accounts/me", h.currentAccount)
		api.GET("/ws", h.websocket)
	}
}

func (h *Handler) readiness(c *gin.Context) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			commonlog.Warnf("event=fileman_ready status=failed error=%v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) uploadFile(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrUnauthorized))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewFieldErrorResponse("file", httpresp.ErrFileRequired))
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewFieldErrorResponse("file", httpresp.ErrFileRequired))
		return
	}
	defer f.Close()

	item, err := h.files.Upload(c.Request.Context(), caller, service.UploadInput{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		writeError(c, err, httpresp.ErrUploadFailed)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) listFiles(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrUnauthorized))
		return
	}
	categories, err := parseCategories(c.Query("types"))
	if err != nil {
		writeError(c, err, httpresp.ErrListFailed)
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			c.JSON(http.StatusBadRequest, httpresp.NewFieldErrorResponse("limit", "limit must be an integer"))
			return
		}
	}

	items, err := h.files.Find(c.Request.Context(), caller, query.Request{
		Categories: categories,
		SearchText: c.Query("q"),
		Sort:       c.Query("sort"),
		Limit:      limit,
	})
	if err != nil {
		writeError(c, err, httpresp.ErrListFailed)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewListResponse(items))
}

func (h *Handler) renameFile(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrUnauthorized))
		return
	}
	var req struct {
		Name      string `json:"name"`
		Extension string `json:"extension"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	item, err := h.files.Rename(c.Request.Context(), caller, c.Param("id"), req.Name, req.Extension)
	if err != nil {
		writeError(c, err, httpresp.ErrRenameFailed)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) setSharedUsers(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrUnauthorized))
		return
	}
	var req struct {
		Emails []string `json:"emails"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	item, err := h.files.SetSharedUsers(c.Request.Context(), caller, c.Param("id"), req.Emails)
	if err != nil {
		writeError(c, err, httpresp.ErrShareFailed)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) deleteFile(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrUnauthorized))
		return
	}
	if err := h.files.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		writeError(c, err, httpresp.ErrDeleteFailed)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewOKResponse())
}

func (h *Handler) presignDownload(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrUnauthorized))
		return
	}
	url, err := h.files.PresignDownload(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, err, httpresp.ErrDownloadFailed)
		return
	}
	c.JSON(http.StatusOK, httpresp.NewURLResponse(url, int(h.files.PresignTTL().Seconds())))
}

type categoryUsageResponse struct {
	Size       int64     `json:"size"`
	SizeLabel  string    `json:"size_label"`
	LatestDate time.Time `json:"latest_date"`
}

type usageResponse struct {
	Categories map[domain.Category]categoryUsageResponse `json:"categories"`
	Used       int64                                     `json:"used"`
	UsedLabel  string                                    `json:"used_label"`
	All        int64                                     `json:"all"`
	AllLabel   string                                    `json:"all_label"`
}

func (h *Handler) usage(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrUnauthorized))
		return
	}
	categories, err := parseCategories(c.Query("types"))
	if err != nil {
		writeError(c, err, httpresp.ErrUsageFailed)
		return
	}
	summary, err := h.files.Summarize(c.Request.Context(), caller, categories)
	if err != nil {
		writeError(c, err, httpresp.ErrUsageFailed)
		return
	}

	resp := usageResponse{
		Categories: make(map[domain.Category]categoryUsageResponse, len(summary.Categories)),
		Used:       summary.Used,
		UsedLabel:  domain.FormatSize(summary.Used, 2),
		All:        summary.All,
		AllLabel:   domain.FormatSize(summary.All, 0),
	}
	for category, u := range summary.Categories {
		resp.Categories[category] = categoryUsageResponse{
			Size:       u.Size,
			SizeLabel:  domain.FormatSize(u.Size, 2),
			LatestDate: u.LatestDate,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) websocket(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrUnauthorized))
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, caller); err != nil {
		commonlog.Warnf("event=fileman_ws status=upgrade_failed user_id=%s error=%v", caller.UserID, err)
	}
}

func (h *Handler) createAccount(c *gin.Context) {
	var req struct {
		FullName string `json:"fullName" binding:"required"`
		Email    string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	user, err := h.files.CreateAccount(c.Request.Context(), req.FullName, req.Email)
	if err != nil {
		writeError(c, err, httpresp.ErrAccountFailed)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) currentAccount(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrUnauthorized))
		return
	}
	user, err := h.files.GetUserByEmail(c.Request.Context(), caller.Email)
	if err != nil {
		writeError(c, err, httpresp.ErrAccountFailed)
		return
	}
	c.JSON(http.StatusOK, user)
}

// writeError maps the domain taxonomy to a status. Adapter failures get the
// operation's generic message; details only go to the log.
func writeError(c *gin.Context, err error, fallback string) {
	var (
		validationErr *domain.ValidationError
		objectErr     *domain.ObjectWriteError
		metadataErr   *domain.MetadataWriteError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, httpresp.NewErrorResponse(httpresp.ErrFileNotFound))
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, httpresp.NewErrorResponse(httpresp.ErrUserNotFound))
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, httpresp.NewErrorResponse(httpresp.ErrForbidden))
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, httpresp.NewFieldErrorResponse(validationErr.Field, validationErr.Error()))
	case errors.As(err, &objectErr), errors.As(err, &metadataErr):
		commonlog.Errorf("event=fileman_http status=adapter_failed path=%s error=%v", c.FullPath(), err)
		c.JSON(http.StatusBadGateway, httpresp.NewErrorResponse(fallback))
	default:
		commonlog.Errorf("event=fileman_http status=failed path=%s error=%v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(fallback))
	}
}

func callerFromContext(c *gin.Context) (domain.Identity, bool) {
	userID, email, ok := middleware.Identity(c)
	if !ok {
		return domain.Identity{}, false
	}
	return domain.Identity{UserID: userID, Email: email}, true
}

// parseCategories reads a comma separated list such as "document,image".
func parseCategories(raw string) ([]domain.Category, error) {
	parts := cmnenv.SplitCSV(raw)
	out := make([]domain.Category, 0, len(parts))
	for _, part := range parts {
		category, ok := domain.ParseCategory(part)
		if !ok {
			return nil, domain.NewValidationError("types", "unknown file type "+strconv.Quote(part))
		}
		out = append(out, category)
	}
	return out, nil
}
