package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dvr/internal/api"
	"dvr/internal/config"
	"dvr/internal/conflict"
	"dvr/internal/logging"
	"dvr/internal/store"
)

type apiServer struct {
	bind   string
	secret string
	logger *slog.Logger
	daemon *Daemon
	engine *gin.Engine

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &apiServer{
		bind:   bind,
		secret: strings.TrimSpace(cfg.Paths.APISecret),
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}
	srv.engine = srv.routes()
	srv.server = &http.Server{
		Handler:           srv.engine,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())

	v := router.Group("/api")
	if s.secret != "" {
		v.Use(bearerAuth(s.secret))
	}
	v.GET("/status", s.handleStatus)
	v.GET("/schedules", s.handleListSchedules)
	v.POST("/schedules", s.handleCreateSchedule)
	v.GET("/schedules/:id", s.handleGetSchedule)
	v.DELETE("/schedules/:id", s.handleDeleteSchedule)
	v.POST("/schedules/:id/cancel", s.handleCancelSchedule)
	v.POST("/schedules/:id/stop", s.handleStopRecording)
	v.PUT("/schedules/:id/padding", s.handleUpdatePadding)
	v.PUT("/schedules/:id/stream-url", s.handleStreamURL)
	v.POST("/conflicts", s.handleConflicts)
	v.GET("/recordings", s.handleListRecordings)
	v.GET("/recordings/:id", s.handleGetRecording)
	v.GET("/recordings/:id/thumbnail", s.handleThumbnail)
	v.DELETE("/recordings/:id", s.handleDeleteRecording)
	v.GET("/active", s.handleActive)
	v.GET("/settings", s.handleListSettings)
	v.GET("/settings/:key", s.handleGetSetting)
	v.PUT("/settings/:key", s.handleSaveSetting)
	v.POST("/cleanup", s.handleCleanup)
	v.PUT("/playback", s.handleSetPlayback)
	v.DELETE("/playback", s.handleClearPlayback)
	v.GET("/sources", s.handleSources)
	v.GET("/events", s.handleEvents)
	return router
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api.serve_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.secret != ""),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// APIAddr returns the bound API address, or "" when the API is disabled or not started.
func (d *Daemon) APIAddr() string {
	if d.api == nil || d.api.listener == nil {
		return ""
	}
	return d.api.listener.Addr().String()
}

func (s *apiServer) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Debug("api request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
}

func (s *apiServer) writeError(c *gin.Context, err error) {
	code := api.StatusCode(err)
	if code >= http.StatusInternalServerError {
		logging.ErrorWithContext(s.logger, "api request failed", "api.request_failed",
			logging.String("path", c.FullPath()),
			logging.Error(err),
		)
	}
	c.JSON(code, api.ErrorResponse{Error: err.Error()})
}

func (s *apiServer) decodeBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.writeError(c, fmt.Errorf("decode body: %v: %w", err, api.ErrInvalidRequest))
		return false
	}
	return true
}

func (s *apiServer) idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(c, fmt.Errorf("invalid id %q: %w", c.Param("id"), api.ErrInvalidRequest))
		return 0, false
	}
	return id, true
}

func (s *apiServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.daemon.Status(c.Request.Context()))
}

func (s *apiServer) handleListSchedules(c *gin.Context) {
	var statuses []store.ScheduleStatus
	for _, value := range c.QueryArray("status") {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			statuses = append(statuses, store.ScheduleStatus(trimmed))
		}
	}
	items, err := s.daemon.ListSchedules(c.Request.Context(), statuses...)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromSchedules(items))
}

func (s *apiServer) handleCreateSchedule(c *gin.Context) {
	var body api.ScheduleCreate
	if !s.decodeBody(c, &body) {
		return
	}
	req, err := body.ToRequest()
	if err != nil {
		s.writeError(c, err)
		return
	}
	id, result, err := s.daemon.Schedule(c.Request.Context(), req, body.Force)
	if errors.Is(err, conflict.ErrConflict) {
		c.JSON(http.StatusConflict, api.ConflictError{Error: err.Error(), Conflict: api.FromConflict(result)})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	resp := api.ScheduleCreated{ID: id}
	if result.HasConflict {
		cr := api.FromConflict(result)
		resp.Conflict = &cr
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *apiServer) handleGetSchedule(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	sched, err := s.daemon.GetSchedule(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromSchedule(sched))
}

func (s *apiServer) handleDeleteSchedule(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	if err := s.daemon.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *apiServer) handleCancelSchedule(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	if err := s.daemon.Cancel(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *apiServer) handleStopRecording(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	if err := s.daemon.StopRecording(id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *apiServer) handleUpdatePadding(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	var body api.PaddingUpdate
	if !s.decodeBody(c, &body) {
		return
	}
	ctx := c.Request.Context()
	if err := s.daemon.UpdatePadding(ctx, id, body.StartPaddingSec, body.EndPaddingSec); err != nil {
		s.writeError(c, err)
		return
	}
	sched, err := s.daemon.GetSchedule(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromSchedule(sched))
}

func (s *apiServer) handleStreamURL(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	var body api.StreamURLUpdate
	if !s.decodeBody(c, &body) {
		return
	}
	woke, err := s.daemon.UpdateScheduleStreamURL(c.Request.Context(), id, body.URL)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": woke})
}

func (s *apiServer) handleConflicts(c *gin.Context) {
	var body api.ConflictQuery
	if !s.decodeBody(c, &body) {
		return
	}
	start, err := api.ParseTime(body.Start)
	if err != nil {
		s.writeError(c, err)
		return
	}
	end, err := api.ParseTime(body.End)
	if err != nil {
		s.writeError(c, err)
		return
	}
	result, err := s.daemon.CheckConflicts(c.Request.Context(), body.SourceID, body.ChannelID, start, end)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromConflict(result))
}

func (s *apiServer) handleListRecordings(c *gin.Context) {
	items, err := s.daemon.ListCompleted(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromRecordings(items))
}

func (s *apiServer) handleGetRecording(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	rec, err := s.daemon.GetRecording(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromRecording(rec))
}

func (s *apiServer) handleThumbnail(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	data, err := s.daemon.RecordingThumbnail(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "max-age=3600")
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (s *apiServer) handleDeleteRecording(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	freed, err := s.daemon.DeleteRecording(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bytesFreed": freed})
}

func (s *apiServer) handleActive(c *gin.Context) {
	c.JSON(http.StatusOK, s.daemon.ListActive())
}

func (s *apiServer) handleListSettings(c *gin.Context) {
	settings, err := s.daemon.ListSettings(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *apiServer) handleGetSetting(c *gin.Context) {
	key := c.Param("key")
	value, err := s.daemon.GetSetting(c.Request.Context(), key)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.Setting{Key: key, Value: value})
}

func (s *apiServer) handleSaveSetting(c *gin.Context) {
	key := c.Param("key")
	var body api.Setting
	if !s.decodeBody(c, &body) {
		return
	}
	ctx := c.Request.Context()
	if err := s.daemon.SaveSetting(ctx, key, body.Value); err != nil {
		s.writeError(c, err)
		return
	}
	value, err := s.daemon.GetSetting(ctx, key)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.Setting{Key: key, Value: value})
}

func (s *apiServer) handleCleanup(c *gin.Context) {
	report, err := s.daemon.RunCleanupNow(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *apiServer) handleSetPlayback(c *gin.Context) {
	var body api.PlaybackUpdate
	if !s.decodeBody(c, &body) {
		return
	}
	s.daemon.SetPlayback(body.SourceID, body.ChannelID)
	c.Status(http.StatusNoContent)
}

func (s *apiServer) handleClearPlayback(c *gin.Context) {
	s.daemon.ClearPlayback()
	c.Status(http.StatusNoContent)
}

func (s *apiServer) handleSources(c *gin.Context) {
	sources, err := s.daemon.ListSources(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromSources(sources))
}
