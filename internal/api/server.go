// Package api serves the webhook endpoint and the small operational
// surface around it: run status, manual triggers, and stats.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/mergelens/internal/config"
	"github.com/mergelens/internal/gitlab"
	"github.com/mergelens/pkg/models"
)

// Runner executes one review with a caller-chosen run ID.
type Runner interface {
	RunWithID(ctx context.Context, runID string, req models.ReviewRequest) *models.RunSummary
}

// MRFetcher resolves merge request metadata, used to fill in the head
// SHA on manual triggers that omit it.
type MRFetcher interface {
	GetMergeRequest(ctx context.Context, projectID string, mrIID int) (*gitlab.MergeRequest, error)
}

// Server is the webhook-facing HTTP server. Reviews run asynchronously
// behind a semaphore sized by server.max_concurrent_runs.
type Server struct {
	echo      *echo.Echo
	settings  *config.Settings
	runner    Runner
	mrs       MRFetcher
	registry  *Registry
	sem       chan struct{}
	startedAt time.Time
}

func NewServer(settings *config.Settings, runner Runner, mrs MRFetcher) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:      e,
		settings:  settings,
		runner:    runner,
		mrs:       mrs,
		registry:  NewRegistry(),
		sem:       make(chan struct{}, settings.Server.MaxConcurrentRuns),
		startedAt: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/", s.root)
	s.echo.GET("/health", s.health)
	s.echo.POST("/webhook/gitlab", s.gitlabWebhook)
	s.echo.POST("/review/manual", s.manualReview)
	s.echo.GET("/review/status/:id", s.reviewStatus)
	s.echo.GET("/stats", s.stats)
}

// Start serves until SIGINT/SIGTERM, then drains with a timeout.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(s.settings.Server.Addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("addr", s.settings.Server.Addr).Msg("webhook server listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"service": "mergelens",
		"endpoints": []string{
			"GET /health",
			"POST /webhook/gitlab",
			"POST /review/manual",
			"GET /review/status/:id",
			"GET /stats",
		},
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) gitlabWebhook(c echo.Context) error {
	if s.settings.Server.WebhookSecret != "" {
		token := c.Request().Header.Get("X-Gitlab-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.settings.Server.WebhookSecret)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid webhook token"})
		}
	}

	var payload gitlabWebhook
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed webhook payload"})
	}

	if payload.ObjectKind != "merge_request" {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored", "reason": "not a merge request event"})
	}
	if !reviewableActions[payload.ObjectAttributes.Action] {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored", "reason": "action does not trigger review"})
	}
	if err := payload.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	runID, fresh := s.launch(payload.reviewRequest())
	body := map[string]interface{}{"run_id": runID, "status": "accepted", "duplicate": !fresh}
	return c.JSON(http.StatusAccepted, body)
}

type manualReviewRequest struct {
	ProjectID string `json:"project_id"`
	MRIID     int    `json:"mr_iid"`
	HeadSHA   string `json:"head_sha"`
}

func (s *Server) manualReview(c echo.Context) error {
	var body manualReviewRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if body.ProjectID == "" || body.MRIID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "project_id and mr_iid are required"})
	}

	req := models.ReviewRequest{ProjectID: body.ProjectID, MRIID: body.MRIID, HeadSHA: body.HeadSHA}
	if req.HeadSHA == "" && s.mrs != nil {
		mr, err := s.mrs.GetMergeRequest(c.Request().Context(), req.ProjectID, req.MRIID)
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": "could not resolve merge request: " + err.Error()})
		}
		req.HeadSHA = mr.HeadSHA
		req.Author = mr.Author
	}

	runID, fresh := s.launch(req)
	return c.JSON(http.StatusAccepted, map[string]interface{}{"run_id": runID, "status": "accepted", "duplicate": !fresh})
}

func (s *Server) reviewStatus(c echo.Context) error {
	summary, ok := s.registry.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown run id"})
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) stats(c echo.Context) error {
	stats := s.registry.Stats()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"active_reviews": stats.ActiveReviews,
		"total_started":  stats.TotalStarted,
		"completed":      stats.Completed,
		"failed":         stats.Failed,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

// launch starts a review asynchronously. A second trigger for the same
// merge request while one is active returns the active run's ID.
func (s *Server) launch(req models.ReviewRequest) (string, bool) {
	runID, fresh := s.registry.Begin(req, uuid.NewString())
	if !fresh {
		return runID, false
	}

	go func() {
		// The semaphore is taken inside the goroutine so webhook
		// responses never block behind a full review queue.
		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		summary := s.runner.RunWithID(context.Background(), runID, req)
		s.registry.Finish(req, summary)
	}()
	return runID, true
}
