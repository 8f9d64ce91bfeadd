package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"aivision/internal/config"
	"aivision/internal/logger"
	"aivision/internal/repository/sqlite"
	"aivision/internal/routes"
	"aivision/internal/services"
	"aivision/internal/services/ai"
	"aivision/internal/services/ai/cv"
	"aivision/internal/services/assistant"
	"aivision/internal/services/auth"
	"aivision/internal/services/storage"
	"aivision/internal/services/websocket"
)

const (
	remoteDetectorTimeout = 60 * time.Second
	shutdownTimeout       = 10 * time.Second
)

type App struct {
	config           *config.Config
	logger           *logger.Logger
	db               *sqlite.DB
	workspaceService *storage.WorkspaceService
	hubService       *websocket.HubService
	manager          *services.Manager
	handler          http.Handler
	closers          []io.Closer
}

func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}
	if err := a.init(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	cfg := a.config

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	a.db = db
	users := sqlite.NewUserRepository(db)
	messages := sqlite.NewMessageRepository(db)

	tokens := auth.NewTokenIssuer(cfg.AccessTokenSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	authService := auth.NewService(users, tokens)
	if cfg.AccessTokenSecret == "" {
		a.logger.Warning("ACCESS_TOKEN_SECRET is not set; sign-in and protected endpoints will fail")
	}

	a.workspaceService = storage.NewWorkspaceService(time.Duration(cfg.WorkspaceTTLMinutes) * time.Minute)
	a.hubService = websocket.NewHubService(a.logger)

	detectors, err := a.newDetectors()
	if err != nil {
		return err
	}
	a.manager = services.NewManager(detectors, cv.NewAnnotator(), a.workspaceService, a.hubService, cfg, a.logger)

	llm, err := assistant.NewClient(context.Background(), cfg.Assistant)
	if err != nil {
		return err
	}
	if closer, ok := llm.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}
	assistantService, err := assistant.NewService(llm, messages, a.hubService, cfg.Assistant, a.logger)
	if err != nil {
		return err
	}

	a.handler = routes.SetupRoutes(routes.Dependencies{
		Config:    cfg,
		Logger:    a.logger,
		Auth:      authService,
		Users:     users,
		Messages:  messages,
		Workspace: a.workspaceService,
		Detector:  a.manager,
		Assistant: assistantService,
		Hub:       a.hubService,
	})
	return nil
}

// newDetectors builds one detector per processing worker.
func (a *App) newDetectors() ([]ai.Detector, error) {
	cfg := a.config
	workers := max(cfg.ProcessingWorkers, 1)
	detectors := make([]ai.Detector, 0, workers)

	for i := 0; i < workers; i++ {
		switch strings.ToLower(cfg.Detector.Provider) {
		case "remote":
			detectors = append(detectors, ai.NewRemoteDetector(cfg.Detector.URL, remoteDetectorTimeout))
		case "local":
			d, err := cv.NewLocalDetector(cfg.Detector.ModelPath, cfg.Detector.ModelConfigPath, cfg.Detector.Threshold, a.logger)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, d)
			detectors = append(detectors, d)
		default:
			return nil, fmt.Errorf("unsupported detector provider: %s", cfg.Detector.Provider)
		}
	}
	return detectors, nil
}

func (a *App) Run() error {
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start background services
	sweep := time.Duration(max(a.config.WorkspaceSweepSeconds, 1)) * time.Second
	go a.workspaceService.Run(sweep)
	go a.hubService.Run()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("AI Vision server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Detector: %s, assistant: %s (%s)", a.config.Detector.Provider, a.config.Assistant.Provider, a.config.Assistant.Model)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (a *App) close() {
	if a.manager != nil {
		a.manager.Stop()
	}
	if a.workspaceService != nil {
		a.workspaceService.Stop()
	}
	if a.hubService != nil {
		a.hubService.Stop()
	}
	for _, c := range a.closers {
		c.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Close()
}
