package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"aivision/internal/config"
	"aivision/internal/handlers"
	"aivision/internal/logger"
	"aivision/internal/middleware"
	"aivision/internal/repository"
	"aivision/internal/services/auth"
	"aivision/internal/services/storage"
	"aivision/internal/services/websocket"
)

// Dependencies are the services the HTTP layer is built from.
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	Auth      *auth.Service
	Users     repository.UserRepository
	Messages  repository.MessageRepository
	Workspace *storage.WorkspaceService
	Detector  handlers.ObjectDetector
	Assistant handlers.QuestionAnswerer
	Hub       *websocket.HubService
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	cfg, log := deps.Config, deps.Logger
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))
	mux.HandleFunc("GET /health", handlers.HealthHandler)

	// Auth endpoints
	mux.HandleFunc("POST /auth/sign-up", handlers.SignUpHandler(deps.Auth, log))
	mux.HandleFunc("POST /auth/sign-in", handlers.SignInHandler(deps.Auth, log))
	mux.HandleFunc("POST /auth/sign-out", handlers.SignOutHandler(deps.Auth, deps.Workspace))
	mux.HandleFunc("GET /auth/status", handlers.AuthStatusHandler(deps.Auth))

	// User endpoints
	mux.HandleFunc("GET /user/profile", handlers.ProfileHandler(deps.Users, log))
	mux.HandleFunc("GET /user/messages", handlers.MessagesHandler(deps.Messages, log))
	mux.HandleFunc("DELETE /user/messages", handlers.ClearMessagesHandler(deps.Messages, log))

	// Detection endpoints
	mux.HandleFunc("POST /yolo/detect", handlers.DetectHandler(deps.Detector, cfg, log))
	mux.HandleFunc("GET /yolo/results", handlers.ResultsHandler(deps.Workspace, log))
	mux.HandleFunc("POST /yolo/results/sort", handlers.SortResultsHandler(deps.Workspace, log))
	mux.HandleFunc("DELETE /yolo/results", handlers.ClearResultsHandler(deps.Workspace))

	// Assistant
	mux.HandleFunc("POST /gemini/ask", handlers.AskHandler(deps.Assistant, deps.Workspace, cfg, log))

	// Dashboard events
	mux.HandleFunc("GET /api/events", handlers.EventsWebsocketHandler(deps.Hub, log))

	// Log endpoints
	for _, name := range []string{"info", "warning", "error"} {
		file := name + ".log"
		mux.HandleFunc("GET /logs/"+name, handlers.ShowLogsHandler(log, file))
		mux.HandleFunc("/logs/"+name+"/clear", handlers.ClearLogsHandler(log, file))
	}

	// Automatic HTML handler mapping for example: /yolo -> /static/yolo.html
	mux.HandleFunc("GET /", dynamicHTMLHandler(cfg.StaticDirectory))

	return middleware.AuthMiddleware(deps.Auth, mux)
}
