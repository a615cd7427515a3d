package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - run log stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Analysis pipeline
	mux.HandleFunc("/api/analysis", s.handleAnalysisRoute)                             // GET (snapshot), POST (run)
	mux.HandleFunc("/api/analysis/reset", s.app.AnalysisHandler.ResetHandler)          // POST
	mux.HandleFunc("/api/analysis/save", s.app.AnalysisHandler.SaveHandler)            // POST - background history save
	mux.HandleFunc("/api/analysis/report.pdf", s.app.AnalysisHandler.ReportPDFHandler) // GET

	// API routes - History
	mux.HandleFunc("/api/history", s.app.HistoryHandler.ListHistoryHandler) // GET
	mux.HandleFunc("/api/history/", s.app.HistoryHandler.GetHistoryHandler) // GET /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleAnalysisRoute routes /api/analysis by method
func (s *Server) handleAnalysisRoute(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodGet:  s.app.AnalysisHandler.SnapshotHandler,
		http.MethodPost: s.app.AnalysisHandler.RunAnalysisHandler,
	})
}
