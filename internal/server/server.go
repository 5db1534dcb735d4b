// Package server exposes the annotation engine over HTTP. Every
// endpoint is a POST taking a JSON body that names the target project;
// responses keep the wire shapes of the original service.
package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/roach88/stratum/internal/project"
)

// Server routes HTTP requests to per-project engines.
type Server struct {
	manager *project.Manager
	log     *zap.SugaredLogger
}

// NewServer builds a server over a project manager. A nil logger is
// replaced with a nop.
func NewServer(manager *project.Manager, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{manager: manager, log: logger}
}

// Handler builds the route table wrapped in request-id and access-log
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /createProject", s.handleCreateProject)
	mux.HandleFunc("POST /createType", s.handleCreateType)
	mux.HandleFunc("POST /createFeature", s.handleCreateFeature)
	mux.HandleFunc("POST /createUnit", s.handleCreateUnit)
	mux.HandleFunc("POST /get", s.handleGet)
	mux.HandleFunc("POST /setFeature", s.handleSetFeature)
	mux.HandleFunc("POST /setParent", s.handleSetParent)
	mux.HandleFunc("POST /addParent", s.handleAddParent)
	mux.HandleFunc("POST /removeParent", s.handleRemoveParent)
	mux.HandleFunc("POST /listType", s.handleListType)
	mux.HandleFunc("POST /modificationTimes", s.handleModificationTimes)
	return s.withRequestID(s.withAccessLog(mux))
}
