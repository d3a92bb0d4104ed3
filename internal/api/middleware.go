package api

import (
	"firesmoke-api/internal/api/middleware"
)

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.MaxBodySize(s.config.MaxUploadBytes))
	s.router.MaxMultipartMemory = 32 << 20
}
