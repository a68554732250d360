package server

func (s *Server) setupRoutes() {
	// The GhostText extension speaks to exactly one path: a plain GET for
	// discovery, then the same path again as a WebSocket upgrade.
	s.router.Get("/", s.handleRoot)
	s.router.Get("/healthz", s.handleHealth)
}
