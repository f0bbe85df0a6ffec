package httpapi

import "net/http"

// routePrefixes lists every prefix the public API is served under. The
// /api/softball prefix is kept for older front-end builds.
var routePrefixes = []string{"/api", "/api/softball"}

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerPublicStatsRoutes(mux *http.ServeMux, handler *Handler) {
	for _, prefix := range routePrefixes {
		mux.HandleFunc("GET "+prefix+"/rankings", handler.GetRankings)
		mux.HandleFunc("GET "+prefix+"/stats", handler.ListStatCategories)
		mux.HandleFunc("GET "+prefix+"/stats/{category}", handler.GetStats)
		mux.HandleFunc("GET "+prefix+"/standings", handler.GetStandings)
		mux.HandleFunc("GET "+prefix+"/games/{gameID}", handler.GetGame)
		mux.HandleFunc("GET "+prefix+"/archive/payloads", handler.ListArchivedPayloads)
	}
}
