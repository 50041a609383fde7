package router

import "net/http"

type ClearingRouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler)
}

type ObligationRouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler)
}

func New(
	clearingController ClearingRouteRegistrar,
	obligationController ObligationRouteRegistrar,
	authMiddleware func(http.Handler) http.Handler,
) *http.ServeMux {
	mux := http.NewServeMux()
	registerSwaggerRoutes(mux)

	if clearingController != nil {
		clearingController.RegisterRoutes(mux, authMiddleware)
	}
	if obligationController != nil {
		obligationController.RegisterRoutes(mux, authMiddleware)
	}

	return mux
}
