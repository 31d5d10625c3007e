package routes

import (
	"fmt"
	"net/http"

	"goimomi/activity"
	"goimomi/app"
	"goimomi/ratelim"

	"github.com/julienschmidt/httprouter"
)

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func RoutesWrapper(router *httprouter.Router, a *app.App, rateLimiter *ratelim.RateLimiter, hub *activity.Hub) {
	router.GET("/health", Index)
	AddAuthRoutes(router, a, rateLimiter)
	AddCatalogRoutes(router, a)
	AddReferenceRoutes(router, a)
	AddVisaRoutes(router, a, rateLimiter)
	AddEnquiryRoutes(router, a, rateLimiter)
	AddAdminRoutes(router, a, hub)
	AddStaticRoutes(router, a)
}
