package routes

import (
	"net/http"

	"goimomi/activity"
	"goimomi/admin"
	"goimomi/app"
	"goimomi/auth"
	"goimomi/catalog"
	"goimomi/enquiry"
	"goimomi/itinerary"
	"goimomi/ratelim"
	"goimomi/reference"
	"goimomi/visa"

	"github.com/julienschmidt/httprouter"
)

// handlers is the handler set of one REST resource.
type handlers interface {
	List(http.ResponseWriter, *http.Request, httprouter.Params)
	Get(http.ResponseWriter, *http.Request, httprouter.Params)
	Create(http.ResponseWriter, *http.Request, httprouter.Params)
	Update(http.ResponseWriter, *http.Request, httprouter.Params)
	Delete(http.ResponseWriter, *http.Request, httprouter.Params)
}

type guard func(httprouter.Handle) httprouter.Handle

func open(h httprouter.Handle) httprouter.Handle { return h }

// addResource registers the collection and item routes under path. read
// guards GET, create guards POST and write guards PUT, PATCH and DELETE.
func addResource(router *httprouter.Router, path string, h handlers, read, create, write guard) {
	router.GET(path, read(h.List))
	addItemRoutes(router, path, h, read, create, write)
}

// addItemRoutes is addResource without the collection GET.
func addItemRoutes(router *httprouter.Router, path string, h handlers, read, create, write guard) {
	item := path + "/:id"
	router.GET(item, read(h.Get))
	router.POST(path, create(h.Create))
	router.PUT(item, write(h.Update))
	router.PATCH(item, write(h.Update))
	router.DELETE(item, write(h.Delete))
}

func AddStaticRoutes(router *httprouter.Router, a *app.App) {
	router.ServeFiles("/static/uploads/*filepath", http.Dir(a.Cfg.UploadRoot))
}

func AddAuthRoutes(router *httprouter.Router, a *app.App, rl *ratelim.RateLimiter) {
	router.POST("/api/admin-login/", rl.Limit(auth.Login(a)))
	su := a.Auth.RequireSuperuser
	addResource(router, "/api/users", auth.NewUsers(a), su, su, su)
}

func AddCatalogRoutes(router *httprouter.Router, a *app.App) {
	staff := a.Auth.RequireStaff
	addResource(router, "/api/packages", catalog.NewPackages(a), open, staff, staff)
	addResource(router, "/api/itinerary-masters", itinerary.NewMasters(a), open, staff, staff)
}

func AddReferenceRoutes(router *httprouter.Router, a *app.App) {
	staff := a.Auth.RequireStaff
	ref := reference.New(a)

	for path, h := range map[string]handlers{
		reference.TableDestinations:      ref.Destinations,
		reference.TableStartingCities:    ref.StartingCities,
		reference.TableCountries:         ref.Countries,
		reference.TableNationalities:     ref.Nationalities,
		reference.TableUmrahDestinations: ref.UmrahDestinations,
	} {
		addItemRoutes(router, "/api/"+path, h, open, staff, staff)
	}

	router.GET("/api/"+reference.TableDestinations, reference.CachedList(ref.Destinations, reference.DestinationRegion))
	router.GET("/api/"+reference.TableStartingCities, reference.CachedList(ref.StartingCities, reference.StartingCityRegion))
	router.GET("/api/"+reference.TableCountries, reference.CachedList(ref.Countries, nil))
	router.GET("/api/"+reference.TableNationalities, reference.CachedList(ref.Nationalities, nil))
	router.GET("/api/"+reference.TableUmrahDestinations, reference.CachedList(ref.UmrahDestinations, nil))
}

func AddVisaRoutes(router *httprouter.Router, a *app.App, rl *ratelim.RateLimiter) {
	staff := a.Auth.RequireStaff
	public := guard(rl.Limit)

	addResource(router, "/api/visas", visa.NewVisas(a), open, staff, staff)
	applications := visa.NewApplications(a)
	addResource(router, "/api/visa-applications", applications, staff, public, staff)
	router.GET("/api/visa-applications/:id/receipt", a.Auth.OptionalAuth(applications.Receipt))
	addResource(router, "/api/visa-applicants", visa.NewApplicants(a), staff, staff, staff)
	addResource(router, "/api/visa-additional-documents", visa.NewDocuments(a), staff, staff, staff)
	addResource(router, "/api/suppliers", visa.NewSuppliers(a), staff, staff, staff)
}

func AddEnquiryRoutes(router *httprouter.Router, a *app.App, rl *ratelim.RateLimiter) {
	staff := a.Auth.RequireStaff
	public := guard(rl.Limit)
	forms := enquiry.New(a)

	addResource(router, "/api/holiday-form", forms.Holiday, staff, public, staff)
	addResource(router, "/api/umrah-form", forms.Umrah, staff, public, staff)
	addResource(router, "/api/enquiry-form", forms.General, staff, public, staff)
}

func AddAdminRoutes(router *httprouter.Router, a *app.App, hub *activity.Hub) {
	staff := a.Auth.RequireStaff
	router.GET("/api/admin/stats", staff(admin.StatsHandler(a)))
	router.GET("/api/admin/activity", staff(activity.RecentHandler(a.Activity.Store())))
	router.GET("/api/admin/activity/ws", staff(activity.WebSocketHandler(hub)))
}
