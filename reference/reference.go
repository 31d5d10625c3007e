// Package reference serves the lookup tables behind the booking forms:
// destinations, starting cities, countries, nationalities and umrah
// destinations.
package reference

import (
	"encoding/json"
	"net/http"

	"goimomi/app"
	"goimomi/crud"
	"goimomi/models"
	"goimomi/rdx"
	"goimomi/utils"

	"github.com/julienschmidt/httprouter"
	"gorm.io/gorm"
)

// Cache table names double as seed table names and route segments.
const (
	TableDestinations      = "destinations"
	TableStartingCities    = "starting-cities"
	TableCountries         = "countries"
	TableNationalities     = "nationalities"
	TableUmrahDestinations = "umrah-destinations"
)

type Resources struct {
	Destinations      *crud.Resource[models.Destination]
	StartingCities    *crud.Resource[models.StartingCity]
	Countries         *crud.Resource[models.Country]
	Nationalities     *crud.Resource[models.Nationality]
	UmrahDestinations *crud.Resource[models.UmrahDestination]
}

func New(a *app.App) *Resources {
	res := &Resources{
		Destinations: &crud.Resource[models.Destination]{
			Name: "destination", App: a, Order: "region, name", CacheTable: TableDestinations,
		},
		StartingCities: &crud.Resource[models.StartingCity]{
			Name: "starting city", App: a, Order: "region, name", CacheTable: TableStartingCities,
		},
		Countries: &crud.Resource[models.Country]{
			Name: "country", App: a, Order: "name", CacheTable: TableCountries,
		},
		Nationalities: &crud.Resource[models.Nationality]{
			Name: "nationality", App: a, Order: "continent, country", CacheTable: TableNationalities,
		},
		UmrahDestinations: &crud.Resource[models.UmrahDestination]{
			Name: "umrah destination", App: a, Order: "country, name", CacheTable: TableUmrahDestinations,
		},
	}
	res.Destinations.BeforeDelete = releaseDestination
	return res
}

// CachedList serves res.List through the reference cache. When region is
// non-nil, ?grouped=true returns the rows keyed by region.
func CachedList[T any](res *crud.Resource[T], region func(*T) string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		grouped := region != nil && r.URL.Query().Get("grouped") == "true"
		variant := "flat"
		if grouped {
			variant = "grouped"
		}
		key := rdx.Key(res.CacheTable, variant)

		var cached json.RawMessage
		if res.App.Cache.GetJSON(r.Context(), key, &cached) {
			utils.RespondWithJSON(w, http.StatusOK, cached)
			return
		}

		items, err := res.Find(r)
		if err != nil {
			res.Fail(w, "list "+res.Name, err)
			return
		}

		var body any = res.RenderList(items)
		if grouped {
			groups := make(map[string][]any)
			for i := range items {
				key := region(&items[i])
				groups[key] = append(groups[key], res.Render(&items[i]))
			}
			body = groups
		}

		res.App.Cache.SetJSON(r.Context(), key, body)
		utils.RespondWithJSON(w, http.StatusOK, body)
	}
}

// releaseDestination drops the package stops at d and detaches the
// itinerary masters filed under it.
func releaseDestination(tx *gorm.DB, d *models.Destination) error {
	if err := tx.Where("destination_id = ?", d.ID).Delete(&models.PackageDestination{}).Error; err != nil {
		return err
	}
	return tx.Model(&models.ItineraryMaster{}).Where("destination_id = ?", d.ID).Update("destination_id", nil).Error
}

func DestinationRegion(d *models.Destination) string { return d.Region }

func StartingCityRegion(c *models.StartingCity) string { return c.Region }
