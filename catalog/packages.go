// Package catalog serves holiday packages and their owned children.
package catalog

import (
	"log"
	"net/http"

	"goimomi/app"
	"goimomi/crud"
	"goimomi/filemgr"
	"goimomi/models"
	"goimomi/utils"

	"gorm.io/gorm"
)

// Packages is the package resource. List, Get and Delete come from the
// embedded generic resource; Create and Update go through the nested save.
type Packages struct {
	*crud.Resource[models.HolidayPackage]
}

func NewPackages(a *app.App) *Packages {
	p := &Packages{}
	p.Resource = &crud.Resource[models.HolidayPackage]{
		Name:    "package",
		App:     a,
		Order:   "created_at DESC, id DESC",
		Scope:   scopePackages,
		Preload: preloadChildren,
		Uploads: map[string]filemgr.Folder{
			"header_image": filemgr.FolderPackageHeader,
			"card_image":   filemgr.FolderPackageCard,
		},
		OwnedFiles:   dayImages,
		BeforeDelete: deleteChildren,
	}
	p.Present = p.present
	return p
}

// scopePackages hides inactive packages from lists unless ?all=true.
func scopePackages(r *http.Request, q *gorm.DB) *gorm.DB {
	query := r.URL.Query()
	if query.Get("all") != "true" {
		q = q.Where("is_active = ?", true)
	}
	if wf := utils.QueryBool(r, "with_flight"); wf != nil {
		q = q.Where("with_flight = ?", *wf)
	}
	if c := query.Get("category"); c != "" {
		q = q.Where("category = ?", c)
	}
	return q
}

func preloadChildren(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Itinerary", func(db *gorm.DB) *gorm.DB { return db.Order("day_number") }).
		Preload("Destinations", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Destinations.Destination").
		Preload("Inclusions", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Exclusions", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Highlights", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

func dayImages(tx *gorm.DB, pkg *models.HolidayPackage) ([]string, error) {
	var images []string
	err := tx.Model(&models.ItineraryDay{}).
		Where("package_id = ? AND image <> ''", pkg.ID).
		Pluck("image", &images).Error
	return images, err
}

// deleteChildren removes owned rows explicitly so the cascade holds on
// databases without enforced foreign keys.
func deleteChildren(tx *gorm.DB, pkg *models.HolidayPackage) error {
	for _, child := range []any{&models.ItineraryDay{}, &models.Inclusion{}, &models.Exclusion{}, &models.Highlight{}, &models.PackageDestination{}} {
		if err := tx.Where("package_id = ?", pkg.ID).Delete(child).Error; err != nil {
			return err
		}
	}
	return nil
}

func (p *Packages) removeFile(rel string) {
	if rel == "" || p.App.Files == nil {
		return
	}
	if err := p.App.Files.Remove(rel); err != nil {
		log.Printf("remove %s: %v", rel, err)
	}
}

type destinationView struct {
	Name   string `json:"name"`
	Nights int    `json:"nights"`
}

type dayView struct {
	DayNumber      int    `json:"day_number"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Image          string `json:"image"`
	ImageThumb     string `json:"image_thumb"`
	MasterTemplate *uint  `json:"master_template"`
}

type packageView struct {
	models.HolidayPackage
	HeaderImageThumb string             `json:"header_image_thumb"`
	CardImageThumb   string             `json:"card_image_thumb"`
	Destinations     []destinationView  `json:"destinations"`
	Nights           int                `json:"nights"`
	Itinerary        []dayView          `json:"itinerary"`
	Inclusions       []models.Inclusion `json:"inclusions"`
	Exclusions       []models.Exclusion `json:"exclusions"`
	Highlights       []models.Highlight `json:"highlights"`
}

// present renders a package with its children: destinations by name with the
// summed nights, and at most Days itinerary entries.
func (p *Packages) present(pkg *models.HolidayPackage) any {
	v := packageView{
		HolidayPackage: *pkg,
		Destinations:   make([]destinationView, 0, len(pkg.Destinations)),
		Itinerary:      make([]dayView, 0, len(pkg.Itinerary)),
		Inclusions:     nonNil(pkg.Inclusions),
		Exclusions:     nonNil(pkg.Exclusions),
		Highlights:     nonNil(pkg.Highlights),
	}
	v.HeaderImage = p.App.Files.URL(pkg.HeaderImage)
	v.CardImage = p.App.Files.URL(pkg.CardImage)
	v.HeaderImageThumb = p.App.Files.ThumbURL(pkg.HeaderImage)
	v.CardImageThumb = p.App.Files.ThumbURL(pkg.CardImage)

	for _, d := range pkg.Destinations {
		v.Destinations = append(v.Destinations, destinationView{Name: d.Destination.Name, Nights: d.Nights})
		v.Nights += d.Nights
	}
	for i, day := range pkg.Itinerary {
		if i >= pkg.Days {
			break
		}
		v.Itinerary = append(v.Itinerary, dayView{
			DayNumber:      day.DayNumber,
			Title:          day.Title,
			Description:    day.Description,
			Image:          p.App.Files.URL(day.Image),
			ImageThumb:     p.App.Files.ThumbURL(day.Image),
			MasterTemplate: day.MasterTemplateID,
		})
	}
	return v
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
