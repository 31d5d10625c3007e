// Package itinerary serves the reusable day templates that package
// itineraries are built from.
package itinerary

import (
	"goimomi/app"
	"goimomi/crud"
	"goimomi/filemgr"
	"goimomi/models"

	"gorm.io/gorm"
)

func NewMasters(a *app.App) *crud.Resource[models.ItineraryMaster] {
	return &crud.Resource[models.ItineraryMaster]{
		Name:         "itinerary master",
		App:          a,
		Order:        "name, id",
		Uploads:      map[string]filemgr.Folder{"image": filemgr.FolderItineraryMaster},
		BeforeDelete: detachDays,
	}
}

// detachDays clears the template reference of every day built from m. The
// days themselves belong to their packages and stay.
func detachDays(tx *gorm.DB, m *models.ItineraryMaster) error {
	return tx.Model(&models.ItineraryDay{}).
		Where("master_template_id = ?", m.ID).
		Update("master_template_id", nil).Error
}
