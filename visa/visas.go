// Package visa serves visa offerings, applications and their applicants.
package visa

import (
	"net/http"
	"strings"

	"goimomi/app"
	"goimomi/crud"
	"goimomi/filemgr"
	"goimomi/models"
	"goimomi/utils"

	"gorm.io/gorm"
)

func NewVisas(a *app.App) *crud.Resource[models.Visa] {
	return &crud.Resource[models.Visa]{
		Name:         "visa",
		App:          a,
		Order:        "country, selling_price",
		Scope:        scopeVisas,
		New:          func() *models.Visa { return &models.Visa{IsActive: true} },
		Uploads:      map[string]filemgr.Folder{"card_image": filemgr.FolderVisaCard},
		BeforeSave:   checkVisa,
		OwnedFiles:   visaApplicationFiles,
		BeforeDelete: deleteVisaApplications,
	}
}

// scopeVisas hides inactive offerings unless ?all=true and narrows by
// ?country= ignoring case.
func scopeVisas(r *http.Request, q *gorm.DB) *gorm.DB {
	query := r.URL.Query()
	if query.Get("all") != "true" {
		q = q.Where("is_active = ?", true)
	}
	if c := strings.TrimSpace(query.Get("country")); c != "" {
		q = q.Where("LOWER(country) = ?", strings.ToLower(c))
	}
	return q
}

func checkVisa(tx *gorm.DB, v *models.Visa, _ bool) error {
	if !utils.Contains(models.EntryTypes, v.EntryType) {
		return crud.Errorf(http.StatusBadRequest, "entry_type must be one of: %s", strings.Join(models.EntryTypes, ", "))
	}
	if v.SupplierID != nil {
		var n int64
		if err := tx.Model(&models.Supplier{}).Where("id = ?", *v.SupplierID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return crud.Errorf(http.StatusBadRequest, "supplier %d does not exist", *v.SupplierID)
		}
	}
	return nil
}

func visaApplicationIDs(tx *gorm.DB, v *models.Visa) ([]uint, error) {
	var ids []uint
	err := tx.Model(&models.VisaApplication{}).Where("visa_id = ?", v.ID).Pluck("id", &ids).Error
	return ids, err
}

func visaApplicationFiles(tx *gorm.DB, v *models.Visa) ([]string, error) {
	ids, err := visaApplicationIDs(tx, v)
	if err != nil {
		return nil, err
	}
	return applicationFiles(tx, ids)
}

// deleteVisaApplications cascades a visa delete to its applications.
func deleteVisaApplications(tx *gorm.DB, v *models.Visa) error {
	ids, err := visaApplicationIDs(tx, v)
	if err != nil {
		return err
	}
	return deleteApplications(tx, ids)
}
