package visa

import (
	"net/http"

	"goimomi/app"
	"goimomi/crud"
	"goimomi/filemgr"
	"goimomi/models"

	"gorm.io/gorm"
)

func NewApplicants(a *app.App) *crud.Resource[models.VisaApplicant] {
	res := &crud.Resource[models.VisaApplicant]{
		Name:  "visa applicant",
		App:   a,
		Order: "id",
		Scope: func(r *http.Request, q *gorm.DB) *gorm.DB {
			if id := r.URL.Query().Get("application"); id != "" {
				q = q.Where("application_id = ?", id)
			}
			return q
		},
		Preload: func(q *gorm.DB) *gorm.DB {
			return q.Preload("AdditionalDocuments", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
		},
		New: func() *models.VisaApplicant {
			return &models.VisaApplicant{Sex: "Male", MaritalStatus: "Single"}
		},
		Uploads: map[string]filemgr.Folder{
			"passport_front": filemgr.FolderPassport,
			"photo":          filemgr.FolderPhoto,
		},
		BeforeSave: func(tx *gorm.DB, ap *models.VisaApplicant, _ bool) error {
			return requireRow(tx, &models.VisaApplication{}, ap.ApplicationID, "visa application")
		},
		OwnedFiles: func(tx *gorm.DB, ap *models.VisaApplicant) ([]string, error) {
			var files []string
			err := tx.Model(&models.VisaAdditionalDocument{}).Where("applicant_id = ?", ap.ID).Pluck("file", &files).Error
			return files, err
		},
		BeforeDelete: func(tx *gorm.DB, ap *models.VisaApplicant) error {
			return tx.Where("applicant_id = ?", ap.ID).Delete(&models.VisaAdditionalDocument{}).Error
		},
	}
	res.Present = func(ap *models.VisaApplicant) any {
		return presentApplicant(a.Files, *ap)
	}
	return res
}

func NewDocuments(a *app.App) *crud.Resource[models.VisaAdditionalDocument] {
	res := &crud.Resource[models.VisaAdditionalDocument]{
		Name:  "additional document",
		App:   a,
		Order: "id",
		Scope: func(r *http.Request, q *gorm.DB) *gorm.DB {
			if id := r.URL.Query().Get("applicant"); id != "" {
				q = q.Where("applicant_id = ?", id)
			}
			return q
		},
		Uploads: map[string]filemgr.Folder{"file": filemgr.FolderAdditionalDoc},
		BeforeSave: func(tx *gorm.DB, d *models.VisaAdditionalDocument, _ bool) error {
			if d.File == "" {
				return crud.Errorf(http.StatusBadRequest, "file is required")
			}
			return requireRow(tx, &models.VisaApplicant{}, d.ApplicantID, "visa applicant")
		},
	}
	res.Present = func(d *models.VisaAdditionalDocument) any {
		out := *d
		out.File = a.Files.URL(d.File)
		return out
	}
	return res
}

// requireRow turns a dangling parent reference into a 400.
func requireRow(tx *gorm.DB, model any, id uint, name string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return crud.Errorf(http.StatusBadRequest, "%s %d does not exist", name, id)
	}
	return nil
}
