// Package enquiry serves the lead-capture forms: holiday, umrah and the
// general contact form shared by cab, cruise and hotel requests.
package enquiry

import (
	"encoding/json"
	"net/http"
	"strings"

	"goimomi/app"
	"goimomi/crud"
	"goimomi/models"
	"goimomi/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Resources struct {
	Holiday *crud.Resource[models.HolidayEnquiry]
	Umrah   *crud.Resource[models.UmrahEnquiry]
	General *crud.Resource[models.Enquiry]
}

func New(a *app.App) *Resources {
	return &Resources{
		Holiday: &crud.Resource[models.HolidayEnquiry]{
			Name:  "holiday enquiry",
			App:   a,
			Order: "created_at DESC, id DESC",
			Scope: scopeRecent,
			BeforeSave: func(_ *gorm.DB, e *models.HolidayEnquiry, _ bool) error {
				return normalizeLists(&e.Cities, &e.RoomDetails)
			},
		},
		Umrah: &crud.Resource[models.UmrahEnquiry]{
			Name:  "umrah enquiry",
			App:   a,
			Order: "created_at DESC, id DESC",
			Scope: scopeRecent,
			BeforeSave: func(_ *gorm.DB, e *models.UmrahEnquiry, _ bool) error {
				return normalizeLists(&e.Cities, &e.RoomDetails)
			},
		},
		General: &crud.Resource[models.Enquiry]{
			Name:  "enquiry",
			App:   a,
			Order: "created_at DESC, id DESC",
			Scope: func(r *http.Request, q *gorm.DB) *gorm.DB {
				if t := r.URL.Query().Get("enquiry_type"); t != "" {
					q = q.Where("enquiry_type = ?", t)
				}
				return scopeRecent(r, q)
			},
			New: func() *models.Enquiry { return &models.Enquiry{EnquiryType: "General"} },
			BeforeSave: func(_ *gorm.DB, e *models.Enquiry, _ bool) error {
				if !utils.Contains(models.EnquiryTypes, e.EnquiryType) {
					return crud.Errorf(http.StatusBadRequest, "enquiry_type must be one of: %s", strings.Join(models.EnquiryTypes, ", "))
				}
				return nil
			},
		},
	}
}

// scopeRecent narrows a list to ?since=YYYY-MM-DD when given.
func scopeRecent(r *http.Request, q *gorm.DB) *gorm.DB {
	if since, err := models.ParseDate(r.URL.Query().Get("since")); err == nil && !since.IsZero() {
		q = q.Where("created_at >= ?", since.Time())
	}
	return q
}

// normalizeLists stores absent lists as [] and rejects anything that is not
// a JSON array.
func normalizeLists(lists ...*datatypes.JSON) error {
	for _, l := range lists {
		if len(*l) == 0 || string(*l) == "null" {
			*l = datatypes.JSON("[]")
			continue
		}
		raw := []byte(*l)
		// form posts carry the list as a JSON string
		var encoded string
		if json.Unmarshal(raw, &encoded) == nil {
			raw = []byte(encoded)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return crud.Errorf(http.StatusBadRequest, "expected a JSON list, got %s", string(raw))
		}
		*l = datatypes.JSON(raw)
	}
	return nil
}
