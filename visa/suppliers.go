package visa

import (
	"encoding/json"
	"net/http"
	"strings"

	"goimomi/app"
	"goimomi/crud"
	"goimomi/models"
	"goimomi/utils"

	"gorm.io/gorm"
)

// SupplierServices are the services a supplier may offer.
var SupplierServices = []string{"HOLIDAYS", "Visa", "Flight", "Hotel", "Attestation"}

func NewSuppliers(a *app.App) *crud.Resource[models.Supplier] {
	return &crud.Resource[models.Supplier]{
		Name:  "supplier",
		App:   a,
		Order: "company_name, id",
		Scope: func(r *http.Request, q *gorm.DB) *gorm.DB {
			if s := r.URL.Query().Get("service"); s != "" {
				q = q.Where("services LIKE ?", `%"`+s+`"%`)
			}
			return q
		},
		BeforeSave: checkServices,
		BeforeDelete: func(tx *gorm.DB, s *models.Supplier) error {
			return tx.Model(&models.Visa{}).Where("supplier_id = ?", s.ID).Update("supplier_id", nil).Error
		},
	}
}

func checkServices(_ *gorm.DB, s *models.Supplier, _ bool) error {
	if len(s.Services) == 0 || string(s.Services) == "null" {
		s.Services = []byte("[]")
		return nil
	}
	var services []string
	if err := json.Unmarshal(s.Services, &services); err != nil {
		return crud.Errorf(http.StatusBadRequest, "services must be a list of strings")
	}
	for _, svc := range services {
		if !utils.Contains(SupplierServices, svc) {
			return crud.Errorf(http.StatusBadRequest, "unknown service %q, expected one of: %s", svc, strings.Join(SupplierServices, ", "))
		}
	}
	return nil
}
