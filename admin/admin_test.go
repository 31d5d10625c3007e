package admin

import (
	"net/http"
	"testing"

	"goimomi/models"
	"goimomi/testkit"

	"github.com/julienschmidt/httprouter"
)

func TestStats(t *testing.T) {
	a := testkit.NewApp(t)
	r := httprouter.New()
	r.GET("/admin/stats", a.Auth.RequireStaff(StatsHandler(a)))

	a.DB.Create(&models.HolidayPackage{Title: "a", Category: "Domestic", StartingCity: "x", Days: 1, OfferPrice: 1, IsActive: true})
	a.DB.Create(&models.HolidayPackage{Title: "b", Category: "Domestic", StartingCity: "x", Days: 1, OfferPrice: 1})
	v := models.Visa{Country: "Oman", Title: "t", EntryType: models.EntryTypes[0], ProcessingTime: "1 day", IsActive: true}
	a.DB.Create(&v)
	for i, st := range []string{models.StatusPending, models.StatusPending, models.StatusApproved} {
		a.DB.Create(&models.VisaApplication{
			VisaID:          v.ID,
			ApplicationType: models.ApplicationIndividual,
			DepartureDate:   models.NewDate(2026, 11, 1),
			ReturnDate:      models.NewDate(2026, 11, 2),
			Status:          st,
			Reference:       string(rune('a' + i)),
		})
	}

	if rec := testkit.Do(t, r, http.MethodGet, "/admin/stats", "", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", rec.Code)
	}

	rec := testkit.Do(t, r, http.MethodGet, "/admin/stats", testkit.StaffToken(t, a, false), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", rec.Code, rec.Body)
	}
	var s Stats
	testkit.Decode(t, rec, &s)
	if s.Packages != 2 || s.ActivePackages != 1 || s.Visas != 1 || s.VisaApplications != 3 {
		t.Fatalf("counts = %+v", s)
	}
	if s.PendingApplications != 2 || s.ApplicationsByState[models.StatusApproved] != 1 {
		t.Fatalf("by status = %+v", s.ApplicationsByState)
	}
}
