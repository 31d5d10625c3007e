// Package admin serves the back-office dashboard summary.
package admin

import (
	"context"
	"net/http"
	"time"

	"goimomi/app"
	"goimomi/models"
	"goimomi/utils"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"
)

// Stats is the dashboard summary.
type Stats struct {
	Packages            int64            `json:"packages"`
	ActivePackages      int64            `json:"active_packages"`
	Visas               int64            `json:"visas"`
	VisaApplications    int64            `json:"visa_applications"`
	ApplicationsByState map[string]int64 `json:"applications_by_status"`
	PendingApplications int64            `json:"pending_applications"`
	HolidayEnquiries    int64            `json:"holiday_enquiries"`
	UmrahEnquiries      int64            `json:"umrah_enquiries"`
	Enquiries           int64            `json:"enquiries"`
	Suppliers           int64            `json:"suppliers"`
	ItineraryMasters    int64            `json:"itinerary_masters"`
}

// Collect counts every table concurrently.
func Collect(ctx context.Context, a *app.App) (Stats, error) {
	s := Stats{ApplicationsByState: map[string]int64{}}
	db := a.DB.WithContext(ctx)

	counts := []struct {
		model any
		where string
		dst   *int64
	}{
		{&models.HolidayPackage{}, "", &s.Packages},
		{&models.HolidayPackage{}, "is_active = true", &s.ActivePackages},
		{&models.Visa{}, "", &s.Visas},
		{&models.VisaApplication{}, "", &s.VisaApplications},
		{&models.HolidayEnquiry{}, "", &s.HolidayEnquiries},
		{&models.UmrahEnquiry{}, "", &s.UmrahEnquiries},
		{&models.Enquiry{}, "", &s.Enquiries},
		{&models.Supplier{}, "", &s.Suppliers},
		{&models.ItineraryMaster{}, "", &s.ItineraryMasters},
	}

	g, _ := errgroup.WithContext(ctx)
	for _, c := range counts {
		c := c
		g.Go(func() error {
			q := db.Model(c.model)
			if c.where != "" {
				q = q.Where(c.where)
			}
			return q.Count(c.dst).Error
		})
	}

	var rows []struct {
		Status string
		N      int64
	}
	g.Go(func() error {
		return db.Model(&models.VisaApplication{}).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	for _, row := range rows {
		s.ApplicationsByState[row.Status] = row.N
	}
	s.PendingApplications = s.ApplicationsByState[models.StatusPending]
	return s, nil
}

// StatsHandler serves GET /api/admin/stats.
func StatsHandler(a *app.App) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		s, err := Collect(ctx, a)
		if err != nil {
			utils.RespondInternal(w, "collect stats", err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, s)
	}
}
