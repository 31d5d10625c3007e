package enquiry

import (
	"net/http"
	"strconv"
	"testing"

	"goimomi/models"
	"goimomi/testkit"

	"github.com/julienschmidt/httprouter"
)

func newRouter(t *testing.T) *httprouter.Router {
	t.Helper()
	res := New(testkit.NewApp(t))
	r := httprouter.New()
	r.GET("/holiday-form", res.Holiday.List)
	r.POST("/holiday-form", res.Holiday.Create)
	r.PATCH("/holiday-form/:id", res.Holiday.Update)
	r.DELETE("/holiday-form/:id", res.Holiday.Delete)
	r.GET("/enquiry-form", res.General.List)
	r.POST("/enquiry-form", res.General.Create)
	return r
}

func holidayBody() map[string]any {
	return map[string]any{
		"start_city":   "Kochi",
		"nationality":  "Indian",
		"travel_date":  "2026-12-20",
		"rooms":        2,
		"star_rating":  "4",
		"holiday_type": "Family",
		"full_name":    "Meera Nair",
		"email":        "meera@example.com",
		"phone":        "9999999999",
		"adults":       2,
		"cities":       []string{"Dubai", "Abu Dhabi"},
	}
}

func TestHolidayEnquiryLifecycle(t *testing.T) {
	r := newRouter(t)

	rec := testkit.Do(t, r, http.MethodPost, "/holiday-form", "", holidayBody(), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var created models.HolidayEnquiry
	testkit.Decode(t, rec, &created)
	if string(created.Cities) != `["Dubai","Abu Dhabi"]` || string(created.RoomDetails) != "[]" {
		t.Fatalf("lists = %s / %s", created.Cities, created.RoomDetails)
	}
	target := "/holiday-form/" + strconv.Itoa(int(created.ID))

	rec = testkit.Do(t, r, http.MethodPatch, target, "", map[string]any{"rooms": 3}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body)
	}
	var patched models.HolidayEnquiry
	testkit.Decode(t, rec, &patched)
	if patched.Rooms != 3 || patched.FullName != "Meera Nair" {
		t.Fatalf("patched = %+v", patched)
	}

	if rec := testkit.Do(t, r, http.MethodDelete, target, "", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	var list []models.HolidayEnquiry
	testkit.Decode(t, testkit.Do(t, r, http.MethodGet, "/holiday-form", "", nil, ""), &list)
	if len(list) != 0 {
		t.Fatalf("list after delete = %d", len(list))
	}
}

func TestHolidayEnquiryValidation(t *testing.T) {
	r := newRouter(t)

	body := holidayBody()
	delete(body, "travel_date")
	if rec := testkit.Do(t, r, http.MethodPost, "/holiday-form", "", body, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing travel_date: %d", rec.Code)
	}

	body = holidayBody()
	body["cities"] = map[string]string{"not": "a list"}
	if rec := testkit.Do(t, r, http.MethodPost, "/holiday-form", "", body, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("object cities: %d", rec.Code)
	}
}

func TestGeneralEnquiryTypes(t *testing.T) {
	r := newRouter(t)

	for _, typ := range []string{"Cab", "Hotel", "Hotel"} {
		body := map[string]string{"name": "A", "phone": "1", "enquiry_type": typ}
		if rec := testkit.Do(t, r, http.MethodPost, "/enquiry-form", "", body, ""); rec.Code != http.StatusCreated {
			t.Fatalf("create %s: %d %s", typ, rec.Code, rec.Body)
		}
	}
	rec := testkit.Do(t, r, http.MethodPost, "/enquiry-form", "", map[string]string{"name": "A", "phone": "1", "enquiry_type": "Yacht"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type: %d", rec.Code)
	}

	var hotels []models.Enquiry
	testkit.Decode(t, testkit.Do(t, r, http.MethodGet, "/enquiry-form?enquiry_type=Hotel", "", nil, ""), &hotels)
	if len(hotels) != 2 {
		t.Fatalf("hotel enquiries = %d", len(hotels))
	}

	rec = testkit.Do(t, r, http.MethodPost, "/enquiry-form", "", map[string]string{"name": "B", "phone": "2"}, "")
	var general models.Enquiry
	testkit.Decode(t, rec, &general)
	if general.EnquiryType != "General" {
		t.Fatalf("default type = %q", general.EnquiryType)
	}
}
