package utils

import (
	"errors"
	"testing"

	"goimomi/models"

	"github.com/go-playground/validator/v10"
)

func TestDecodeFormConvertsByKind(t *testing.T) {
	var pkg models.HolidayPackage
	pkg.Title = "kept"
	form := map[string][]string{
		"Offer_price": {"45000"},
		"price":       {"52000"},
		"days":        {" 5 "},
		"with_flight": {"on"},
		"is_active":   {"false"},
		"start_date":  {"2025-03-01"},
		"category":    {"International"},
	}
	if err := DecodeForm(form, &pkg); err != nil {
		t.Fatal(err)
	}
	if pkg.Title != "kept" {
		t.Errorf("absent key overwrote title: %q", pkg.Title)
	}
	if pkg.OfferPrice != 45000 || pkg.Price == nil || *pkg.Price != 52000 || pkg.Days != 5 {
		t.Errorf("numbers: %+v", pkg)
	}
	if !pkg.WithFlight || pkg.IsActive {
		t.Errorf("bools: with_flight=%v is_active=%v", pkg.WithFlight, pkg.IsActive)
	}
	if pkg.StartDate.String() != "2025-03-01" {
		t.Errorf("start_date = %q", pkg.StartDate)
	}

	if err := DecodeForm(map[string][]string{"price": {""}}, &pkg); err != nil || pkg.Price != nil {
		t.Errorf("empty pointer value should clear price: %v %v", err, pkg.Price)
	}
	if err := DecodeForm(map[string][]string{"days": {"five"}}, &pkg); err == nil {
		t.Error("expected error for non-numeric days")
	}
}

func TestDecodeFormIgnoresTimestamps(t *testing.T) {
	u := models.User{Username: "ops"}
	form := map[string][]string{
		"username":    {"ops2"},
		"last_login":  {"2025-01-01T00:00:00Z"},
		"date_joined": {"yesterday"},
	}
	if err := DecodeForm(form, &u); err != nil {
		t.Fatal(err)
	}
	if u.Username != "ops2" || u.LastLogin != nil || !u.DateJoined.IsZero() {
		t.Fatalf("user = %+v", u)
	}

	var e models.Enquiry
	if err := DecodeForm(map[string][]string{"name": {"A"}, "created_at": {"now"}}, &e); err != nil {
		t.Fatal(err)
	}
	if e.Name != "A" || !e.CreatedAt.IsZero() {
		t.Fatalf("enquiry = %+v", e)
	}
}

func TestDecodeFormJSONColumn(t *testing.T) {
	var s models.Supplier
	if err := DecodeForm(map[string][]string{"services": {`["Visa","Hotel"]`}}, &s); err != nil {
		t.Fatal(err)
	}
	if string(s.Services) != `["Visa","Hotel"]` {
		t.Fatalf("services = %s", s.Services)
	}
	if err := DecodeForm(map[string][]string{"services": {`[oops`}}, &s); err == nil {
		t.Fatal("expected invalid JSON error")
	}
}

func TestSetFieldAndIDHelpers(t *testing.T) {
	var v models.Visa
	if !SetField(&v, "card_image", "visas/cards/a.png") || v.CardImage != "visas/cards/a.png" {
		t.Fatal("SetField failed")
	}
	if SetField(&v, "card_image", 3) {
		t.Fatal("SetField accepted wrong type")
	}
	if FieldString(v, "card_image") != "visas/cards/a.png" {
		t.Fatal("FieldString mismatch")
	}
	SetID(&v, 9)
	if IDOf(&v) != 9 || IDOf(v) != 9 {
		t.Fatalf("IDOf = %d", IDOf(v))
	}
}

func TestValidateUsesJSONNamesAndDates(t *testing.T) {
	app := models.VisaApplication{VisaID: 1, ApplicationType: "Individual"}
	err := Validate(app)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	fields := FieldErrors(verrs)
	if fields["departure_date"] != "required" || fields["return_date"] != "required" {
		t.Fatalf("fields = %v", fields)
	}

	app.DepartureDate = models.NewDate(2025, 5, 1)
	app.ReturnDate = models.NewDate(2025, 5, 9)
	if err := Validate(app); err != nil {
		t.Fatalf("valid application rejected: %v", err)
	}
}
