package visa

import (
	"bytes"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"goimomi/app"
	"goimomi/models"
	"goimomi/testkit"

	"github.com/julienschmidt/httprouter"
)

func newRouter(t *testing.T) (*httprouter.Router, *app.App) {
	t.Helper()
	a := testkit.NewApp(t)
	visas := NewVisas(a)
	apps := NewApplications(a)

	r := httprouter.New()
	r.GET("/visas", visas.List)
	r.POST("/visas", visas.Create)
	r.DELETE("/visas/:id", visas.Delete)
	r.GET("/visa-applications", apps.List)
	r.GET("/visa-applications/:id", apps.Get)
	r.POST("/visa-applications", apps.Create)
	r.PATCH("/visa-applications/:id", apps.Update)
	r.GET("/visa-applications/:id/receipt", a.Auth.OptionalAuth(apps.Receipt))
	return r, a
}

func seedVisa(t *testing.T, a *app.App, country string, price int, active bool) models.Visa {
	t.Helper()
	v := models.Visa{
		Country:        country,
		Title:          country + " tourist",
		EntryType:      models.EntryTypes[0],
		ProcessingTime: "5 days",
		SellingPrice:   price,
		IsActive:       active,
	}
	if err := a.DB.Create(&v).Error; err != nil {
		t.Fatal(err)
	}
	return v
}

type applicationOut struct {
	ID          uint   `json:"id"`
	Status      string `json:"status"`
	Reference   string `json:"reference"`
	VisaCountry string `json:"visa_country"`
	VisaTitle   string `json:"visa_title"`
	Applicants  []struct {
		FirstName     string `json:"first_name"`
		Sex           string `json:"sex"`
		MaritalStatus string `json:"marital_status"`
		PassportFront string `json:"passport_front"`
		Photo         string `json:"photo"`
		Documents     []struct {
			DocumentName string `json:"document_name"`
			File         string `json:"file"`
		} `json:"additional_documents"`
	} `json:"applicants"`
}

func submit(t *testing.T, r http.Handler, visaID uint, applicants string, files ...testkit.File) applicationOut {
	t.Helper()
	fields := map[string]string{
		"visa":             strconv.Itoa(int(visaID)),
		"application_type": "Group",
		"group_name":       "Family",
		"departure_date":   "2026-11-01",
		"return_date":      "2026-11-10",
		"total_price":      "7000",
		"status":           "Approved",
		"applicants_data":  applicants,
	}
	fields["applicant_0_additional_doc_0_name"] = "Bank statement"
	body, ct := testkit.Multipart(t, fields, files...)
	rec := testkit.Do(t, r, http.MethodPost, "/visa-applications", "", body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body)
	}
	var out applicationOut
	testkit.Decode(t, rec, &out)
	return out
}

func TestSubmitApplicationWithApplicantsAndFiles(t *testing.T) {
	r, a := newRouter(t)
	v := seedVisa(t, a, "Thailand", 3500, true)
	img := testkit.PNG(t)

	out := submit(t, r, v.ID,
		`[{"first_name":"Asha","passport_number":"P1"},{"first_name":"Ravi","passport_number":"P2","sex":"Female","marital_status":"Married"}]`,
		testkit.File{Field: "applicant_0_passport_front", Filename: "front.png", Data: img},
		testkit.File{Field: "applicant_0_photo", Filename: "me.png", Data: img},
		testkit.File{Field: "applicant_0_additional_doc_0", Filename: "statement.png", Data: img},
		testkit.File{Field: "applicant_1_additional_doc_0", Filename: "ticket.png", Data: img},
	)

	if out.Status != models.StatusPending || out.Reference == "" {
		t.Fatalf("status %q reference %q", out.Status, out.Reference)
	}
	if out.VisaCountry != "Thailand" || out.VisaTitle != "Thailand tourist" {
		t.Fatalf("visa projection = %q %q", out.VisaCountry, out.VisaTitle)
	}
	if len(out.Applicants) != 2 {
		t.Fatalf("applicants = %d", len(out.Applicants))
	}
	first, second := out.Applicants[0], out.Applicants[1]
	if first.Sex != "Male" || first.MaritalStatus != "Single" {
		t.Fatalf("defaults not applied: %+v", first)
	}
	if second.Sex != "Female" || second.MaritalStatus != "Married" {
		t.Fatalf("explicit values lost: %+v", second)
	}
	if first.PassportFront == "" || first.Photo == "" || second.PassportFront != "" {
		t.Fatalf("files = %+v / %+v", first, second)
	}
	if len(first.Documents) != 1 || first.Documents[0].DocumentName != "Bank statement" {
		t.Fatalf("first documents = %+v", first.Documents)
	}
	if len(second.Documents) != 1 || second.Documents[0].DocumentName != "ticket" {
		t.Fatalf("second documents = %+v", second.Documents)
	}
}

func TestSubmitToleratesMalformedApplicants(t *testing.T) {
	r, a := newRouter(t)
	v := seedVisa(t, a, "Oman", 1200, true)

	out := submit(t, r, v.ID, `not json`)
	if len(out.Applicants) != 0 {
		t.Fatalf("applicants = %d", len(out.Applicants))
	}

	out = submit(t, r, v.ID, `[{"first_name":"Ok","passport_number":"P1"},{"first_name":5}]`)
	if len(out.Applicants) != 1 || out.Applicants[0].FirstName != "Ok" {
		t.Fatalf("applicants = %+v", out.Applicants)
	}
}

func TestDroppedApplicantKeepsLaterFilesInPlace(t *testing.T) {
	r, a := newRouter(t)
	v := seedVisa(t, a, "Oman", 1200, true)
	img := testkit.PNG(t)

	out := submit(t, r, v.ID,
		`[{"first_name":"Dropped","dob":"not-a-date"},{"first_name":"Kept","passport_number":"P2"}]`,
		testkit.File{Field: "applicant_0_passport_front", Filename: "front.png", Data: img},
		testkit.File{Field: "applicant_1_photo", Filename: "me.png", Data: img},
		testkit.File{Field: "applicant_1_additional_doc_0", Filename: "ticket.png", Data: img},
	)
	if len(out.Applicants) != 1 {
		t.Fatalf("applicants = %+v", out.Applicants)
	}
	kept := out.Applicants[0]
	if kept.FirstName != "Kept" || kept.PassportFront != "" || kept.Photo == "" {
		t.Fatalf("kept applicant files = %+v", kept)
	}
	if len(kept.Documents) != 1 || kept.Documents[0].DocumentName != "ticket" {
		t.Fatalf("kept documents = %+v", kept.Documents)
	}
	if n := storedFiles(t, a); n != 4 {
		t.Fatalf("%d files stored, want photo and document with thumbnails", n)
	}
}

func TestInvalidApplicantRollsBackSubmission(t *testing.T) {
	r, a := newRouter(t)
	v := seedVisa(t, a, "Oman", 1200, true)
	img := testkit.PNG(t)

	body, ct := testkit.Multipart(t, map[string]string{
		"visa":            strconv.Itoa(int(v.ID)),
		"departure_date":  "2026-11-01",
		"return_date":     "2026-11-10",
		"applicants_data": `[{"first_name":"Asha","passport_number":"P1"},{"first_name":"Ravi","sex":"M"}]`,
	},
		testkit.File{Field: "applicant_0_photo", Filename: "me.png", Data: img},
		testkit.File{Field: "applicant_0_additional_doc_0", Filename: "doc.png", Data: img},
	)
	rec := testkit.Do(t, r, http.MethodPost, "/visa-applications", "", body, ct)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"sex"`) {
		t.Fatalf("invalid applicant: %d %s", rec.Code, rec.Body)
	}

	for _, model := range []any{&models.VisaApplication{}, &models.VisaApplicant{}, &models.VisaAdditionalDocument{}} {
		var n int64
		a.DB.Model(model).Count(&n)
		if n != 0 {
			t.Fatalf("%T rows left: %d", model, n)
		}
	}
	if n := storedFiles(t, a); n != 0 {
		t.Fatalf("%d files left after rollback", n)
	}
}

// storedFiles counts regular files under the upload root, thumbnails included.
func storedFiles(t *testing.T, a *app.App) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(a.Files.Root, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSubmitRejectsUnknownVisaAndBadDates(t *testing.T) {
	r, a := newRouter(t)
	v := seedVisa(t, a, "Oman", 1200, true)

	rec := testkit.Do(t, r, http.MethodPost, "/visa-applications", "", map[string]any{
		"visa": 999, "departure_date": "2026-11-01", "return_date": "2026-11-10",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown visa: %d %s", rec.Code, rec.Body)
	}

	rec = testkit.Do(t, r, http.MethodPost, "/visa-applications", "", map[string]any{
		"visa": v.ID, "departure_date": "2026-11-10", "return_date": "2026-11-01",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted dates: %d %s", rec.Code, rec.Body)
	}

	var n int64
	a.DB.Model(&models.VisaApplication{}).Count(&n)
	if n != 0 {
		t.Fatalf("%d applications stored", n)
	}
}

func TestStatusTransitions(t *testing.T) {
	r, a := newRouter(t)
	v := seedVisa(t, a, "Oman", 1200, true)
	out := submit(t, r, v.ID, `[]`)
	target := "/visa-applications/" + strconv.Itoa(int(out.ID))

	steps := []struct {
		status string
		code   int
	}{
		{models.StatusApproved, http.StatusConflict},
		{models.StatusProcessing, http.StatusOK},
		{models.StatusPending, http.StatusConflict},
		{models.StatusRejected, http.StatusOK},
		{models.StatusApproved, http.StatusConflict},
		{"", http.StatusBadRequest},
	}
	for _, s := range steps {
		rec := testkit.Do(t, r, http.MethodPatch, target, "", map[string]string{"status": s.status}, "")
		if rec.Code != s.code {
			t.Fatalf("to %q: %d %s", s.status, rec.Code, rec.Body)
		}
	}

	var va models.VisaApplication
	a.DB.First(&va, out.ID)
	if va.Status != models.StatusRejected {
		t.Fatalf("final status %q", va.Status)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.StatusPending, models.StatusProcessing, true},
		{models.StatusPending, models.StatusApproved, false},
		{models.StatusProcessing, models.StatusApproved, true},
		{models.StatusProcessing, models.StatusRejected, true},
		{models.StatusApproved, models.StatusPending, false},
		{models.StatusRejected, models.StatusProcessing, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("%s -> %s = %v", c.from, c.to, got)
		}
	}
}

func TestVisaListFilters(t *testing.T) {
	r, a := newRouter(t)
	seedVisa(t, a, "Thailand", 3500, true)
	seedVisa(t, a, "Thailand", 2000, true)
	seedVisa(t, a, "thailand", 9000, false)
	seedVisa(t, a, "Oman", 1200, true)

	var got []models.Visa
	testkit.Decode(t, testkit.Do(t, r, http.MethodGet, "/visas?country=THAILAND", "", nil, ""), &got)
	if len(got) != 2 || got[0].SellingPrice != 2000 || got[1].SellingPrice != 3500 {
		t.Fatalf("active thailand = %+v", got)
	}

	testkit.Decode(t, testkit.Do(t, r, http.MethodGet, "/visas?country=thailand&all=true", "", nil, ""), &got)
	if len(got) != 3 {
		t.Fatalf("all thailand = %d", len(got))
	}
}

func TestVisaRejectsUnknownEntryType(t *testing.T) {
	r, _ := newRouter(t)
	body := map[string]any{
		"country": "Oman", "title": "Oman 30 days", "entry_type": "Bicycle Visa", "processing_time": "3 days",
	}
	rec := testkit.Do(t, r, http.MethodPost, "/visas", "", body, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad entry type: %d %s", rec.Code, rec.Body)
	}

	body["entry_type"] = "Visa on Arrival"
	rec = testkit.Do(t, r, http.MethodPost, "/visas", "", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var v models.Visa
	testkit.Decode(t, rec, &v)
	if !v.IsActive {
		t.Fatal("new visa is inactive")
	}
}

func TestDeleteVisaCascadesApplications(t *testing.T) {
	r, a := newRouter(t)
	v := seedVisa(t, a, "Oman", 1200, true)
	submit(t, r, v.ID, `[{"first_name":"Asha","passport_number":"P1"}]`,
		testkit.File{Field: "applicant_0_photo", Filename: "me.png", Data: testkit.PNG(t)},
		testkit.File{Field: "applicant_0_additional_doc_0", Filename: "doc.png", Data: testkit.PNG(t)},
	)
	var ap models.VisaApplicant
	a.DB.First(&ap)
	if !a.Files.Exists(ap.Photo) {
		t.Fatal("photo not stored")
	}

	rec := testkit.Do(t, r, http.MethodDelete, "/visas/"+strconv.Itoa(int(v.ID)), "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body)
	}
	for _, model := range []any{&models.VisaApplication{}, &models.VisaApplicant{}, &models.VisaAdditionalDocument{}} {
		var n int64
		a.DB.Model(model).Count(&n)
		if n != 0 {
			t.Fatalf("%T rows left: %d", model, n)
		}
	}
	if a.Files.Exists(ap.Photo) {
		t.Fatal("photo kept after cascade")
	}
}

func TestReceipt(t *testing.T) {
	r, a := newRouter(t)
	v := seedVisa(t, a, "Oman", 1200, true)
	out := submit(t, r, v.ID, `[{"first_name":"Asha","passport_number":"P1"}]`)
	base := "/visa-applications/" + strconv.Itoa(int(out.ID)) + "/receipt"

	if rec := testkit.Do(t, r, http.MethodGet, base, "", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("anonymous without reference: %d", rec.Code)
	}
	if rec := testkit.Do(t, r, http.MethodGet, base+"?reference=wrong", "", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("wrong reference: %d", rec.Code)
	}
	for _, rec := range []*httptest.ResponseRecorder{
		testkit.Do(t, r, http.MethodGet, base+"?reference="+out.Reference, "", nil, ""),
		testkit.Do(t, r, http.MethodGet, base, testkit.StaffToken(t, a, false), nil, ""),
	} {
		if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
			t.Fatalf("receipt: %d %q", rec.Code, rec.Header().Get("Content-Type"))
		}
	}
}

func TestVerifyReceipt(t *testing.T) {
	secret := []byte("s")
	payload := ReceiptPayload(secret, 42, "abc-123")
	id, ref, err := VerifyReceipt(secret, payload)
	if err != nil || id != 42 || ref != "abc-123" {
		t.Fatalf("verify = %d %q %v", id, ref, err)
	}
	if _, _, err := VerifyReceipt([]byte("other"), payload); err != ErrBadSignature {
		t.Fatalf("foreign secret: %v", err)
	}
	if _, _, err := VerifyReceipt(secret, "42|abc-124|"+payload[len("42|abc-123|"):]); err != ErrBadSignature {
		t.Fatalf("tampered reference: %v", err)
	}
}
