package crud_test

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"goimomi/crud"
	"goimomi/filemgr"
	"goimomi/models"
	"goimomi/testkit"

	"github.com/julienschmidt/httprouter"
)

func visaRouter(t *testing.T) (*httprouter.Router, *crud.Resource[models.Visa]) {
	a := testkit.NewApp(t)
	res := &crud.Resource[models.Visa]{
		Name:    "visas",
		App:     a,
		Order:   "country, selling_price",
		Uploads: map[string]filemgr.Folder{"card_image": filemgr.FolderVisaCard},
		New:     func() *models.Visa { return &models.Visa{IsActive: true} },
	}
	r := httprouter.New()
	r.GET("/visas", res.List)
	r.GET("/visas/:id", res.Get)
	r.POST("/visas", res.Create)
	r.PATCH("/visas/:id", res.Update)
	r.DELETE("/visas/:id", res.Delete)
	return r, res
}

func TestCreatePatchDelete(t *testing.T) {
	r, res := visaRouter(t)

	rec := testkit.Do(t, r, http.MethodPost, "/visas", "", map[string]any{
		"country": "France", "title": "Schengen", "entry_type": "Single-Entry Visa",
		"processing_time": "10 days", "selling_price": 9000,
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var created map[string]any
	testkit.Decode(t, rec, &created)
	if created["is_active"] != true {
		t.Errorf("is_active default not applied: %v", created["is_active"])
	}
	id := int(created["id"].(float64))

	rec = testkit.Do(t, r, http.MethodPatch, "/visas/"+strconv.Itoa(id), "", map[string]any{"selling_price": 9500, "id": 999}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body)
	}

	stored, err := res.Load(context.Background(), uint(id))
	if err != nil {
		t.Fatal(err)
	}
	if stored.SellingPrice != 9500 || stored.Title != "Schengen" {
		t.Fatalf("patch did not merge: %+v", stored)
	}

	if rec := testkit.Do(t, r, http.MethodDelete, "/visas/"+strconv.Itoa(id), "", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := testkit.Do(t, r, http.MethodGet, "/visas/"+strconv.Itoa(id), "", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rec.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	r, _ := visaRouter(t)
	rec := testkit.Do(t, r, http.MethodPost, "/visas", "", map[string]any{"country": "France"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	testkit.Decode(t, rec, &body)
	if body.Fields["title"] != "required" {
		t.Fatalf("fields = %v", body.Fields)
	}

	if rec := testkit.Do(t, r, http.MethodPost, "/visas", "", []byte("{"), "application/json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed JSON: %d", rec.Code)
	}
}

func TestMultipartUploadAndJSONCannotOverwritePath(t *testing.T) {
	r, res := visaRouter(t)

	body, ct := testkit.Multipart(t, map[string]string{
		"country": "Japan", "title": "Tourist", "entry_type": "Single-Entry Visa",
		"processing_time": "5 days", "selling_price": "7000", "is_active": "true",
	}, testkit.File{Field: "card_image", Filename: "card.png", Data: testkit.PNG(t)})
	rec := testkit.Do(t, r, http.MethodPost, "/visas", "", body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var created map[string]any
	testkit.Decode(t, rec, &created)
	url, _ := created["card_image"].(string)
	if !strings.HasPrefix(url, "/static/uploads/visas/cards/") {
		t.Fatalf("card_image = %q", url)
	}
	if thumb, _ := created["card_image_thumb"].(string); !strings.HasPrefix(thumb, "/static/uploads/visas/cards/thumbs/") {
		t.Fatalf("card_image_thumb = %q", thumb)
	}
	id := uint(created["id"].(float64))
	stored, _ := res.Load(context.Background(), id)
	if !res.App.Files.Exists(stored.CardImage) {
		t.Fatal("uploaded file not on disk")
	}

	rec = testkit.Do(t, r, http.MethodPatch, "/visas/"+strconv.Itoa(int(id)), "", map[string]any{"card_image": "http://evil/x.png"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d", rec.Code)
	}
	after, _ := res.Load(context.Background(), id)
	if after.CardImage != stored.CardImage {
		t.Fatalf("JSON patch replaced upload path: %q", after.CardImage)
	}

	testkit.Do(t, r, http.MethodDelete, "/visas/"+strconv.Itoa(int(id)), "", nil, "")
	if res.App.Files.Exists(stored.CardImage) {
		t.Fatal("upload survived delete")
	}
}

func TestListOrder(t *testing.T) {
	r, res := visaRouter(t)
	for _, v := range []models.Visa{
		{Country: "Japan", Title: "a", EntryType: "x", ProcessingTime: "1", SellingPrice: 10},
		{Country: "France", Title: "b", EntryType: "x", ProcessingTime: "1", SellingPrice: 30},
		{Country: "France", Title: "c", EntryType: "x", ProcessingTime: "1", SellingPrice: 20},
	} {
		if err := res.App.DB.Create(&v).Error; err != nil {
			t.Fatal(err)
		}
	}
	rec := testkit.Do(t, r, http.MethodGet, "/visas", "", nil, "")
	var got []models.Visa
	testkit.Decode(t, rec, &got)
	if len(got) != 3 || got[0].Title != "c" || got[1].Title != "b" || got[2].Title != "a" {
		t.Fatalf("order = %+v", got)
	}
}
