// Package testkit builds an in-memory application for handler tests.
package testkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"goimomi/activity"
	"goimomi/app"
	"goimomi/config"
	"goimomi/db"
	"goimomi/filemgr"
	"goimomi/middleware"
	"goimomi/models"
	"goimomi/rdx"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

// NewApp returns an App backed by a private in-memory sqlite database and a
// temporary upload root.
func NewApp(t *testing.T) *app.App {
	t.Helper()

	cfg := config.FromEnv(func(string) string { return "" })
	cfg.DBDriver = "sqlite"
	cfg.DBDSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", unsafeName.ReplaceAllString(t.Name(), "_"))
	cfg.UploadRoot = t.TempDir()
	cfg.JWTSecret = []byte("test-secret")
	cfg.ReceiptSecret = []byte("test-receipt-secret")

	gdb, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return &app.App{
		Cfg:      cfg,
		DB:       gdb,
		Files:    filemgr.NewStore(cfg.UploadRoot, cfg.MaxUploadBytes()),
		Cache:    rdx.NewCache(nil, cfg.ReferenceTTL),
		Activity: activity.NewRecorder(activity.NewMemoryLog(100), nil, nil),
		Auth:     middleware.NewAuth(cfg.JWTSecret, time.Hour),
	}
}

// StaffToken issues a bearer token for a staff user that need not exist.
func StaffToken(t *testing.T, a *app.App, superuser bool) string {
	t.Helper()
	tok, err := a.Auth.IssueToken(models.User{ID: 1, Username: "staff", IsStaff: true, IsSuperuser: superuser})
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// PNG returns a small valid PNG image.
func PNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// File is one multipart file part.
type File struct {
	Field    string
	Filename string
	Data     []byte
}

// Multipart encodes fields and files and returns the body and content type.
func Multipart(t *testing.T, fields map[string]string, files ...File) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(f.Data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// Do sends a request through h. body may be nil, a []byte, an io.Reader or a
// value to JSON-encode.
func Do(t *testing.T, h http.Handler, method, target, token string, body any, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
		if contentType == "" {
			contentType = "application/json"
		}
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals a recorded JSON response into v.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}
