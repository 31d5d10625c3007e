package visa

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"goimomi/middleware"
	"goimomi/models"
	"goimomi/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

var ErrBadSignature = errors.New("receipt signature does not match")

func sign(secret []byte, data string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// ReceiptPayload returns the string encoded in a receipt QR code:
// applicationID|reference|signature.
func ReceiptPayload(secret []byte, id uint, reference string) string {
	data := fmt.Sprintf("%d|%s", id, reference)
	return data + "|" + sign(secret, data)
}

// VerifyReceipt checks a scanned payload and returns the application id and
// reference it names.
func VerifyReceipt(secret []byte, payload string) (uint, string, error) {
	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return 0, "", ErrBadSignature
	}
	data := parts[0] + "|" + parts[1]
	if !hmac.Equal([]byte(sign(secret, data)), []byte(parts[2])) {
		return 0, "", ErrBadSignature
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", ErrBadSignature
	}
	return uint(id), parts[1], nil
}

// Receipt renders a PDF acknowledgement of an application. Anonymous callers
// must present the reference issued at submission.
func (s *Applications) Receipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := utils.ParamID(ps, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	va, err := s.Load(r.Context(), id)
	if err != nil {
		s.Fail(w, "load visa application", err)
		return
	}
	if !middleware.IsStaff(r) {
		ref := r.URL.Query().Get("reference")
		if ref == "" || !hmac.Equal([]byte(ref), []byte(va.Reference)) {
			utils.RespondWithError(w, http.StatusNotFound, "visa application not found")
			return
		}
	}

	pdfBytes, err := renderReceipt(va, ReceiptPayload(s.App.Cfg.ReceiptSecret, va.ID, va.Reference))
	if err != nil {
		utils.RespondInternal(w, "render receipt", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=visa-application-%d.pdf", va.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdfBytes); err != nil {
		log.Printf("write receipt %d: %v", va.ID, err)
	}
}

func renderReceipt(va *models.VisaApplication, payload string) ([]byte, error) {
	qrPNG, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Visa Application Receipt")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 12)
	lines := []string{
		fmt.Sprintf("Application: #%d", va.ID),
		"Reference: " + va.Reference,
		fmt.Sprintf("Visa: %s (%s)", va.Visa.Title, va.Visa.Country),
		"Type: " + va.ApplicationType,
		fmt.Sprintf("Travel: %s to %s", va.DepartureDate, va.ReturnDate),
		"Status: " + va.Status,
		fmt.Sprintf("Total: %.2f", va.TotalPrice),
		"Submitted: " + va.CreatedAt.Format("2006-01-02 15:04"),
	}
	if va.GroupName != "" {
		lines = append(lines, "Group: "+va.GroupName)
	}
	for _, l := range lines {
		pdf.Cell(0, 8, tr(l))
		pdf.Ln(8)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Applicants")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 11)
	for i, ap := range va.Applicants {
		pdf.Cell(0, 7, tr(fmt.Sprintf("%d. %s %s, passport %s", i+1, ap.FirstName, ap.LastName, ap.PassportNumber)))
		pdf.Ln(7)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 20, 40, 40, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
