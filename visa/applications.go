package visa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"goimomi/activity"
	"goimomi/app"
	"goimomi/crud"
	"goimomi/filemgr"
	"goimomi/models"
	"goimomi/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists the statuses each status may move to.
var transitions = map[string][]string{
	models.StatusPending:    {models.StatusProcessing},
	models.StatusProcessing: {models.StatusApproved, models.StatusRejected},
}

// CanTransition reports whether an application may move from one status to another.
func CanTransition(from, to string) bool {
	return utils.Contains(transitions[from], to)
}

// Applications serves visa applications. List, Get and Delete are generic;
// Create is the nested submission and Update only moves the status.
type Applications struct {
	*crud.Resource[models.VisaApplication]
}

func NewApplications(a *app.App) *Applications {
	s := &Applications{}
	s.Resource = &crud.Resource[models.VisaApplication]{
		Name:    "visa application",
		App:     a,
		Order:   "created_at DESC, id DESC",
		Scope:   scopeApplications,
		Preload: preloadApplication,
		OwnedFiles: func(tx *gorm.DB, va *models.VisaApplication) ([]string, error) {
			return applicationFiles(tx, []uint{va.ID})
		},
		BeforeDelete: func(tx *gorm.DB, va *models.VisaApplication) error {
			var ids []uint
			if err := tx.Model(&models.VisaApplicant{}).Where("application_id = ?", va.ID).Pluck("id", &ids).Error; err != nil {
				return err
			}
			return deleteApplicants(tx, ids)
		},
	}
	s.Present = s.present
	return s
}

func scopeApplications(r *http.Request, q *gorm.DB) *gorm.DB {
	query := r.URL.Query()
	if st := query.Get("status"); st != "" {
		q = q.Where("status = ?", st)
	}
	if v := query.Get("visa"); v != "" {
		q = q.Where("visa_id = ?", v)
	}
	return q
}

func preloadApplication(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Visa").
		Preload("Applicants", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Applicants.AdditionalDocuments", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

type applicationView struct {
	models.VisaApplication
	VisaCountry string `json:"visa_country"`
	VisaTitle   string `json:"visa_title"`
}

func (s *Applications) present(va *models.VisaApplication) any {
	v := applicationView{
		VisaApplication: *va,
		VisaCountry:     va.Visa.Country,
		VisaTitle:       va.Visa.Title,
	}
	v.Applicants = make([]models.VisaApplicant, len(va.Applicants))
	for i, ap := range va.Applicants {
		v.Applicants[i] = presentApplicant(s.App.Files, ap)
	}
	return v
}

// presentApplicant returns a copy of ap with file paths rendered as URLs.
func presentApplicant(files *filemgr.Store, ap models.VisaApplicant) models.VisaApplicant {
	ap.PassportFront = files.URL(ap.PassportFront)
	ap.Photo = files.URL(ap.Photo)
	docs := make([]models.VisaAdditionalDocument, len(ap.AdditionalDocuments))
	for j, d := range ap.AdditionalDocuments {
		d.File = files.URL(d.File)
		docs[j] = d
	}
	ap.AdditionalDocuments = docs
	return ap
}

// applicantInput is one entry of applicants_data.
type applicantInput struct {
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	PassportNumber string      `json:"passport_number"`
	Nationality    string      `json:"nationality"`
	Sex            string      `json:"sex"`
	DOB            models.Date `json:"dob"`
	PlaceOfBirth   string      `json:"place_of_birth"`
	PlaceOfIssue   string      `json:"place_of_issue"`
	MaritalStatus  string      `json:"marital_status"`
	Phone          string      `json:"phone"`
	DateOfIssue    models.Date `json:"date_of_issue"`
	DateOfExpiry   models.Date `json:"date_of_expiry"`
}

func (in applicantInput) applicant() models.VisaApplicant {
	ap := models.VisaApplicant{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		PassportNumber: strings.TrimSpace(in.PassportNumber),
		Nationality:    in.Nationality,
		Sex:            in.Sex,
		DOB:            in.DOB,
		PlaceOfBirth:   in.PlaceOfBirth,
		PlaceOfIssue:   in.PlaceOfIssue,
		MaritalStatus:  in.MaritalStatus,
		Phone:          in.Phone,
		DateOfIssue:    in.DateOfIssue,
		DateOfExpiry:   in.DateOfExpiry,
	}
	if ap.Sex == "" {
		ap.Sex = "Male"
	}
	if ap.MaritalStatus == "" {
		ap.MaritalStatus = "Single"
	}
	return ap
}

// indexedApplicant is an applicants_data entry with its position in the
// submitted array. Files are keyed by that position.
type indexedApplicant struct {
	index int
	in    applicantInput
}

// parseApplicants reads applicants_data. A malformed document yields no
// applicants and a malformed entry is dropped; neither fails the submission.
func parseApplicants(raw string) []indexedApplicant {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Printf("applicants_data ignored: %v", err)
		return nil
	}
	out := make([]indexedApplicant, 0, len(items))
	for i, item := range items {
		var in applicantInput
		if err := json.Unmarshal(item, &in); err != nil {
			log.Printf("applicants_data[%d] ignored: %v", i, err)
			continue
		}
		out = append(out, indexedApplicant{index: i, in: in})
	}
	return out
}

// submission is a decoded application with its applicants and form files.
type submission struct {
	application models.VisaApplication
	applicants  []indexedApplicant
	form        *multipart.Form
}

func (s *Applications) decodeSubmission(r *http.Request) (*submission, error) {
	sub := &submission{application: models.VisaApplication{ApplicationType: models.ApplicationIndividual}}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		var values map[string][]string
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(s.App.Cfg.MaxUploadBytes() * 4); err != nil {
				return nil, crud.Errorf(http.StatusBadRequest, "invalid form data: %v", err)
			}
			sub.form = r.MultipartForm
			values = r.MultipartForm.Value
		} else {
			if err := r.ParseForm(); err != nil {
				return nil, crud.Errorf(http.StatusBadRequest, "invalid form data: %v", err)
			}
			values = r.PostForm
		}
		if err := utils.DecodeForm(values, &sub.application, "status", "reference", "applicants"); err != nil {
			return nil, crud.Errorf(http.StatusBadRequest, "%v", err)
		}
		if v := values["applicants_data"]; len(v) > 0 {
			sub.applicants = parseApplicants(v[0])
		}

	default:
		var body map[string]json.RawMessage
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, crud.Errorf(http.StatusBadRequest, "request body is empty")
			}
			return nil, crud.Errorf(http.StatusBadRequest, "invalid JSON: %v", err)
		}
		if raw, ok := body["applicants_data"]; ok {
			var encoded string
			if json.Unmarshal(raw, &encoded) == nil {
				raw = json.RawMessage(encoded)
			}
			sub.applicants = parseApplicants(string(raw))
		}
		for _, k := range []string{"applicants_data", "applicants", "status", "reference", "id"} {
			delete(body, k)
		}
		scalars, _ := json.Marshal(body)
		if err := json.Unmarshal(scalars, &sub.application); err != nil {
			return nil, crud.Errorf(http.StatusBadRequest, "invalid JSON: %v", err)
		}
	}

	sub.application.ID = 0
	sub.application.Status = models.StatusPending
	sub.application.Reference = uuid.NewString()
	return sub, nil
}

// Create handles the multipart submission: the application row first, then
// each applicant with its files, all in one transaction.
func (s *Applications) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	sub, err := s.decodeSubmission(r)
	if err != nil {
		s.Fail(w, "decode visa application", err)
		return
	}
	va := &sub.application
	if err := utils.Validate(va); err != nil {
		utils.RespondWithValidation(w, err)
		return
	}
	if va.ReturnDate.Before(va.DepartureDate) {
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{
			"error":  "validation failed",
			"fields": map[string]string{"return_date": "gtefield=departure_date"},
		})
		return
	}

	batch := s.App.Files.NewBatch()
	err = s.App.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var visa models.Visa
		if err := tx.First(&visa, va.VisaID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return crud.Errorf(http.StatusBadRequest, "visa %d does not exist", va.VisaID)
			}
			return err
		}
		if err := tx.Omit(clause.Associations).Create(va).Error; err != nil {
			return err
		}
		for _, entry := range sub.applicants {
			if err := s.createApplicant(tx, batch, sub.form, va.ID, entry.index, entry.in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		batch.Rollback()
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			utils.RespondWithValidation(w, err)
			return
		}
		s.Fail(w, "submit visa application", err)
		return
	}

	saved, err := s.Load(ctx, va.ID)
	if err != nil {
		s.Fail(w, "reload visa application", err)
		return
	}
	s.Committed(r, activity.ActionCreate, saved)
	utils.RespondWithJSON(w, http.StatusCreated, s.Render(saved))
}

func (s *Applications) createApplicant(tx *gorm.DB, batch *filemgr.Batch, form *multipart.Form, applicationID uint, index int, in applicantInput) error {
	ap := in.applicant()
	ap.ApplicationID = applicationID
	if err := utils.Validate(ap); err != nil {
		return err
	}

	prefix := fmt.Sprintf("applicant_%d_", index)
	var err error
	if fh := filemgr.FormFile(form, prefix+"passport_front"); fh != nil {
		if ap.PassportFront, err = batch.Save(fh, filemgr.FolderPassport); err != nil {
			return err
		}
	}
	if fh := filemgr.FormFile(form, prefix+"photo"); fh != nil {
		if ap.Photo, err = batch.Save(fh, filemgr.FolderPhoto); err != nil {
			return err
		}
	}
	if err := tx.Omit(clause.Associations).Create(&ap).Error; err != nil {
		return err
	}

	for _, doc := range additionalDocs(form, prefix+"additional_doc_") {
		rel, err := batch.Save(doc.file, filemgr.FolderAdditionalDoc)
		if err != nil {
			return err
		}
		row := models.VisaAdditionalDocument{ApplicantID: ap.ID, DocumentName: models.Truncate(doc.name, 100), File: rel}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

type uploadedDoc struct {
	index int
	name  string
	file  *multipart.FileHeader
}

// additionalDocs collects the files named <prefix><j>, ordered by j. A
// <prefix><j>_name value names the document; the file name is the fallback.
func additionalDocs(form *multipart.Form, prefix string) []uploadedDoc {
	if form == nil {
		return nil
	}
	var docs []uploadedDoc
	for key, files := range form.File {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || len(files) == 0 {
			continue
		}
		j, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		name := ""
		if v := form.Value[key+"_name"]; len(v) > 0 {
			name = strings.TrimSpace(v[0])
		}
		if name == "" {
			name = strings.TrimSuffix(files[0].Filename, filepath.Ext(files[0].Filename))
		}
		docs = append(docs, uploadedDoc{index: j, name: name, file: files[0]})
	}
	sort.Slice(docs, func(a, b int) bool { return docs[a].index < docs[b].index })
	return docs
}

// Update handles PUT and PATCH. Only status may change, along the allowed
// transitions.
func (s *Applications) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id, err := utils.ParamID(ps, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Status == "" {
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{
			"error":  "validation failed",
			"fields": map[string]string{"status": "required"},
		})
		return
	}

	var va models.VisaApplication
	err = s.App.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&va, id).Error; err != nil {
			return err
		}
		if !CanTransition(va.Status, body.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, va.Status, body.Status)
		}
		// guarded on the old status so concurrent moves cannot both apply
		res := tx.Model(&models.VisaApplication{}).
			Where("id = ? AND status = ?", va.ID, va.Status).
			Update("status", body.Status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
		}
		return nil
	})
	if errors.Is(err, ErrInvalidTransition) {
		utils.RespondWithError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.Fail(w, "update visa application status", err)
		return
	}

	saved, err := s.Load(ctx, id)
	if err != nil {
		s.Fail(w, "reload visa application", err)
		return
	}
	s.App.Activity.Record(r.Context(), activity.Event{
		Action:   activity.ActionStatus,
		Entity:   s.Name,
		EntityID: id,
		Actor:    utils.GetUsernameFromRequest(r),
		Summary:  "status " + saved.Status,
	})
	utils.RespondWithJSON(w, http.StatusOK, s.Render(saved))
}
