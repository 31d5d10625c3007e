package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"goimomi/activity"
	"goimomi/crud"
	"goimomi/filemgr"
	"goimomi/models"
	"goimomi/utils"

	"github.com/julienschmidt/httprouter"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// saveRequest is one decoded package save: scalar fields already applied to
// the package, the nested collections, and the uploaded files.
type saveRequest struct {
	nested nested
	form   *multipart.Form
}

func (s saveRequest) file(key string) *multipart.FileHeader {
	return filemgr.FormFile(s.form, key)
}

// Create handles POST /api/packages.
func (p *Packages) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	pkg := &models.HolidayPackage{IsActive: true}
	req, err := p.decode(r, pkg)
	if err != nil {
		p.Fail(w, "decode package", err)
		return
	}
	pkg.ID = 0
	p.save(ctx, w, r, pkg, req, true)
}

// Update handles PUT and PATCH /api/packages/:id. Scalars merge over the stored
// row; a nested collection is replaced only when its key is present.
func (p *Packages) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	id, err := utils.ParamID(ps, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	pkg := &models.HolidayPackage{}
	if err := p.App.DB.WithContext(ctx).First(pkg, id).Error; err != nil {
		p.Fail(w, "load package", err)
		return
	}
	req, err := p.decode(r, pkg)
	if err != nil {
		p.Fail(w, "decode package", err)
		return
	}
	pkg.ID = id
	p.save(ctx, w, r, pkg, req, false)
}

func (p *Packages) save(ctx context.Context, w http.ResponseWriter, r *http.Request, pkg *models.HolidayPackage, req saveRequest, isNew bool) {
	if err := utils.Validate(pkg); err != nil {
		utils.RespondWithValidation(w, err)
		return
	}

	batch := p.App.Files.NewBatch()
	var obsolete []string

	for key, folder := range p.Uploads {
		fh := req.file(key)
		if fh == nil {
			continue
		}
		rel, err := batch.Save(fh, folder)
		if err != nil {
			batch.Rollback()
			p.Fail(w, "save package image", err)
			return
		}
		if old := utils.FieldString(pkg, key); old != "" {
			obsolete = append(obsolete, old)
		}
		utils.SetField(pkg, key, rel)
	}

	err := p.App.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if isNew {
			err = tx.Omit(clause.Associations).Create(pkg).Error
		} else {
			err = tx.Omit(clause.Associations).Save(pkg).Error
		}
		if err != nil {
			return err
		}
		cw := &childWriter{tx: tx, pkg: pkg, req: req, batch: batch}
		if err := cw.apply(); err != nil {
			return err
		}
		obsolete = append(obsolete, cw.obsolete...)
		return nil
	})
	if err != nil {
		batch.Rollback()
		p.Fail(w, "save package", err)
		return
	}
	for _, rel := range obsolete {
		p.removeFile(rel)
	}

	saved, err := p.Load(ctx, pkg.ID)
	if err != nil {
		p.Fail(w, "reload package", err)
		return
	}
	action, status := activity.ActionUpdate, http.StatusOK
	if isNew {
		action, status = activity.ActionCreate, http.StatusCreated
	}
	p.Committed(r, action, saved)
	utils.RespondWithJSON(w, status, p.Render(saved))
}

// decode applies the body's scalar fields to pkg and extracts the nested
// collections. Image fields only change through multipart uploads.
func (p *Packages) decode(r *http.Request, pkg *models.HolidayPackage) (saveRequest, error) {
	var req saveRequest
	header, card := pkg.HeaderImage, pkg.CardImage
	defer func() { pkg.HeaderImage, pkg.CardImage = header, card }()

	raw := map[string][]byte{}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(p.App.Cfg.MaxUploadBytes() * 4); err != nil {
			return req, crud.Errorf(http.StatusBadRequest, "invalid form data: %v", err)
		}
		req.form = r.MultipartForm
		if err := utils.DecodeForm(r.MultipartForm.Value, pkg); err != nil {
			return req, crud.Errorf(http.StatusBadRequest, "%v", err)
		}
		for _, key := range nestedKeys {
			if vals, ok := r.MultipartForm.Value[key]; ok && len(vals) > 0 {
				raw[key] = []byte(vals[0])
			}
		}

	default:
		var body map[string]json.RawMessage
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return req, crud.Errorf(http.StatusBadRequest, "request body is empty")
			}
			return req, crud.Errorf(http.StatusBadRequest, "invalid JSON: %v", err)
		}
		for _, key := range nestedKeys {
			if v, ok := body[key]; ok {
				raw[key] = v
				delete(body, key)
			}
		}
		scalars, err := json.Marshal(body)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(scalars, pkg); err != nil {
			return req, crud.Errorf(http.StatusBadRequest, "invalid JSON: %v", err)
		}
	}

	n, err := parseNested(raw)
	if err != nil {
		return req, crud.Errorf(http.StatusBadRequest, "%v", err)
	}
	req.nested = n
	return req, nil
}

// childWriter replaces the collections present in one save, inside its
// transaction.
type childWriter struct {
	tx    *gorm.DB
	pkg   *models.HolidayPackage
	req   saveRequest
	batch *filemgr.Batch
	// obsolete collects files to delete once the transaction commits.
	obsolete []string
}

func (cw *childWriter) apply() error {
	n := cw.req.nested
	if n.Destinations != nil {
		if err := cw.replaceDestinations(*n.Destinations); err != nil {
			return err
		}
	}
	if n.Inclusions != nil {
		rows := make([]models.Inclusion, len(*n.Inclusions))
		for i, text := range *n.Inclusions {
			rows[i] = models.Inclusion{PackageID: cw.pkg.ID, Text: text}
		}
		if err := replaceRows(cw.tx, cw.pkg.ID, rows); err != nil {
			return err
		}
	}
	if n.Exclusions != nil {
		rows := make([]models.Exclusion, len(*n.Exclusions))
		for i, text := range *n.Exclusions {
			rows[i] = models.Exclusion{PackageID: cw.pkg.ID, Text: text}
		}
		if err := replaceRows(cw.tx, cw.pkg.ID, rows); err != nil {
			return err
		}
	}
	if n.Highlights != nil {
		rows := make([]models.Highlight, len(*n.Highlights))
		for i, text := range *n.Highlights {
			rows[i] = models.Highlight{PackageID: cw.pkg.ID, Text: text}
		}
		if err := replaceRows(cw.tx, cw.pkg.ID, rows); err != nil {
			return err
		}
	}
	if n.Days != nil {
		return cw.replaceDays(*n.Days)
	}
	return nil
}

func replaceRows[T any](tx *gorm.DB, packageID uint, rows []T) error {
	if err := tx.Where("package_id = ?", packageID).Delete(new(T)).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

// replaceDestinations matches destinations by exact name; unknown names are
// skipped. Nights default to 1.
func (cw *childWriter) replaceDestinations(items []destinationInput) error {
	var rows []models.PackageDestination
	for _, item := range items {
		name := item.name()
		if name == "" {
			continue
		}
		var dest models.Destination
		err := cw.tx.Where("name = ?", name).First(&dest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		nights := 1
		if item.Nights.Valid && item.Nights.N >= 0 {
			nights = item.Nights.N
		}
		rows = append(rows, models.PackageDestination{PackageID: cw.pkg.ID, DestinationID: dest.ID, Nights: nights})
	}
	return replaceRows(cw.tx, cw.pkg.ID, rows)
}

// replaceDays rebuilds the itinerary. Each kept day is linked to a master
// template: the referenced one is refreshed in place, otherwise a new master
// is created from the day. A day without a new image keeps the image the
// previous day with the same number had.
func (cw *childWriter) replaceDays(items []dayInput) error {
	var prior []models.ItineraryDay
	if err := cw.tx.Where("package_id = ?", cw.pkg.ID).Find(&prior).Error; err != nil {
		return err
	}
	priorImage := make(map[int]string, len(prior))
	for _, d := range prior {
		priorImage[d.DayNumber] = d.Image
	}
	if err := cw.tx.Where("package_id = ?", cw.pkg.ID).Delete(&models.ItineraryDay{}).Error; err != nil {
		return err
	}

	owner, err := cw.firstDestination()
	if err != nil {
		return err
	}

	kept := make(map[string]bool)
	seen := make(map[int]bool)
	for i, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		number := item.number(i)
		if seen[number] {
			continue
		}
		seen[number] = true

		day := models.ItineraryDay{
			PackageID:   cw.pkg.ID,
			DayNumber:   number,
			Title:       models.Truncate(title, models.TitleMaxLen),
			Description: item.Description,
		}

		uploaded := false
		if fh := cw.req.file(dayImagePrefix + strconv.Itoa(i)); fh != nil {
			rel, err := cw.batch.Save(fh, filemgr.FolderItinerary)
			if err != nil {
				return err
			}
			day.Image, uploaded = rel, true
		} else {
			day.Image = priorImage[number]
		}
		if day.Image != "" {
			kept[day.Image] = true
		}

		master, err := cw.resolveMaster(item, day, uploaded, owner)
		if err != nil {
			return err
		}
		day.MasterTemplateID = &master.ID

		if err := cw.tx.Omit(clause.Associations).Create(&day).Error; err != nil {
			return err
		}
	}

	for _, d := range prior {
		if d.Image != "" && !kept[d.Image] {
			cw.obsolete = append(cw.obsolete, d.Image)
		}
	}
	return nil
}

func (cw *childWriter) firstDestination() (*uint, error) {
	var pd models.PackageDestination
	err := cw.tx.Where("package_id = ?", cw.pkg.ID).Order("id").First(&pd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pd.DestinationID, nil
}

// resolveMaster returns the master template for day. An id that does not
// resolve is treated as absent.
func (cw *childWriter) resolveMaster(item dayInput, day models.ItineraryDay, uploaded bool, owner *uint) (*models.ItineraryMaster, error) {
	var master models.ItineraryMaster
	if item.MasterTemplate.Valid && item.MasterTemplate.N > 0 {
		err := cw.tx.First(&master, item.MasterTemplate.N).Error
		switch {
		case err == nil:
			master.Title = day.Title
			master.Description = day.Description
			if uploaded {
				img, err := cw.batch.Copy(day.Image, filemgr.FolderItineraryMaster)
				if err != nil {
					return nil, err
				}
				if master.Image != "" {
					cw.obsolete = append(cw.obsolete, master.Image)
				}
				master.Image = img
			}
			if err := cw.tx.Omit(clause.Associations).Save(&master).Error; err != nil {
				return nil, err
			}
			return &master, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}

	master = models.ItineraryMaster{
		Name:          day.Title,
		Title:         day.Title,
		Description:   day.Description,
		DestinationID: owner,
	}
	if day.Image != "" {
		img, err := cw.batch.Copy(day.Image, filemgr.FolderItineraryMaster)
		if err != nil {
			return nil, err
		}
		master.Image = img
	}
	if err := cw.tx.Omit(clause.Associations).Create(&master).Error; err != nil {
		return nil, err
	}
	return &master, nil
}
