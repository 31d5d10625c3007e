package crud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	"goimomi/activity"
	"goimomi/app"
	"goimomi/filemgr"
	"goimomi/utils"

	"github.com/julienschmidt/httprouter"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Error carries an HTTP status out of a hook.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Resource serves list/retrieve/create/update/delete for one gorm model.
// Hooks run inside the write transaction; AfterCommit runs once it is durable.
type Resource[T any] struct {
	Name string
	App  *app.App

	Order   string
	Scope   func(r *http.Request, q *gorm.DB) *gorm.DB
	Preload func(q *gorm.DB) *gorm.DB
	Present func(item *T) any
	// New returns a row carrying create-time defaults.
	New func() *T

	// Uploads maps a json field to the folder its multipart file is saved in.
	Uploads map[string]filemgr.Folder
	// CacheTable names the reference cache entry invalidated on every write.
	CacheTable string

	BeforeSave   func(tx *gorm.DB, item *T, isNew bool) error
	BeforeDelete func(tx *gorm.DB, item *T) error
	// OwnedFiles lists uploads held by rows that cascade with item. They are
	// removed once the delete commits.
	OwnedFiles  func(tx *gorm.DB, item *T) ([]string, error)
	AfterCommit func(ctx context.Context, action string, item *T)
}

const defaultMaxBody = 32 << 20

func (res *Resource[T]) maxBody() int64 {
	if n := res.App.Cfg.MaxUploadBytes(); n > 0 {
		return n * 4
	}
	return defaultMaxBody
}

// Find runs the list query for r.
func (res *Resource[T]) Find(r *http.Request) ([]T, error) {
	q := res.App.DB.WithContext(r.Context()).Model(new(T))
	if res.Preload != nil {
		q = res.Preload(q)
	}
	if res.Scope != nil {
		q = res.Scope(r, q)
	}
	if res.Order != "" {
		q = q.Order(res.Order)
	}
	items := []T{}
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Load fetches one row by primary key with the detail preloads.
func (res *Resource[T]) Load(ctx context.Context, id uint) (*T, error) {
	item := new(T)
	q := res.App.DB.WithContext(ctx)
	if res.Preload != nil {
		q = res.Preload(q)
	}
	if err := q.First(item, id).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (res *Resource[T]) Render(item *T) any {
	if res.Present != nil {
		return res.Present(item)
	}
	if len(res.Uploads) == 0 || res.App.Files == nil {
		return item
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return item
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return item
	}
	for key := range res.Uploads {
		rel := utils.FieldString(item, key)
		out[key] = res.App.Files.URL(rel)
		out[key+"_thumb"] = res.App.Files.ThumbURL(rel)
	}
	return out
}

func (res *Resource[T]) RenderList(items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = res.Render(&items[i])
	}
	return out
}

func (res *Resource[T]) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	items, err := res.Find(r)
	if err != nil {
		res.Fail(w, "list "+res.Name, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res.RenderList(items))
}

func (res *Resource[T]) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := utils.ParamID(ps, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := res.Load(r.Context(), id)
	if err != nil {
		res.Fail(w, "get "+res.Name, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res.Render(item))
}

func (res *Resource[T]) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	item := new(T)
	if res.New != nil {
		item = res.New()
	}
	batch, _, err := res.decode(r, item)
	if err != nil {
		res.Fail(w, "decode "+res.Name, err)
		return
	}
	utils.SetID(item, 0)

	if err := utils.Validate(item); err != nil {
		batch.Rollback()
		utils.RespondWithValidation(w, err)
		return
	}

	err = res.App.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if res.BeforeSave != nil {
			if err := res.BeforeSave(tx, item, true); err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Create(item).Error
	})
	if err != nil {
		batch.Rollback()
		res.Fail(w, "create "+res.Name, err)
		return
	}

	res.Committed(r, activity.ActionCreate, item)
	utils.RespondWithJSON(w, http.StatusCreated, res.Render(item))
}

// Update serves PUT and PATCH. The body is applied over the stored row, so
// fields the client leaves out keep their stored values.
func (res *Resource[T]) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id, err := utils.ParamID(ps, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	item := new(T)
	if err := res.App.DB.WithContext(ctx).First(item, id).Error; err != nil {
		res.Fail(w, "load "+res.Name, err)
		return
	}

	batch, replaced, err := res.decode(r, item)
	if err != nil {
		res.Fail(w, "decode "+res.Name, err)
		return
	}
	utils.SetID(item, id)

	if err := utils.Validate(item); err != nil {
		batch.Rollback()
		utils.RespondWithValidation(w, err)
		return
	}

	err = res.App.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if res.BeforeSave != nil {
			if err := res.BeforeSave(tx, item, false); err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Save(item).Error
	})
	if err != nil {
		batch.Rollback()
		res.Fail(w, "update "+res.Name, err)
		return
	}

	for _, old := range replaced {
		res.removeFile(old)
	}
	res.Committed(r, activity.ActionUpdate, item)
	utils.RespondWithJSON(w, http.StatusOK, res.Render(item))
}

func (res *Resource[T]) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id, err := utils.ParamID(ps, "id")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	item := new(T)
	var owned []string
	err = res.App.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(item, id).Error; err != nil {
			return err
		}
		if res.OwnedFiles != nil {
			var err error
			if owned, err = res.OwnedFiles(tx, item); err != nil {
				return err
			}
		}
		if res.BeforeDelete != nil {
			if err := res.BeforeDelete(tx, item); err != nil {
				return err
			}
		}
		return tx.Delete(item).Error
	})
	if err != nil {
		res.Fail(w, "delete "+res.Name, err)
		return
	}

	for key := range res.Uploads {
		res.removeFile(utils.FieldString(item, key))
	}
	for _, rel := range owned {
		res.removeFile(rel)
	}
	res.Committed(r, activity.ActionDelete, item)
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true})
}

// Committed runs the post-commit side effects of a write: cache invalidation,
// the activity event and AfterCommit.
func (res *Resource[T]) Committed(r *http.Request, action string, item *T) {
	ctx := r.Context()
	if res.CacheTable != "" {
		res.App.Cache.Invalidate(ctx, res.CacheTable)
	}
	res.App.Activity.Record(ctx, activity.Event{
		Action:   action,
		Entity:   res.Name,
		EntityID: utils.IDOf(item),
		Actor:    utils.GetUsernameFromRequest(r),
	})
	if res.AfterCommit != nil {
		res.AfterCommit(ctx, action, item)
	}
}

func (res *Resource[T]) removeFile(rel string) {
	if rel == "" || res.App.Files == nil {
		return
	}
	if err := res.App.Files.Remove(rel); err != nil {
		log.Printf("remove %s: %v", rel, err)
	}
}

// decode applies the request body to item. Multipart bodies may carry files
// for the Uploads fields; JSON bodies never change them.
func (res *Resource[T]) decode(r *http.Request, item *T) (*filemgr.Batch, []string, error) {
	batch := &filemgr.Batch{}
	if res.App.Files != nil {
		batch = res.App.Files.NewBatch()
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(res.maxBody()); err != nil {
			return batch, nil, Errorf(http.StatusBadRequest, "invalid form data: %v", err)
		}
		skip := make([]string, 0, len(res.Uploads))
		for key := range res.Uploads {
			skip = append(skip, key)
		}
		if err := utils.DecodeForm(r.MultipartForm.Value, item, skip...); err != nil {
			return batch, nil, Errorf(http.StatusBadRequest, "%v", err)
		}
		var replaced []string
		for key, folder := range res.Uploads {
			fh := filemgr.FormFile(r.MultipartForm, key)
			if fh == nil {
				continue
			}
			if res.App.Files == nil {
				return batch, nil, Errorf(http.StatusBadRequest, "file uploads are not enabled")
			}
			rel, err := batch.Save(fh, folder)
			if err != nil {
				batch.Rollback()
				return batch, nil, err
			}
			if old := utils.FieldString(item, key); old != "" {
				replaced = append(replaced, old)
			}
			utils.SetField(item, key, rel)
		}
		return batch, replaced, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return batch, nil, Errorf(http.StatusBadRequest, "invalid form data: %v", err)
		}
		keep := res.snapshotUploads(item)
		if err := utils.DecodeForm(r.PostForm, item); err != nil {
			return batch, nil, Errorf(http.StatusBadRequest, "%v", err)
		}
		res.restoreUploads(item, keep)
		return batch, nil, nil
	}

	keep := res.snapshotUploads(item)
	body := http.MaxBytesReader(nil, r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(item); err != nil {
		if errors.Is(err, io.EOF) {
			return batch, nil, Errorf(http.StatusBadRequest, "request body is empty")
		}
		return batch, nil, Errorf(http.StatusBadRequest, "invalid JSON: %v", err)
	}
	res.restoreUploads(item, keep)
	return batch, nil, nil
}

func (res *Resource[T]) snapshotUploads(item *T) map[string]string {
	keep := make(map[string]string, len(res.Uploads))
	for key := range res.Uploads {
		keep[key] = utils.FieldString(item, key)
	}
	return keep
}

func (res *Resource[T]) restoreUploads(item *T, keep map[string]string) {
	for key, v := range keep {
		utils.SetField(item, key, v)
	}
}

// Fail maps storage and hook errors onto HTTP responses.
func (res *Resource[T]) Fail(w http.ResponseWriter, op string, err error) {
	WriteError(w, res.Name, op, err)
}

func WriteError(w http.ResponseWriter, name, op string, err error) {
	var he *Error
	switch {
	case errors.As(err, &he):
		utils.RespondWithError(w, he.Code, he.Msg)
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondWithError(w, http.StatusNotFound, name+" not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		utils.RespondWithError(w, http.StatusConflict, "a record with the same unique value already exists")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		utils.RespondWithError(w, http.StatusConflict, "referenced record is missing or still in use")
	case errors.Is(err, filemgr.ErrFileTooLarge):
		utils.RespondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, filemgr.ErrInvalidExtension), errors.Is(err, filemgr.ErrInvalidMIME):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondInternal(w, op, err)
	}
}
