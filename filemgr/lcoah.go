package filemgr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// Store writes uploads below Root and hands back slash-separated paths
// relative to it, which is what the database keeps.
type Store struct {
	Root      string
	URLPrefix string
	MaxSize   int64
}

func NewStore(root string, maxSize int64) *Store {
	return &Store{Root: root, URLPrefix: "/static/uploads", MaxSize: maxSize}
}

// SaveFile validates and writes one upload into folder.
func (s *Store) SaveFile(reader io.Reader, filename, formMIME string, folder Folder) (string, error) {
	kind, ok := folderKinds[folder]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFolder, folder)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(AllowedExtensions[kind], ext) {
		return "", fmt.Errorf("%w: %q for %s", ErrInvalidExtension, ext, kind)
	}

	limit := s.MaxSize
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return "", ErrFileTooLarge
	}

	mimeType := http.DetectContentType(data)
	if mimeType == "application/octet-stream" && formMIME != "" {
		mimeType = formMIME
	}
	mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	if !slices.Contains(AllowedMIMEs[kind], mimeType) {
		return "", fmt.Errorf("%w: %s for %s", ErrInvalidMIME, mimeType, kind)
	}

	var img image.Image
	if strings.HasPrefix(mimeType, "image/") {
		if decoded, _, err := image.Decode(bytes.NewReader(data)); err == nil {
			img = decoded
			if mimeType == "image/jpeg" {
				if stripped, err := stripEXIF(img); err == nil {
					data = stripped
				}
			}
		}
	}

	rel := path.Join(string(folder), uuid.NewString()+ext)
	if err := s.write(rel, data); err != nil {
		return "", err
	}

	if img != nil {
		if err := s.generateThumbnail(img, rel); err != nil {
			log.Printf("thumbnail for %s: %v", rel, err)
		}
	}
	return rel, nil
}

// SaveHeader opens a multipart file and saves it.
func (s *Store) SaveHeader(fh *multipart.FileHeader, folder Folder) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return s.SaveFile(f, fh.Filename, fh.Header.Get("Content-Type"), folder)
}

// Copy duplicates an existing upload into folder under a fresh name.
func (s *Store) Copy(rel string, folder Folder) (string, error) {
	if _, ok := folderKinds[folder]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFolder, folder)
	}
	src, err := s.Path(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}

	dst := path.Join(string(folder), uuid.NewString()+strings.ToLower(path.Ext(rel)))
	if err := s.write(dst, data); err != nil {
		return "", err
	}
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		if err := s.generateThumbnail(img, dst); err != nil {
			log.Printf("thumbnail for %s: %v", dst, err)
		}
	}
	return dst, nil
}

// Remove deletes an upload and its thumbnail. Missing files are not an error.
func (s *Store) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	if t, err := s.Path(thumbPath(rel)); err == nil {
		os.Remove(t)
	}
	return nil
}

// Exists reports whether rel names a stored file.
func (s *Store) Exists(rel string) bool {
	p, err := s.Path(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// Path resolves rel to a filesystem path inside Root.
func (s *Store) Path(rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" {
		return "", ErrOutsideRoot
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean[1:])), nil
}

// URL is the public address of rel, or "" for no file.
func (s *Store) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return s.URLPrefix + "/" + strings.TrimPrefix(rel, "/")
}

func (s *Store) write(rel string, data []byte) error {
	full, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("create %s: %w", full, err)
	}
	return nil
}

func stripEXIF(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(90))
	return buf.Bytes(), err
}

func thumbPath(rel string) string {
	dir, name := path.Split(rel)
	return path.Join(dir, thumbDir, strings.TrimSuffix(name, path.Ext(name))+".jpg")
}

// ThumbURL is the public address of the thumbnail generated for rel, or ""
// when rel has none (documents, undecodable images).
func (s *Store) ThumbURL(rel string) string {
	if rel == "" || !s.Exists(thumbPath(rel)) {
		return ""
	}
	return s.URL(thumbPath(rel))
}

func (s *Store) generateThumbnail(img image.Image, rel string) error {
	resized := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	full, err := s.Path(thumbPath(rel))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(full), err)
	}
	if err := imaging.Save(resized, full, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}

// Batch tracks files saved during one request so a failed write can undo them.
type Batch struct {
	store *Store
	saved []string
}

func (s *Store) NewBatch() *Batch {
	return &Batch{store: s}
}

func (b *Batch) Save(fh *multipart.FileHeader, folder Folder) (string, error) {
	rel, err := b.store.SaveHeader(fh, folder)
	if err != nil {
		return "", err
	}
	b.saved = append(b.saved, rel)
	return rel, nil
}

func (b *Batch) Copy(rel string, folder Folder) (string, error) {
	dst, err := b.store.Copy(rel, folder)
	if err != nil {
		return "", err
	}
	b.saved = append(b.saved, dst)
	return dst, nil
}

// Rollback removes everything the batch saved.
func (b *Batch) Rollback() {
	for _, rel := range b.saved {
		if err := b.store.Remove(rel); err != nil {
			log.Printf("rollback remove %s: %v", rel, err)
		}
	}
	b.saved = nil
}

// FormFile returns the first file under key, or nil.
func FormFile(form *multipart.Form, key string) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	if files := form.File[key]; len(files) > 0 {
		return files[0]
	}
	return nil
}
