// Package media manages the user-supplied files served next to the dashboard:
// desktop and mobile backgrounds, music and icons.
package media

import (
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"flatnas/apperrors"
	"flatnas/config"
	"flatnas/infrastructure/filestore"
	"flatnas/pkg/logger"
	"flatnas/pkg/metrics"
)

type Kind string

const (
	Backgrounds       Kind = "backgrounds"
	MobileBackgrounds Kind = "mobile_backgrounds"
	Music             Kind = "music"
	Icons             Kind = "icons"
)

type library struct {
	dir        string
	extensions map[string]bool
	// images are content-checked on upload.
	images bool
}

type Service struct {
	libraries    map[Kind]library
	files        *filestore.Store
	maxFileSize  int64
	maxDimension int
}

func NewService(storage config.StorageConfig, upload config.UploadConfig, files *filestore.Store) *Service {
	images := extensionSet(upload.ImageExtensions)
	return &Service{
		libraries: map[Kind]library{
			Backgrounds:       {dir: storage.BackgroundsDir, extensions: images, images: true},
			MobileBackgrounds: {dir: storage.MobileBackgroundsDir, extensions: images, images: true},
			Music:             {dir: storage.MusicDir, extensions: extensionSet(upload.MusicExtensions)},
			Icons:             {dir: storage.IconsDir, extensions: extensionSet(upload.IconExtensions), images: true},
		},
		files:        files,
		maxFileSize:  upload.MaxFileSize,
		maxDimension: upload.MaxImageDimension,
	}
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = true
	}
	return set
}

func (s *Service) library(kind Kind) (library, error) {
	lib, ok := s.libraries[kind]
	if !ok {
		return library{}, apperrors.NewBadRequest("Unknown media kind")
	}
	return lib, nil
}

// Dir returns the directory backing kind.
func (s *Service) Dir(kind Kind) string {
	return s.libraries[kind].dir
}

// List returns the file names of kind with an allowed extension. A missing or
// unreadable directory lists as empty.
func (s *Service) List(kind Kind) ([]string, error) {
	lib, err := s.library(kind)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(lib.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.WithFields(map[string]any{
				"kind": string(kind),
				"dir":  lib.dir,
			}).WithError(err).Warn("Failed to read media directory")
		}
		return []string{}, nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if lib.extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

type pendingFile struct {
	name string
	data []byte
}

// Upload stores every file of the multipart field. Files are reduced to their
// base name and validated before any of them is written.
func (s *Service) Upload(kind Kind, headers []*multipart.FileHeader) (int, error) {
	lib, err := s.library(kind)
	if err != nil {
		return 0, err
	}
	if len(headers) == 0 {
		return 0, apperrors.NewBadRequest("No files uploaded")
	}

	pending := make([]pendingFile, 0, len(headers))
	for _, fh := range headers {
		p, err := s.readUpload(lib, fh)
		if err != nil {
			metrics.RecordUpload(string(kind), false)
			return 0, err
		}
		pending = append(pending, p)
	}

	if err := os.MkdirAll(lib.dir, 0o755); err != nil {
		return 0, apperrors.NewStorageError("media_upload", lib.dir, err)
	}
	for i, p := range pending {
		path := filepath.Join(lib.dir, p.name)
		if err := s.files.WriteFile(path, p.data); err != nil {
			metrics.RecordUpload(string(kind), false)
			return i, apperrors.NewStorageError("media_upload", path, err)
		}
		metrics.RecordUpload(string(kind), true)
		logger.WithFields(map[string]any{
			"kind": string(kind),
			"file": p.name,
			"size": len(p.data),
		}).Info("Media file uploaded")
	}
	return len(pending), nil
}

func (s *Service) readUpload(lib library, fh *multipart.FileHeader) (pendingFile, error) {
	name := BaseName(fh.Filename)
	if name == "" {
		return pendingFile{}, apperrors.NewInvalidFilename()
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !lib.extensions[ext] {
		allowed := make([]string, 0, len(lib.extensions))
		for e := range lib.extensions {
			allowed = append(allowed, e)
		}
		return pendingFile{}, apperrors.NewInvalidFileType(allowed).WithDetails("filename", name)
	}

	if s.maxFileSize > 0 && fh.Size > s.maxFileSize {
		return pendingFile{}, apperrors.NewFileTooLarge(s.maxFileSize)
	}
	if fh.Size == 0 {
		return pendingFile{}, apperrors.NewValidationError("Empty file uploaded")
	}

	f, err := fh.Open()
	if err != nil {
		return pendingFile{}, apperrors.NewFileUploadError(name, "open failed", err)
	}
	defer f.Close()

	limit := s.maxFileSize
	if limit <= 0 {
		limit = fh.Size
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return pendingFile{}, apperrors.NewFileUploadError(name, "read failed", err)
	}
	if int64(len(data)) > limit {
		return pendingFile{}, apperrors.NewFileTooLarge(limit)
	}

	if lib.images {
		if err := validateImage(name, ext, data, s.maxDimension); err != nil {
			return pendingFile{}, err
		}
	}
	return pendingFile{name: name, data: data}, nil
}

// Delete removes filename from kind. Names that could leave the directory are
// rejected outright.
func (s *Service) Delete(kind Kind, filename string) error {
	lib, err := s.library(kind)
	if err != nil {
		return err
	}
	if !SafeName(filename) {
		return apperrors.NewInvalidFilename()
	}

	path := filepath.Join(lib.dir, filename)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperrors.NewFileNotFound(filename)
		}
		return apperrors.NewStorageError("media_delete", path, err)
	}

	logger.WithFields(map[string]any{
		"kind": string(kind),
		"file": filename,
	}).Info("Media file deleted")
	return nil
}

// SafeName reports whether name is a plain file name.
func SafeName(name string) bool {
	return name != "" &&
		!strings.Contains(name, "..") &&
		!strings.Contains(name, "/") &&
		!strings.Contains(name, "\\") &&
		!strings.ContainsRune(name, 0)
}

// BaseName strips any directory part a client put in an upload name,
// whichever separator it used.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, "\x00", "")
	if name == "." || name == ".." {
		return ""
	}
	return strings.TrimSpace(name)
}
