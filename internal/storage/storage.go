// Package storage persists uploads and their annotated copies on disk.
// Files are keyed by generated identifiers; the client's filename is kept
// only as display metadata and never touches the filesystem.
package storage

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var ErrInvalidID = errors.New("invalid file identifier")

// DefaultExt is used when the uploaded name has no recognised image
// extension. Decoders sniff content, so the extension only matters for the
// annotated copy's encoder.
const DefaultExt = ".png"

var imageExts = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".png":  ".png",
	".bmp":  ".bmp",
	".webp": ".webp",
}

var idPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(jpg|png|bmp|webp)$`)

type Store struct {
	uploadDir    string
	annotatedDir string
}

// Upload describes a stored original.
type Upload struct {
	ID       string
	Filename string
	Path     string
	Size     int64
}

// New creates both directories if needed.
func New(uploadDir, annotatedDir string) (*Store, error) {
	for _, dir := range []string{uploadDir, annotatedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}
	return &Store{uploadDir: uploadDir, annotatedDir: annotatedDir}, nil
}

func (s *Store) UploadDir() string    { return s.uploadDir }
func (s *Store) AnnotatedDir() string { return s.annotatedDir }

// NewID returns a fresh identifier that keeps the image type of filename.
func NewID(filename string) string {
	ext, ok := imageExts[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		ext = DefaultExt
	}
	return uuid.NewString() + ext
}

// ValidID reports whether id has the shape produced by NewID.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// SaveUpload copies r into the upload directory under a new identifier.
func (s *Store) SaveUpload(filename string, r io.Reader) (Upload, error) {
	id := NewID(filename)
	path := filepath.Join(s.uploadDir, id)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Upload{}, errors.Wrap(err, "create upload file")
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return Upload{}, errors.Wrapf(err, "write upload %s", filename)
	}

	return Upload{ID: id, Filename: filename, Path: path, Size: n}, nil
}

// AnnotatedPath is where the annotated copy of id lives.
func (s *Store) AnnotatedPath(id string) (string, error) {
	if !ValidID(id) {
		return "", ErrInvalidID
	}
	return filepath.Join(s.annotatedDir, id), nil
}

// WriteAnnotated encodes img into the annotated directory.
func (s *Store) WriteAnnotated(id string, img gocv.Mat) (string, error) {
	path, err := s.AnnotatedPath(id)
	if err != nil {
		return "", err
	}
	if !gocv.IMWrite(path, img) {
		return "", errors.Errorf("encode annotated image %s", path)
	}
	return path, nil
}
