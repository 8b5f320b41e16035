// Package storage streams uploads to the local upload directory and reads
// them back, decrypting certificates stored encrypted at rest.
package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Kind int

const (
	KindCertificate Kind = iota
	KindPhoto
)

const (
	sniffLen = 3072
	// Certificates are sealed in memory, so encrypted intake has its own bound.
	maxSealBytes = 64 << 20
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

var photoExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true, ".avif": true}

type SavedFile struct {
	Field        string
	OriginalName string
	Ref          string
	Mimetype     string
	Size         int64
	SHA256       string
	Envelope     *Envelope
}

type Storage struct {
	dir          string
	key          []byte
	encryptCerts bool
	logger       *logrus.Logger
	now          func() time.Time
}

func New(dir string, key []byte, encryptCerts bool, logger *logrus.Logger) (*Storage, error) {
	if encryptCerts && len(key) == 0 {
		return nil, ErrNoKey
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir upload dir: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Storage{dir: dir, key: key, encryptCerts: encryptCerts, logger: logger, now: time.Now}, nil
}

func (s *Storage) Dir() string { return s.dir }

// Save streams r into a new file under the upload directory. The declared
// content type is trusted when specific; otherwise the type is sniffed.
func (s *Storage) Save(r io.Reader, field, originalName, declaredType string, kind Kind) (SavedFile, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return SavedFile{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	mt := baseType(declaredType)
	if mt == "" || mt == "application/octet-stream" {
		mt = baseType(mimetype.Detect(head).String())
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if err := accept(kind, mt, ext); err != nil {
		return SavedFile{}, err
	}

	name := s.fileName(originalName, storedExt(kind, mt, ext))
	abs := filepath.Join(s.dir, name)
	body := io.MultiReader(bytes.NewReader(head), r)

	out := SavedFile{Field: field, OriginalName: originalName, Ref: RefPrefix + name, Mimetype: mt}
	if kind == KindCertificate && s.encryptCerts {
		err = s.writeSealed(abs, body, &out)
	} else {
		err = writePlain(abs, body, &out)
	}
	if err != nil {
		_ = os.Remove(abs)
		return SavedFile{}, err
	}
	return out, nil
}

func writePlain(abs string, body io.Reader, out *SavedFile) error {
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, h), body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write upload: %w", err)
	}
	out.Size = size
	out.SHA256 = hex.EncodeToString(h.Sum(nil))
	return nil
}

func (s *Storage) writeSealed(abs string, body io.Reader, out *SavedFile) error {
	var buf bytes.Buffer
	size, err := io.Copy(&buf, io.LimitReader(body, maxSealBytes+1))
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}
	if size > maxSealBytes {
		return ErrTooLarge
	}
	sum := sha256.Sum256(buf.Bytes())
	ct, env, err := Seal(s.key, buf.Bytes())
	if err != nil {
		return fmt.Errorf("encrypt certificate: %w", err)
	}
	if err := os.WriteFile(abs, ct, 0o640); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	out.Size = size
	out.SHA256 = hex.EncodeToString(sum[:])
	out.Envelope = &env
	return nil
}

func accept(kind Kind, mt, ext string) error {
	switch kind {
	case KindCertificate:
		if strings.Contains(mt, "pdf") || ext == ".pdf" {
			return nil
		}
		return fmt.Errorf("%w: certificate must be a PDF", ErrUnsupportedType)
	case KindPhoto:
		if strings.HasPrefix(mt, "image/") || photoExts[ext] {
			return nil
		}
		return fmt.Errorf("%w: photos must be images", ErrUnsupportedType)
	}
	return ErrUnsupportedType
}

// storedExt picks the on-disk extension from the accepted type. The client
// extension is only used for photos whose type has no registered extension.
func storedExt(kind Kind, mt, ext string) string {
	if kind == KindCertificate {
		return ".pdf"
	}
	if strings.HasPrefix(mt, "image/") {
		if m := mimetype.Lookup(mt); m != nil && m.Extension() != "" {
			return m.Extension()
		}
	}
	if photoExts[ext] {
		return ext
	}
	return ""
}

func baseType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(ct)
}

// fileName builds "<unix ms>_<8 hex>_<sanitized base><ext>".
func (s *Storage) fileName(originalName, ext string) string {
	base := strings.TrimSuffix(filepath.Base(strings.ReplaceAll(originalName, `\`, "/")), filepath.Ext(originalName))
	base = unsafeName.ReplaceAllString(base, "_")
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" || base == "_" {
		base = "file"
	}
	return fmt.Sprintf("%d_%s_%s%s", s.now().UnixMilli(), uuid.NewString()[:8], base, ext)
}

// OpenPlain opens a stored file for streaming.
func (s *Storage) OpenPlain(ref string) (*os.File, error) {
	abs, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(abs)
}

// ReadSealed reads and decrypts an encrypted certificate in full, so a tag
// mismatch is detected before any byte reaches the caller.
func (s *Storage) ReadSealed(ref string, env Envelope) ([]byte, error) {
	if len(s.key) == 0 {
		return nil, ErrNoKey
	}
	abs, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	ct, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return Open(s.key, ct, env)
}

func (s *Storage) Remove(ref string) error {
	abs, err := s.Resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveAll deletes every ref, logging and skipping failures.
func (s *Storage) RemoveAll(refs []string) int {
	removed := 0
	for _, ref := range refs {
		if err := s.Remove(ref); err != nil {
			s.logger.WithFields(logrus.Fields{"ref": ref, "error": err.Error()}).Warn("file removal failed")
			continue
		}
		removed++
	}
	return removed
}

type StoredFile struct {
	Ref     string
	Size    int64
	ModTime time.Time
}

// List returns the regular files in the upload directory.
func (s *Storage) List() ([]StoredFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]StoredFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, StoredFile{Ref: RefPrefix + e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}
