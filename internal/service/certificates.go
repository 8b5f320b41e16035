package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/sirupsen/logrus"

	"ximoveis/internal/auth"
	"ximoveis/internal/models"
	"ximoveis/internal/storage"
	"ximoveis/internal/store"
)

const defaultCertificateType = "application/pdf"

// CertificateFile is a certificate ready to be written to a response.
type CertificateFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// OwnerCertificate returns the latest certificate of a property the caller
// owns (or shares an agency with).
func (s *Service) OwnerCertificate(ctx context.Context, id auth.Identity, propertyID int64) (CertificateFile, error) {
	if err := s.authorizeOwner(ctx, id, propertyID); err != nil {
		return CertificateFile{}, err
	}
	return s.openLatestCertificate(ctx, propertyID)
}

func (s *Service) AdminCertificate(ctx context.Context, id auth.Identity, propertyID int64) (CertificateFile, error) {
	if err := requireAdmin(id); err != nil {
		return CertificateFile{}, err
	}
	return s.openLatestCertificate(ctx, propertyID)
}

// openLatestCertificate opens the authoritative certificate. Encrypted files
// are decrypted and authenticated in full before anything is returned.
func (s *Service) openLatestCertificate(ctx context.Context, propertyID int64) (CertificateFile, error) {
	c, err := s.st.LatestCertificate(ctx, propertyID)
	if errors.Is(err, store.ErrNotFound) {
		return CertificateFile{}, fmt.Errorf("%w: certificate not found", ErrNotFound)
	}
	if err != nil {
		return CertificateFile{}, err
	}
	out := CertificateFile{Name: c.Filename, ContentType: c.Mimetype}
	if out.ContentType == "" {
		out.ContentType = defaultCertificateType
	}

	if c.Encrypted {
		plain, err := s.files.ReadSealed(c.Path, envelopeOf(c))
		if err != nil {
			s.log.WithFields(logrus.Fields{"property_id": propertyID, "certificate_id": c.ID, "error": err.Error()}).Error("certificate decryption failed")
			return CertificateFile{}, fmt.Errorf("decrypt certificate: %w", err)
		}
		out.Size = int64(len(plain))
		out.Body = io.NopCloser(bytes.NewReader(plain))
		return out, nil
	}

	f, err := s.files.OpenPlain(c.Path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, storage.ErrBadPath) {
		return CertificateFile{}, fmt.Errorf("%w: certificate file missing", ErrNotFound)
	}
	if err != nil {
		return CertificateFile{}, err
	}
	if info, err := f.Stat(); err == nil {
		out.Size = info.Size()
	}
	out.Body = f
	return out, nil
}

func envelopeOf(c models.Certificate) storage.Envelope {
	var env storage.Envelope
	if c.EncAlgo != nil {
		env.Algo = *c.EncAlgo
	}
	if c.EncIV != nil {
		env.IV = *c.EncIV
	}
	if c.EncAuthTag != nil {
		env.Tag = *c.EncAuthTag
	}
	return env
}
