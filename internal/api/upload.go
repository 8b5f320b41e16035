package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"ximoveis/internal/service"
	"ximoveis/internal/storage"
)

const maxFieldBytes = 64 << 10

// readUpload streams a listing form part by part. Files go straight to
// storage; text fields are collected into the form. On error every file
// already written is removed.
func (h *Handlers) readUpload(r *http.Request) (up service.Upload, err error) {
	files := h.svc.Files()
	up.Form = url.Values{}
	defer func() {
		if err != nil {
			files.RemoveAll(up.Refs())
			up = service.Upload{}
		}
	}()

	mr, err := r.MultipartReader()
	if err != nil {
		return up, fmt.Errorf("%w: expected multipart/form-data", service.ErrValidation)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return up, nil
		}
		if err != nil {
			return up, fmt.Errorf("read multipart: %w", err)
		}
		err = h.readPart(part, &up)
		part.Close()
		if err != nil {
			return up, err
		}
	}
}

func (h *Handlers) readPart(part *multipart.Part, up *service.Upload) error {
	name := part.FormName()
	if part.FileName() == "" {
		v, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		if err != nil {
			return fmt.Errorf("read field %s: %w", name, err)
		}
		if len(v) > maxFieldBytes {
			return fmt.Errorf("%w: field %s is too long", service.ErrValidation, name)
		}
		if name != "" {
			up.Form.Add(name, string(v))
		}
		return nil
	}

	save := func(kind storage.Kind) (*storage.SavedFile, error) {
		f, err := h.svc.Files().Save(part, name, part.FileName(), part.Header.Get("Content-Type"), kind)
		if err != nil {
			return nil, err
		}
		return &f, nil
	}
	switch name {
	case "certidao":
		if up.Certificate != nil {
			return fmt.Errorf("%w: only one certificate may be sent", service.ErrValidation)
		}
		f, err := save(storage.KindCertificate)
		if err != nil {
			return err
		}
		up.Certificate = f
	case "cover":
		if up.Cover != nil {
			return fmt.Errorf("%w: only one cover may be sent", service.ErrValidation)
		}
		f, err := save(storage.KindPhoto)
		if err != nil {
			return err
		}
		up.Cover = f
	case "photos", "photos[]":
		if len(up.Photos) >= h.cfg.MaxPhotos {
			return fmt.Errorf("%w: at most %d photos", service.ErrValidation, h.cfg.MaxPhotos)
		}
		f, err := save(storage.KindPhoto)
		if err != nil {
			return err
		}
		up.Photos = append(up.Photos, *f)
	default:
		if _, err := io.Copy(io.Discard, part); err != nil {
			return fmt.Errorf("drain %s: %w", name, err)
		}
	}
	return nil
}
