package api

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"ximoveis/internal/auth"
	"ximoveis/internal/middleware"
	"ximoveis/internal/search"
	"ximoveis/internal/service"
	"ximoveis/internal/util"
)

func (h *Handlers) ListProperties(w http.ResponseWriter, r *http.Request) {
	c, err := search.Parse(r.URL.Query())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	items, err := h.svc.Search(r.Context(), c)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, items)
}

func (h *Handlers) MapProperties(w http.ResponseWriter, r *http.Request) {
	c, err := search.Parse(r.URL.Query())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	items, err := h.svc.Map(r.Context(), c)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, items)
}

func (h *Handlers) GetProperty(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var viewer *auth.Identity
	if id, ok := middleware.Identity(r.Context()); ok {
		viewer = &id
	}
	d, err := h.svc.Detail(r.Context(), viewer, pid)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, d)
}

func (h *Handlers) ListMine(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	items, err := h.svc.ListMine(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, items)
}

func (h *Handlers) CreateProperty(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	up, err := h.readUpload(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	res, err := h.svc.CreateProperty(r.Context(), id, up)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 201, res)
}

func (h *Handlers) EditProperty(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req service.PatchRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeErr(w, r, err)
		return
	}
	res, err := h.svc.EditByOwner(r.Context(), id, pid, req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"ok": true, "id": res.ID, "status": res.Status})
}

func (h *Handlers) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id, pid); err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]bool{"ok": true})
}

func (h *Handlers) OwnerCertificate(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	f, err := h.svc.OwnerCertificate(r.Context(), id, pid)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.streamCertificate(w, r, pid, f)
}

func (h *Handlers) streamCertificate(w http.ResponseWriter, r *http.Request, pid int64, f service.CertificateFile) {
	defer f.Body.Close()
	w.Header().Set("Content-Type", f.ContentType)
	if f.Name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": f.Name}))
	}
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f.Body); err != nil {
		h.log.WithFields(logrus.Fields{
			"request_id":  middleware.RequestID(r.Context()),
			"property_id": pid,
			"error":       err.Error(),
		}).Warn("certificate stream interrupted")
	}
}

type coverRequest struct {
	ImagePath string `json:"image_path"`
	Filename  string `json:"filename"`
	Image     string `json:"image"`
}

func (c coverRequest) ref() string {
	for _, v := range []string{c.ImagePath, c.Filename, c.Image} {
		if v != "" {
			return v
		}
	}
	return ""
}

// SetCover serves both the owner and the admin route; admins pass the
// ownership check.
func (h *Handlers) SetCover(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req coverRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.writeErr(w, r, err)
		return
	}
	cover, err := h.svc.SetCover(r.Context(), id, pid, req.ref())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"ok": true, "cover": cover})
}

func (h *Handlers) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.svc.ServablePhoto(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, abs)
}
