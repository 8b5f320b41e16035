package api

import (
	"net/http"

	"ximoveis/internal/middleware"
	"ximoveis/internal/search"
	"ximoveis/internal/service"
	"ximoveis/internal/util"
)

func (h *Handlers) AdminPending(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	items, err := h.svc.ListPending(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, items)
}

func (h *Handlers) AdminList(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	c, err := search.Parse(r.URL.Query())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	items, err := h.svc.ListAdmin(r.Context(), id, c)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, items)
}

func (h *Handlers) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	d, err := h.svc.AdminDetail(r.Context(), id, pid)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, d)
}

func (h *Handlers) AdminPhotos(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	photos, err := h.svc.AdminPhotos(r.Context(), id, pid)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, photos)
}

type reviewRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

func (h *Handlers) AdminApprove(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.writeErr(w, r, err)
		return
	}
	res, err := h.svc.Approve(r.Context(), id, pid, req.Notes)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"ok": true, "id": res.ID, "status": res.Status})
}

func (h *Handlers) AdminReject(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.writeErr(w, r, err)
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = req.Notes
	}
	res, err := h.svc.Reject(r.Context(), id, pid, reason)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"ok": true, "id": res.ID, "status": res.Status})
}

func (h *Handlers) AdminEdit(w http.ResponseWriter, r *http.Request) {
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
	res, err := h.svc.EditByAdmin(r.Context(), id, pid, req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"ok": true, "id": res.ID, "status": res.Status})
}

func (h *Handlers) AdminAnnotate(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := h.svc.AddAnnotation(r.Context(), id, pid, req.Note); err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]bool{"ok": true})
}

func (h *Handlers) AdminCertificate(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	pid, err := pathID(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	f, err := h.svc.AdminCertificate(r.Context(), id, pid)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.streamCertificate(w, r, pid, f)
}

func (h *Handlers) AdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, users)
}
