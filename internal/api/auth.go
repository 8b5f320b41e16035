package api

import (
	"net/http"

	"ximoveis/internal/service"
	"ximoveis/internal/util"
)

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeErr(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 200, res)
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeErr(w, r, err)
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	util.WriteJSON(w, 201, res)
}
