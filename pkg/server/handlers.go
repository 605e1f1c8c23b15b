package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/retail-ai-inc/savegame/pkg/identity"
	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/sirupsen/logrus"
)

const (
	LoadSavePath = "/loadSave"
	SaveSavePath = "/saveSave"

	// maxBodyBytes caps a SaveSave request body.
	maxBodyBytes = 1 << 20
)

// Handlers exposes the LoadSave and SaveSave functions over HTTP. Both always
// answer 200 with an envelope; failures are reported in its code and msg.
type Handlers struct {
	Service  *savegame.Service
	Resolver identity.Resolver
	Logger   *logrus.Logger
}

type saveRequest struct {
	SaveData any `json:"saveData"`
}

func (h *Handlers) AddHandlers(r *mux.Router) {
	r.HandleFunc(LoadSavePath, h.loadSave).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc(SaveSavePath, h.saveSave).Methods(http.MethodPost)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)
}

// methodNotAllowed keeps the envelope shape on a wrong method; the status
// stays 405 so gateways can tell routing errors from function failures.
func (h *Handlers) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusMethodNotAllowed, savegame.SaveResponse{
		Code: savegame.CodeFail,
		Msg:  "method not allowed",
	})
}

func (h *Handlers) loadSave(w http.ResponseWriter, r *http.Request) {
	id, _ := h.Resolver.Resolve(r)
	h.writeJSON(w, http.StatusOK, h.Service.Load(r.Context(), id))
}

func (h *Handlers) saveSave(w http.ResponseWriter, r *http.Request) {
	id, _ := h.Resolver.Resolve(r)

	// An unreadable body is a missing saveData; identity is still checked
	// first by the service.
	var req saveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.Logger.WithError(err).Debug("Failed to decode saveSave body")
		req.SaveData = nil
	}
	h.writeJSON(w, http.StatusOK, h.Service.Save(r.Context(), id, req.SaveData))
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.WithError(err).Error("Failed to write response")
	}
}
