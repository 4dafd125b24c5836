package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/skip2/go-qrcode"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const qrSize = 320

// RoomsHandler serves read-only room information over plain HTTP.
type RoomsHandler struct {
	registry  *app.Registry
	publicURL string
	log       *slog.Logger
}

func NewRoomsHandler(registry *app.Registry, publicURL string, log *slog.Logger) *RoomsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RoomsHandler{registry: registry, publicURL: strings.TrimSuffix(publicURL, "/"), log: log}
}

// NewRouter mounts the websocket endpoint and the HTTP routes.
func NewRouter(ws *WSHandler, rooms *RoomsHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)
	r.Route("/rooms/{code}", func(r chi.Router) {
		r.Get("/", rooms.Info)
		r.Get("/qr", rooms.QR)
	})
	return r
}

func (h *RoomsHandler) Info(w http.ResponseWriter, r *http.Request) {
	room, err := h.registry.GetRoom(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, room.Info())
}

// QR renders a PNG QR code of the room's join link.
func (h *RoomsHandler) QR(w http.ResponseWriter, r *http.Request) {
	room, err := h.registry.GetRoom(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	png, err := qrcode.Encode(h.joinURL(r, room.Code()), qrcode.Medium, qrSize)
	if err != nil {
		h.log.Error("qr generation failed", "room", room.Code(), "err", err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (h *RoomsHandler) joinURL(r *http.Request, code string) string {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + url.QueryEscape(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		de = &domain.Error{Code: "internal", Message: "internal error"}
	}
	writeJSON(w, status, domain.ErrorPayload{Code: de.Code, Kind: de.Kind, Message: de.Message})
}
