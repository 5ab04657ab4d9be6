// Package httpapi exposes the read-only HTTP surface: liveness, the
// normalized question bank, and join QR codes for rooms.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"

	"quizcine-server/internal/app"
	"quizcine-server/internal/domain"
)

type Handler struct {
	questions app.QuestionRepository
}

func NewHandler(questions app.QuestionRepository) *Handler {
	return &Handler{questions: questions}
}

// Register mounts the HTTP routes on router. The websocket endpoint is passed
// in so transport wiring stays in one place.
func (h *Handler) Register(router *httprouter.Router, serveWS http.HandlerFunc) {
	router.GET("/", h.serveIndex)
	router.GET("/healthz", h.serveHealth)
	router.GET("/questions", h.serveQuestions)
	router.GET("/rooms/:code/qr", h.serveRoomQR)
	router.HandlerFunc(http.MethodGet, "/ws", serveWS)
}

func (h *Handler) serveIndex(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("QuizCine server OK"))
}

func (h *Handler) serveHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	_, _ = w.Write([]byte("ok"))
}

type questionsResponse struct {
	Questions []domain.Question `json:"questions"`
}

// serveQuestions returns the normalized bank. A broken content source yields
// an empty list, not an error page.
func (h *Handler) serveQuestions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	bank, err := h.questions.GetQuestions(r.Context())
	if err != nil {
		log.Printf("load questions: %v", err)
		bank = nil
	}
	if bank == nil {
		bank = []domain.Question{}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(questionsResponse{Questions: bank})
}

// serveRoomQR generates a PNG QR code for the room's join URL.
func (h *Handler) serveRoomQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := app.CanonicalCode(ps.ByName("code"))
	if code == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	url := scheme + "://" + r.Host + "/?room=" + code

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
