package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/domain"
)

// Handler exposes the attempt use cases over REST.
type Handler struct {
	service  *app.AttemptService
	validate *validator.Validate
}

func NewHandler(service *app.AttemptService) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// NewRouter mounts the REST routes, the websocket endpoint and the health check.
func NewRouter(h *Handler, ws *WSHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if ws != nil {
		r.Get("/ws", ws.ServeWS)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/subjects", h.RegisterSubject)
		r.Route("/subjects/{subjectID}/quizzes/{quizID}", func(r chi.Router) {
			r.Get("/", h.Overview)
			r.Post("/attempts", h.StartAttempt)
			r.Get("/attempts/active", h.PresentAttempt)
			r.Post("/attempts/active/submit", h.SubmitAttempt)
			r.Post("/attempts/{number}/abandon", h.AbandonAttempt)
			r.Get("/attempts/{number}/review", h.ReviewAttempt)
		})
	})
	return r
}

type registerRequest struct {
	ID   string             `json:"id" validate:"required"`
	Kind domain.SubjectKind `json:"kind" validate:"required,oneof=student guest"`
}

type submitRequest struct {
	Answers   map[string]string `json:"answers"`
	TimeSpent int               `json:"timeSpent" validate:"gte=0"`
}

func (h *Handler) RegisterSubject(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	subject, err := h.service.RegisterSubject(r.Context(), req.ID, req.Kind)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.service.Overview(r.Context(), chi.URLParam(r, "subjectID"), chi.URLParam(r, "quizID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// StartAttempt answers 201 for a new attempt and 200 when one was resumed.
func (h *Handler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.BeginAttempt(r.Context(), chi.URLParam(r, "subjectID"), chi.URLParam(r, "quizID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	status := http.StatusOK
	if res.IsNewAttempt {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (h *Handler) PresentAttempt(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.PresentAttempt(r.Context(), chi.URLParam(r, "subjectID"), chi.URLParam(r, "quizID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.service.SubmitAttempt(r.Context(), chi.URLParam(r, "subjectID"), chi.URLParam(r, "quizID"), req.Answers, req.TimeSpent)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AbandonAttempt(w http.ResponseWriter, r *http.Request) {
	n, ok := attemptNumber(w, r)
	if !ok {
		return
	}
	a, err := h.service.AbandonAttempt(r.Context(), chi.URLParam(r, "subjectID"), chi.URLParam(r, "quizID"), n)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) ReviewAttempt(w http.ResponseWriter, r *http.Request) {
	n, ok := attemptNumber(w, r)
	if !ok {
		return
	}
	rv, err := h.service.ReviewAttempt(r.Context(), chi.URLParam(r, "subjectID"), chi.URLParam(r, "quizID"), n)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func attemptNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || n < 1 {
		writeErr(w, http.StatusBadRequest, "invalid attempt number")
		return 0, false
	}
	return n, true
}

type errResp struct {
	Error  string              `json:"error"`
	Reason domain.DenialReason `json:"reason,omitempty"`
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, errResp) {
	var denied *domain.PolicyViolationError
	switch {
	case errors.As(err, &denied):
		return http.StatusForbidden, errResp{Error: denied.Reason.Message(), Reason: denied.Reason}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errResp{Error: err.Error()}
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrSubjectExists):
		return http.StatusConflict, errResp{Error: err.Error()}
	case errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusUnprocessableEntity, errResp{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errResp{Error: "internal error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}
