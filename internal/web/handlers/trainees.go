package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/scanin/scanin/internal/database"
	"github.com/scanin/scanin/internal/naming"
	"github.com/scanin/scanin/internal/recognizer"
)

// maxEnrollFrames bounds how many capture frames one enrollment may submit.
const maxEnrollFrames = 10

// TraineesHandler handles enrollment and trainee administration.
type TraineesHandler struct {
	store     database.TraineeWriter
	extractor Extractor
	dim       int
}

// NewTraineesHandler creates a new trainees handler
func NewTraineesHandler(store database.TraineeWriter, ext Extractor, dim int) *TraineesHandler {
	return &TraineesHandler{store: store, extractor: ext, dim: dim}
}

type registerRequest struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Frames []string `json:"frames"`
}

type traineeResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	RegisteredBy string    `json:"registered_by"`
	Templates    int       `json:"templates,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toTraineeResponse(t *database.Trainee) traineeResponse {
	return traineeResponse{
		ID:           t.ID,
		Name:         t.UniqueName,
		Email:        t.Email,
		RegisteredBy: t.RegisteredBy,
		CreatedAt:    t.CreatedAt,
	}
}

// extractTemplate decodes the capture frames, embeds them in parallel and
// averages the embeddings into a single reference template.
func (h *TraineesHandler) extractTemplate(r *http.Request, frames []string) ([]float32, error) {
	decoded := make([][]byte, len(frames))
	for i, f := range frames {
		data, err := decodeFrame(f)
		if err != nil {
			return nil, err
		}
		decoded[i] = data
	}

	embeddings := make([][]float32, len(decoded))
	g, ctx := errgroup.WithContext(r.Context())
	for i, data := range decoded {
		g.Go(func() error {
			emb, err := h.extractor.Extract(ctx, data)
			if err != nil {
				return err
			}
			embeddings[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return recognizer.Mean(embeddings), nil
}

func (h *TraineesHandler) register(w http.ResponseWriter, r *http.Request, registeredBy string) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	name := naming.Normalize(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Frames) == 0 {
		respondError(w, http.StatusBadRequest, "at least one capture frame is required")
		return
	}
	if len(req.Frames) > maxEnrollFrames {
		respondError(w, http.StatusBadRequest, "too many capture frames")
		return
	}

	embedding, err := h.extractTemplate(r, req.Frames)
	if err != nil {
		respondScanError(w, err)
		return
	}

	trainee := &database.Trainee{
		UniqueName:   name,
		Email:        strings.TrimSpace(req.Email),
		RegisteredBy: registeredBy,
	}
	template := &database.FaceTemplate{
		Embedding: embedding,
		Source:    "camera",
		Dim:       len(embedding),
	}

	if err := h.store.Create(r.Context(), trainee, template); err != nil {
		if errors.Is(err, database.ErrDuplicateName) {
			respondError(w, http.StatusConflict, "name already registered")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to enroll trainee")
		return
	}

	log.Printf("enrolled trainee %s (%s, %d frames)", sanitizeForLog(name), registeredBy, len(req.Frames))
	respondJSON(w, http.StatusCreated, toTraineeResponse(trainee))
}

// RegisterSelf handles kiosk self-enrollment.
func (h *TraineesHandler) RegisterSelf(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, "self")
}

// RegisterAdmin handles enrollment performed by an authenticated admin.
func (h *TraineesHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, "admin")
}

// List returns all enrolled trainees with their template counts.
func (h *TraineesHandler) List(w http.ResponseWriter, r *http.Request) {
	trainees, err := h.store.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list trainees")
		return
	}
	templates, err := h.store.AllTemplates(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list trainees")
		return
	}

	counts := make(map[int64]int)
	for _, tmpl := range templates {
		counts[tmpl.TraineeID]++
	}

	out := make([]traineeResponse, 0, len(trainees))
	for i := range trainees {
		resp := toTraineeResponse(&trainees[i])
		resp.Templates = counts[trainees[i].ID]
		out = append(out, resp)
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns one trainee.
func (h *TraineesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := traineeID(w, r)
	if !ok {
		return
	}

	trainee, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrTraineeNotFound) {
			respondError(w, http.StatusNotFound, "trainee not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load trainee")
		return
	}
	respondJSON(w, http.StatusOK, toTraineeResponse(trainee))
}

// Delete removes a trainee together with its templates and attendance rows.
func (h *TraineesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := traineeID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrTraineeNotFound) {
			respondError(w, http.StatusNotFound, "trainee not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete trainee")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type templateResponse struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Dim       int       `json:"dim"`
	CreatedAt time.Time `json:"created_at"`
}

// Templates lists the reference templates owned by a trainee. Embedding
// vectors stay server-side; only metadata is exposed.
func (h *TraineesHandler) Templates(w http.ResponseWriter, r *http.Request) {
	id, ok := traineeID(w, r)
	if !ok {
		return
	}

	if _, err := h.store.Get(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrTraineeNotFound) {
			respondError(w, http.StatusNotFound, "trainee not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load trainee")
		return
	}

	templates, err := h.store.TemplatesByTrainee(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}

	out := make([]templateResponse, 0, len(templates))
	for _, tmpl := range templates {
		out = append(out, templateResponse{
			ID:        tmpl.ID,
			Source:    tmpl.Source,
			Dim:       tmpl.Dim,
			CreatedAt: tmpl.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

type addTemplateRequest struct {
	Frames []string `json:"frames"`
}

// AddTemplate appends an extra reference template to an existing trainee.
func (h *TraineesHandler) AddTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := traineeID(w, r)
	if !ok {
		return
	}

	var req addTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Frames) == 0 || len(req.Frames) > maxEnrollFrames {
		respondError(w, http.StatusBadRequest, "between 1 and 10 capture frames required")
		return
	}

	embedding, err := h.extractTemplate(r, req.Frames)
	if err != nil {
		respondScanError(w, err)
		return
	}

	template := &database.FaceTemplate{
		TraineeID: id,
		Embedding: embedding,
		Source:    "upload",
		Dim:       len(embedding),
	}
	if err := h.store.AddTemplate(r.Context(), template); err != nil {
		if errors.Is(err, database.ErrTraineeNotFound) {
			respondError(w, http.StatusNotFound, "trainee not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to add template")
		return
	}

	respondJSON(w, http.StatusCreated, templateResponse{
		ID:        template.ID,
		Source:    template.Source,
		Dim:       template.Dim,
		CreatedAt: template.CreatedAt,
	})
}

func traineeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid trainee id")
		return 0, false
	}
	return id, true
}
