package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/scanin/scanin/internal/attendance"
	"github.com/scanin/scanin/internal/database"
	"github.com/scanin/scanin/internal/recognizer"
)

// Extractor computes the face embedding for a captured frame.
type Extractor interface {
	Extract(ctx context.Context, frame []byte) ([]float32, error)
}

// LivenessGate screens a frame before recognition runs.
type LivenessGate interface {
	AssertLive(ctx context.Context, frame []byte, failClosed bool) error
}

// ScanHandler handles the kiosk scan endpoints: check-in, check-out and
// identification without a ledger write.
type ScanHandler struct {
	trainees  database.TraineeReader
	service   *attendance.Service
	policies  database.PolicyStore
	extractor Extractor
	gate      LivenessGate

	now func() time.Time
}

// NewScanHandler creates a new scan handler
func NewScanHandler(trainees database.TraineeReader, service *attendance.Service, policies database.PolicyStore, ext Extractor, gate LivenessGate) *ScanHandler {
	return &ScanHandler{
		trainees:  trainees,
		service:   service,
		policies:  policies,
		extractor: ext,
		gate:      gate,
		now:       time.Now,
	}
}

type scanRequest struct {
	Frame string `json:"frame"`
}

type scanData struct {
	Action      string    `json:"action"`
	TraineeID   int64     `json:"trainee_id"`
	TraineeName string    `json:"trainee_name"`
	Similarity  float64   `json:"similarity"`
	Status      string    `json:"status,omitempty"`
	Time        time.Time `json:"time"`
	RecordID    int64     `json:"record_id,omitempty"`
}

type scanResponse struct {
	Success bool     `json:"success"`
	Data    scanData `json:"data"`
	Message string   `json:"message"`
}

// recognize runs the shared pipeline: liveness gate, embedding extraction and
// the exact match against all enrolled templates. The policy is read fresh so
// threshold and liveness settings apply immediately after an edit.
func (h *ScanHandler) recognize(ctx context.Context, frame []byte) (*database.Trainee, float64, error) {
	policy, err := h.policies.Get(ctx)
	if err != nil {
		return nil, 0, err
	}

	if policy.LivenessCheckEnabled {
		if err := h.gate.AssertLive(ctx, frame, policy.LivenessFailClosed); err != nil {
			return nil, 0, err
		}
	}

	embedding, err := h.extractor.Extract(ctx, frame)
	if err != nil {
		return nil, 0, err
	}

	// Enrollment order; ties go to the earliest enrolled template.
	templates, err := h.trainees.AllTemplates(ctx)
	if err != nil {
		return nil, 0, err
	}

	traineeID, score, err := recognizer.Match(embedding, templates, policy.SimilarityThreshold)
	if err != nil {
		return nil, score, err
	}

	trainee, err := h.trainees.Get(ctx, traineeID)
	if err != nil {
		return nil, score, err
	}
	return trainee, score, nil
}

func (h *ScanHandler) decodeScanRequest(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return nil, "", false
	}
	frame, err := decodeFrame(req.Frame)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, "", false
	}
	return frame, req.Frame, true
}

// Checkin handles the combined kiosk scan: the first scan of the day opens the
// record, the second closes it, a third is rejected.
func (h *ScanHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	frame, image, ok := h.decodeScanRequest(w, r)
	if !ok {
		return
	}

	trainee, score, err := h.recognize(r.Context(), frame)
	if err != nil {
		respondScanError(w, err)
		return
	}

	result, err := h.service.RecordScan(r.Context(), trainee, h.now(), image)
	if err != nil {
		respondScanError(w, err)
		return
	}

	log.Printf("scan: %s %s (similarity %.3f)", result.Action, sanitizeForLog(trainee.UniqueName), score)
	respondJSON(w, http.StatusOK, scanResult(result, trainee, score))
}

// Checkout handles the explicit check-out scan.
func (h *ScanHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	frame, image, ok := h.decodeScanRequest(w, r)
	if !ok {
		return
	}

	trainee, score, err := h.recognize(r.Context(), frame)
	if err != nil {
		respondScanError(w, err)
		return
	}

	result, err := h.service.RecordCheckout(r.Context(), trainee, h.now(), image)
	if err != nil {
		respondScanError(w, err)
		return
	}

	log.Printf("scan: checkout %s (similarity %.3f)", sanitizeForLog(trainee.UniqueName), score)
	respondJSON(w, http.StatusOK, scanResult(result, trainee, score))
}

// Identify runs the full recognition pipeline without touching the ledger.
func (h *ScanHandler) Identify(w http.ResponseWriter, r *http.Request) {
	frame, _, ok := h.decodeScanRequest(w, r)
	if !ok {
		return
	}

	trainee, score, err := h.recognize(r.Context(), frame)
	if err != nil {
		respondScanError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, scanResponse{
		Success: true,
		Data: scanData{
			Action:      "identify",
			TraineeID:   trainee.ID,
			TraineeName: trainee.UniqueName,
			Similarity:  score,
			Time:        h.now(),
		},
		Message: "identified " + trainee.UniqueName,
	})
}

func scanResult(result *attendance.ScanResult, trainee *database.Trainee, score float64) scanResponse {
	data := scanData{
		Action:      string(result.Action),
		TraineeID:   trainee.ID,
		TraineeName: trainee.UniqueName,
		Similarity:  score,
		Status:      string(result.Record.Status),
		RecordID:    result.Record.ID,
	}
	message := trainee.UniqueName + " checked in"
	switch result.Action {
	case attendance.ActionCheckin:
		if result.Record.CheckinAt != nil {
			data.Time = *result.Record.CheckinAt
		}
	case attendance.ActionCheckout:
		if result.Record.CheckoutAt != nil {
			data.Time = *result.Record.CheckoutAt
		}
		message = trainee.UniqueName + " checked out"
	}
	return scanResponse{Success: true, Data: data, Message: message}
}
