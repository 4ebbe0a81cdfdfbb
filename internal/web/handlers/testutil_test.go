package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/scanin/scanin/internal/attendance"
	"github.com/scanin/scanin/internal/database"
	"github.com/scanin/scanin/internal/database/mock"
	"github.com/scanin/scanin/internal/events"
	"github.com/scanin/scanin/internal/extractor"
)

// stubExtractor maps raw frame bytes to canned embeddings. Unknown frames
// behave like a frame without a detectable face.
type stubExtractor struct {
	embeddings map[string][]float32
	err        error
}

func (s *stubExtractor) Extract(ctx context.Context, frame []byte) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if emb, ok := s.embeddings[string(frame)]; ok {
		return emb, nil
	}
	return nil, extractor.ErrNoFace
}

// stubGate returns a fixed liveness outcome.
type stubGate struct {
	err error
}

func (g *stubGate) AssertLive(ctx context.Context, frame []byte, failClosed bool) error {
	return g.err
}

// testEnv bundles the stores and collaborators shared by handler tests.
type testEnv struct {
	stores      *mock.Stores
	broadcaster *events.Broadcaster
	extractor   *stubExtractor
	gate        *stubGate
	service     *attendance.Service
}

func newTestEnv() *testEnv {
	stores := mock.New()
	broadcaster := events.NewBroadcaster()
	return &testEnv{
		stores:      stores,
		broadcaster: broadcaster,
		extractor:   &stubExtractor{embeddings: make(map[string][]float32)},
		gate:        &stubGate{},
		service:     attendance.NewService(stores.Attendance, stores.Policy, broadcaster),
	}
}

// enroll registers a trainee whose frame "<name>-frame" extracts to the given
// embedding.
func (e *testEnv) enroll(t *testing.T, name string, embedding []float32) *database.Trainee {
	t.Helper()
	trainee := &database.Trainee{UniqueName: name, RegisteredBy: "self"}
	template := &database.FaceTemplate{Embedding: embedding, Source: "camera", Dim: len(embedding)}
	if err := e.stores.Trainees.Create(context.Background(), trainee, template); err != nil {
		t.Fatalf("failed to enroll trainee: %v", err)
	}
	e.extractor.embeddings[name+"-frame"] = embedding
	return trainee
}

// frameFor returns the base64 frame payload matching an enroll call.
func frameFor(name string) string {
	return base64.StdEncoding.EncodeToString([]byte(name + "-frame"))
}

// scanBody builds the JSON body for a scan request.
func scanBody(t *testing.T, frame string) *http.Request {
	t.Helper()
	return jsonRequest(t, http.MethodPost, "/", map[string]string{"frame": frame})
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
