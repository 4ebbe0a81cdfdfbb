package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func (e *testEnv) traineesHandler() *TraineesHandler {
	return NewTraineesHandler(e.stores.Trainees, e.extractor, 3)
}

func TestRegisterSelf(t *testing.T) {
	env := newTestEnv()
	h := env.traineesHandler()

	// Two frames; the stored template is their element-wise mean.
	env.extractor.embeddings["f1"] = []float32{1, 0, 0}
	env.extractor.embeddings["f2"] = []float32{0, 1, 0}
	frames := []string{
		base64.StdEncoding.EncodeToString([]byte("f1")),
		base64.StdEncoding.EncodeToString([]byte("f2")),
	}

	rec := httptest.NewRecorder()
	h.RegisterSelf(rec, jsonRequest(t, http.MethodPost, "/", map[string]any{
		"name":   "Jiří Novák",
		"email":  "jiri@example.com",
		"frames": frames,
	}))
	assertStatusCode(t, rec, http.StatusCreated)

	var resp traineeResponse
	parseJSONResponse(t, rec, &resp)
	if resp.Name != "jiri_novak" {
		t.Errorf("name = %q, want jiri_novak", resp.Name)
	}
	if resp.RegisteredBy != "self" {
		t.Errorf("registered_by = %q, want self", resp.RegisteredBy)
	}

	templates, err := env.stores.Trainees.TemplatesByTrainee(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("listing templates: %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("templates = %d, want 1", len(templates))
	}
	want := []float32{0.5, 0.5, 0}
	for i, v := range templates[0].Embedding {
		if v != want[i] {
			t.Errorf("template[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv()
	h := env.traineesHandler()
	frame := base64.StdEncoding.EncodeToString([]byte("f1"))
	env.extractor.embeddings["f1"] = []float32{1, 0, 0}

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"missing name", map[string]any{"frames": []string{frame}}, http.StatusBadRequest},
		{"blank name", map[string]any{"name": "   ", "frames": []string{frame}}, http.StatusBadRequest},
		{"no frames", map[string]any{"name": "alice"}, http.StatusBadRequest},
		{"bad frame encoding", map[string]any{"name": "alice", "frames": []string{"!!!"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.RegisterSelf(rec, jsonRequest(t, http.MethodPost, "/", tt.body))
			assertStatusCode(t, rec, tt.status)
		})
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	env := newTestEnv()
	env.enroll(t, "alice", []float32{1, 0, 0})
	h := env.traineesHandler()

	env.extractor.embeddings["f1"] = []float32{0, 1, 0}
	rec := httptest.NewRecorder()
	h.RegisterAdmin(rec, jsonRequest(t, http.MethodPost, "/", map[string]any{
		"name":   "Alice",
		"frames": []string{base64.StdEncoding.EncodeToString([]byte("f1"))},
	}))
	assertStatusCode(t, rec, http.StatusConflict)
}

func TestTraineesListAndGet(t *testing.T) {
	env := newTestEnv()
	trainee := env.enroll(t, "alice", []float32{1, 0, 0})
	env.enroll(t, "bob", []float32{0, 1, 0})
	h := env.traineesHandler()

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assertStatusCode(t, rec, http.StatusOK)

	var list []traineeResponse
	parseJSONResponse(t, rec, &list)
	if len(list) != 2 {
		t.Fatalf("trainees = %d, want 2", len(list))
	}
	if list[0].Templates != 1 {
		t.Errorf("template count = %d, want 1", list[0].Templates)
	}

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"id": strconv.FormatInt(trainee.ID, 10)})
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	req = requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"id": "9999"})
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	assertStatusCode(t, rec, http.StatusNotFound)
}

func TestTraineeDelete(t *testing.T) {
	env := newTestEnv()
	trainee := env.enroll(t, "alice", []float32{1, 0, 0})
	h := env.traineesHandler()

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil),
		map[string]string{"id": strconv.FormatInt(trainee.ID, 10)})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	rec = httptest.NewRecorder()
	h.Delete(rec, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil),
		map[string]string{"id": strconv.FormatInt(trainee.ID, 10)}))
	assertStatusCode(t, rec, http.StatusNotFound)
}

func TestAddTemplate(t *testing.T) {
	env := newTestEnv()
	trainee := env.enroll(t, "alice", []float32{1, 0, 0})
	h := env.traineesHandler()

	env.extractor.embeddings["extra"] = []float32{0.9, 0.1, 0}
	body := map[string]any{
		"frames": []string{base64.StdEncoding.EncodeToString([]byte("extra"))},
	}
	req := requestWithChiParams(jsonRequest(t, http.MethodPost, "/", body),
		map[string]string{"id": strconv.FormatInt(trainee.ID, 10)})
	rec := httptest.NewRecorder()
	h.AddTemplate(rec, req)
	assertStatusCode(t, rec, http.StatusCreated)

	templates, err := env.stores.Trainees.TemplatesByTrainee(context.Background(), trainee.ID)
	if err != nil {
		t.Fatalf("listing templates: %v", err)
	}
	if len(templates) != 2 {
		t.Errorf("templates = %d, want 2", len(templates))
	}

	// Metadata listing should expose both without the vectors.
	listReq := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"id": strconv.FormatInt(trainee.ID, 10)})
	rec = httptest.NewRecorder()
	h.Templates(rec, listReq)
	assertStatusCode(t, rec, http.StatusOK)

	var list []templateResponse
	parseJSONResponse(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("template metadata entries = %d, want 2", len(list))
	}
}
