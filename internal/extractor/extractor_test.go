package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testFrame encodes a solid JPEG of the given size.
func testFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test frame: %v", err)
	}
	return buf.Bytes()
}

func faceServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/embed/face", handler)
	return httptest.NewServer(mux)
}

func TestExtract(t *testing.T) {
	server := faceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"faces_count": 1,
			"faces": []map[string]any{
				{"face_index": 0, "dim": 4, "embedding": []float32{0.1, 0.2, 0.3, 0.4}, "det_score": 0.99},
			},
			"model": "facenet",
		})
	})
	defer server.Close()

	client := NewClient(server.URL, 4, 5*time.Second)
	emb, err := client.Extract(context.Background(), testFrame(t, 640, 480))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(emb) != 4 {
		t.Errorf("embedding length = %d, want 4", len(emb))
	}
}

func TestExtractNoFace(t *testing.T) {
	server := faceServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"faces_count": 0, "faces": []any{}, "model": "facenet"})
	})
	defer server.Close()

	client := NewClient(server.URL, 4, 5*time.Second)
	_, err := client.Extract(context.Background(), testFrame(t, 640, 480))
	if !errors.Is(err, ErrNoFace) {
		t.Errorf("got %v, want ErrNoFace", err)
	}
}

func TestExtractUpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model crashed", http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}},
		{"dimension mismatch", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"faces_count": 1,
				"faces": []map[string]any{
					{"face_index": 0, "dim": 2, "embedding": []float32{0.1, 0.2}, "det_score": 0.9},
				},
			})
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := faceServer(t, tc.handler)
			defer server.Close()

			client := NewClient(server.URL, 4, 5*time.Second)
			_, err := client.Extract(context.Background(), testFrame(t, 640, 480))

			var upstream *UpstreamError
			if !errors.As(err, &upstream) {
				t.Errorf("got %v, want UpstreamError", err)
			}
		})
	}
}

func TestExtractUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 4, 500*time.Millisecond)
	_, err := client.Extract(context.Background(), testFrame(t, 640, 480))

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Errorf("got %v, want UpstreamError", err)
	}
}

func TestNormalizeFrameUpscalesSmall(t *testing.T) {
	small := testFrame(t, 200, 150)
	out, err := NormalizeFrame(small)
	if err != nil {
		t.Fatalf("NormalizeFrame() error: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	if img.Bounds().Dy() < minFrameDim {
		t.Errorf("smaller dimension %d still below %d", img.Bounds().Dy(), minFrameDim)
	}
}

func TestNormalizeFramePassesThroughLarge(t *testing.T) {
	large := testFrame(t, 800, 600)
	out, err := NormalizeFrame(large)
	if err != nil {
		t.Fatalf("NormalizeFrame() error: %v", err)
	}
	if !bytes.Equal(out, large) {
		t.Error("large frame should pass through unchanged")
	}
}

func TestNormalizeFrameRejectsGarbage(t *testing.T) {
	_, err := NormalizeFrame([]byte("definitely not an image"))
	if !errors.Is(err, ErrBadFrame) {
		t.Errorf("got %v, want ErrBadFrame", err)
	}
}

func TestExtractRejectsGarbageFrame(t *testing.T) {
	server := faceServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("extractor service called with an undecodable frame")
	})
	defer server.Close()

	client := NewClient(server.URL, 4, 5*time.Second)
	_, err := client.Extract(context.Background(), []byte{0xDE, 0xAD, 0xBE, 0xEF})
	if !errors.Is(err, ErrBadFrame) {
		t.Errorf("got %v, want ErrBadFrame", err)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"webp", []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'E', 'B', 'P'}, "image/webp"},
		{"short", []byte{0x01}, "application/octet-stream"},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.want {
				t.Errorf("detectMIMEType() = %q, want %q", got, tc.want)
			}
		})
	}
}
