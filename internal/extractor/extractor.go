// Package extractor talks to the external face embedding service that turns
// a captured frame into a fixed-dimension feature vector.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// ErrNoFace is returned when the service finds no usable face in the frame.
var ErrNoFace = errors.New("no face detected in image")

// UpstreamError wraps transport failures, non-200 responses and malformed
// bodies from the embedding service. It is recoverable: the caller retries.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("embedding service %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client computes face embeddings using the embedding service.
type Client struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewClient creates a client for the embedding service. timeout bounds every
// request; the scan path must not hang on a degraded extractor.
func NewClient(baseURL string, dim int, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{Timeout: timeout},
	}
}

// faceDetection is a single detected face in the service response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the response from the face embedding endpoint.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage posts the frame as a multipart form to the endpoint.
// The part carries an explicit Content-Type from magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Op: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Op: "response", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	return body, nil
}

// Extract computes the embedding for the most prominent face in the frame.
// Frames below the minimum dimension are upscaled first so the detector has
// enough pixels to work with. Returns ErrNoFace when no face is found.
func (c *Client) Extract(ctx context.Context, frame []byte) ([]float32, error) {
	prepared, err := NormalizeFrame(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare frame: %w", err)
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", prepared)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, &UpstreamError{Op: "parse response", Err: err}
	}

	if faceResp.FacesCount == 0 || len(faceResp.Faces) == 0 {
		return nil, ErrNoFace
	}

	// Faces arrive ordered by detection score; the first one is the subject.
	emb := faceResp.Faces[0].Embedding
	if len(emb) == 0 {
		return nil, &UpstreamError{Op: "parse response", Err: errors.New("empty embedding returned")}
	}
	if c.dim > 0 && len(emb) != c.dim {
		return nil, &UpstreamError{Op: "parse response", Err: fmt.Errorf("dimension mismatch: got %d, want %d", len(emb), c.dim)}
	}

	return emb, nil
}

// detectMIMEType detects the MIME type from image data.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
