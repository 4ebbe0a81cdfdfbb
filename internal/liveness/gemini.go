package liveness

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

// GeminiOracle probes liveness through the Gemini API.
type GeminiOracle struct {
	client *genai.Client
}

func NewGeminiOracle(ctx context.Context, apiKey string) (*GeminiOracle, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiOracle{client: client}, nil
}

func (o *GeminiOracle) Name() string {
	return geminiModel
}

func (o *GeminiOracle) Probe(ctx context.Context, frame []byte) (Verdict, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: livenessPrompt},
				{InlineData: &genai.Blob{Data: frame, MIMEType: "image/jpeg"}},
			},
		},
	}

	result, err := o.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		return VerdictUnknown, fmt.Errorf("gemini API error: %w", err)
	}

	answer := result.Text()
	if answer == "" {
		return VerdictUnknown, errors.New("no response from Gemini")
	}

	return parseVerdict(answer), nil
}
