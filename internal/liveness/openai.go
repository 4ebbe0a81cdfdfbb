package liveness

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openaiModel = openai.ChatModelGPT4_1Mini

// OpenAIOracle probes liveness through the OpenAI chat completions API.
type OpenAIOracle struct {
	client *openai.Client
}

func NewOpenAIOracle(apiKey string) *OpenAIOracle {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIOracle{client: &client}
}

func (o *OpenAIOracle) Name() string {
	return openaiModel
}

func (o *OpenAIOracle) Probe(ctx context.Context, frame []byte) (Verdict, error) {
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart(livenessPrompt),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "low",
						}),
					},
				},
			},
		},
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openaiModel,
		Messages:  messages,
		MaxTokens: openai.Int(5),
	})
	if err != nil {
		return VerdictUnknown, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return VerdictUnknown, errors.New("no response from OpenAI")
	}

	return parseVerdict(resp.Choices[0].Message.Content), nil
}
