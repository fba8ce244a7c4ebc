package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/receipt-pipeline/internal/extraction"
)

// contentGenerator is the part of genai.GenerativeModel Gemini uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini implements CloudParser using Google Gemini
type Gemini struct {
	client      *genai.Client
	model       contentGenerator
	idGenerator extraction.IDGenerator
	timeSource  extraction.TimeSource
}

// NewGemini creates a new Gemini CloudParser
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:      client,
		model:       client.GenerativeModel(modelName),
		idGenerator: extraction.UUIDGenerator{},
		timeSource:  extraction.SystemClock{},
	}, nil
}

// ParseReceipt sends the receipt image to Gemini and parses its answer
func (g *Gemini) ParseReceipt(ctx context.Context, imageBase64, userID, userCity string) (*extraction.Result, error) {
	pngData, err := decodeToPNG(imageBase64)
	if err != nil {
		return extraction.Failed(err.Error()), nil
	}

	// genai.ImageData takes the format suffix, not the MIME type
	parts := []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(extractionPrompt(userCity)),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return extraction.Failed("no response from gemini"), nil
	}

	var answer strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			answer.WriteString(string(text))
		}
	}

	return resultFromAnswer(answer.String(), g.idGenerator, g.timeSource), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
