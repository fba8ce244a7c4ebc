package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zombor/receipt-pipeline/internal/extraction"
)

// Ollama implements CloudParser against an Ollama server
type Ollama struct {
	baseURL     string
	model       string
	client      *http.Client
	idGenerator extraction.IDGenerator
	timeSource  extraction.TimeSource
}

// NewOllama creates a new Ollama CloudParser.
// Vision models that read receipts reasonably well:
//   - llava:1.6
//   - qwen2-vl:7b
//   - llava-phi3 (smaller and faster, less accurate)
func NewOllama(baseURL string, modelName string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		// the pipeline context carries the real deadline
		client:      &http.Client{Timeout: 5 * time.Minute},
		idGenerator: extraction.UUIDGenerator{},
		timeSource:  extraction.SystemClock{},
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ParseReceipt sends the receipt image to Ollama's chat API and parses its answer
func (o *Ollama) ParseReceipt(ctx context.Context, imageBase64, userID, userCity string) (*extraction.Result, error) {
	pngData, err := decodeToPNG(imageBase64)
	if err != nil {
		return extraction.Failed(err.Error()), nil
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: "json",
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading shop receipts. You carefully read all text in images and extract accurate information.",
			},
			{
				Role:    "user",
				Content: extractionPrompt(userCity),
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return resultFromAnswer(chatResp.Message.Content, o.idGenerator, o.timeSource), nil
}
