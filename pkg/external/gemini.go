package external

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mediguard-server/internal/domain"
	"github.com/mediguard-server/pkg/modeltext"
)

// CloudModelClient handles interactions with the cloud generative endpoint.
// Authentication is a query-string API key supplied per call, because the key
// lives in the user preference store rather than server configuration.
type CloudModelClient struct {
	baseURL     string
	textModel   string
	visionModel string
	httpClient  *http.Client
}

// NewCloudModelClient creates a new cloud generative API client.
func NewCloudModelClient(config domain.CloudModelConfig) *CloudModelClient {
	return &CloudModelClient{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		textModel:   config.TextModel,
		visionModel: config.VisionModel,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// generateRequest is the wire shape of a generateContent call.
type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateContent struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// generateResponse covers the reply path candidates[0].content.parts[0].text.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateText sends a text prompt to the configured text model and returns
// the raw reply text.
func (c *CloudModelClient) GenerateText(ctx context.Context, apiKey, prompt string, temperature float64, maxTokens int) (string, error) {
	body := generateRequest{
		Contents:         []generateContent{{Parts: []contentPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: temperature, MaxOutputTokens: maxTokens},
	}
	return c.generate(ctx, c.textModel, apiKey, &body)
}

// DetectDrugName sends a product photo to the vision model and decodes the
// structured {brand, generic, candidates} reply.
func (c *CloudModelClient) DetectDrugName(ctx context.Context, apiKey, mimeType string, imageData []byte) (*domain.DrugDetection, error) {
	prompt := `Extract brand and generic drug names from this package image.
Return STRICT JSON: {"brand":"","generic":"","candidates":["..."]}`

	body := generateRequest{
		Contents: []generateContent{{Parts: []contentPart{
			{Text: prompt},
			{InlineData: &inlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(imageData),
			}},
		}}},
		GenerationConfig: generationConfig{Temperature: 0.1, MaxOutputTokens: 200},
	}

	text, err := c.generate(ctx, c.visionModel, apiKey, &body)
	if err != nil {
		return nil, err
	}

	detection := &domain.DrugDetection{}
	if err := modeltext.DecodeFirst(text, detection); err != nil {
		return nil, fmt.Errorf("vision reply had no parseable detection: %w", err)
	}
	return detection, nil
}

// generate performs one generateContent call against the given model.
func (c *CloudModelClient) generate(ctx context.Context, model, apiKey string, body *generateRequest) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", fmt.Errorf("cloud model API key is empty")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	fullURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute generate request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generate response: %w", err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("failed to parse generate response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", fmt.Errorf("cloud model error: %s", decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cloud model returned status %d", resp.StatusCode)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("cloud model returned no candidates")
	}

	text := decoded.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("cloud model returned empty text")
	}
	return text, nil
}
