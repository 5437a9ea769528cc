package suggest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/omara/internal/imaging"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	// MaxResponseSize bounds the completion body read from the model.
	MaxResponseSize = 1 << 20

	systemPrompt = "You are a helpful assistant that returns strict JSON only. You must follow the output schema exactly."

	stylistPrompt = "You are a personal stylist. Create 3 outfit suggestions using ONLY the provided clothing items. " +
		"Each outfit should include a coherent combination across categories when possible (top+bottom+shoes, optional outerwear/accessory). " +
		"Consider color harmony, season, and visual compatibility (patterns, textures). " +
		"Return STRICT JSON only, matching this schema:\n" +
		`{ "outfits": [ { "name": string, "itemIds": string[], "reasoning": string } ] }` + "\n" +
		"Rules:\n" +
		"- Use only itemIds that exist in the input list.\n" +
		"- itemIds array length should be 2 to 5.\n" +
		"- Do not include markdown, code fences, or any extra text outside JSON.\n\n" +
		"Here is the item list (metadata):\n"
)

// ImageOpener reads the bytes behind an image reference.
type ImageOpener interface {
	Open(ctx context.Context, ref string) ([]byte, string, error)
}

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client asks an OpenAI-compatible chat completions endpoint for outfit
// suggestions, attaching each item's photo as a JPEG data URL.
type Client struct {
	config     Config
	images     ImageOpener
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a Client. Missing base URL, model and timeout take
// defaults.
func NewClient(cfg Config, images ImageOpener, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:     cfg,
		images:     images,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Suggest sends the items that have images to the model and validates its
// answer against the full catalog.
func (c *Client) Suggest(ctx context.Context, catalog []CatalogItem) ([]Suggestion, error) {
	if c.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	usable := WithImages(catalog)
	if len(usable) < MinItems {
		return nil, ErrNotEnoughItems
	}

	body, err := c.buildRequest(ctx, usable)
	if err != nil {
		return nil, err
	}

	content, err := c.complete(ctx, body)
	if err != nil {
		return nil, err
	}

	suggestions, err := Validate(extractJSON(content), usable)
	if err != nil {
		c.log.Warn("model returned unusable output", "error", err, "bytes", len(content))
		return nil, err
	}
	return suggestions, nil
}

func (c *Client) buildRequest(ctx context.Context, usable []CatalogItem) ([]byte, error) {
	meta, err := json.MarshalIndent(usable, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}

	parts := []contentPart{{Type: "text", Text: stylistPrompt + string(meta)}}
	for _, it := range usable {
		data, _, err := c.images.Open(ctx, it.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("reading image for item %s: %w", it.ID, err)
		}
		data = imaging.JPEGOrOriginal(data, c.log)
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)},
		})
	}

	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: parts},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return body, nil
}

func (c *Client) complete(ctx context.Context, body []byte) (string, error) {
	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return "", fmt.Errorf("reading model response: %w", err)
	}
	if len(raw) > MaxResponseSize {
		return "", fmt.Errorf("%w: response larger than %d bytes", ErrInvalidResponse, MaxResponseSize)
	}
	c.log.Info("model responded", "status", resp.StatusCode, "duration", time.Since(start), "model", c.config.Model)

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding completion: %w", ErrInvalidResponse, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("%w: model returned %d: %s", ErrInvalidResponse, resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrInvalidResponse)
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractJSON trims anything outside the outermost braces, such as code
// fences the model was asked not to send.
func extractJSON(s string) []byte {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return []byte(s)
	}
	return []byte(s[start : end+1])
}
