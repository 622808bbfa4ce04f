package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	sdk "google.golang.org/genai"

	"photoenhance/internal/imagegen"
	"photoenhance/internal/infra"
)

// ErrNoImageProduced marks a well-formed response that carried no image part.
// The model is allowed to answer with text only; callers treat this as a
// terminal outcome of the attempt rather than a transport failure.
var ErrNoImageProduced = errors.New("genai: no image produced")

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// EnhancedImage is the image returned by the model.
type EnhancedImage struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// contentGenerator is the slice of the SDK used here; *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*sdk.Content, config *sdk.GenerateContentConfig) (*sdk.GenerateContentResponse, error)
}

// Client wraps a single multimodal generateContent call that edits an image
// according to an instruction prompt.
type Client struct {
	models contentGenerator
	model  string
	logger *infra.Logger
}

// NewClient constructs a Gemini client. An API key is required: without one
// every enhancement would fail, so configuration errors surface at startup.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("genai: API key is missing")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	cfg := &sdk.ClientConfig{
		APIKey:     apiKey,
		Backend:    sdk.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.HTTPOptions = sdk.HTTPOptions{BaseURL: base}
	}
	client, err := sdk.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return newClient(client.Models, opts.Model, opts.Logger), nil
}

func newClient(models contentGenerator, model string, logger *infra.Logger) *Client {
	if model == "" {
		model = "gemini-2.5-flash-image-preview"
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{models: models, model: model, logger: logger}
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Generate sends the original image and the instruction in one request and
// returns the first inline image part of the response. Transport failures and
// deadline expiry are returned as errors; a text-only answer yields
// ErrNoImageProduced.
func (c *Client) Generate(ctx context.Context, imageBytes []byte, mimeType, instruction string) (*EnhancedImage, error) {
	if len(imageBytes) == 0 {
		return nil, errors.New("genai: image bytes are required")
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "image/jpeg"
	}
	contents := []*sdk.Content{{
		Role: "user",
		Parts: []*sdk.Part{
			{Text: instruction},
			{InlineData: &sdk.Blob{MIMEType: mimeType, Data: imageBytes}},
		},
	}}
	config := &sdk.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("genai: generate content: %w", ctxErr)
		}
		return nil, fmt.Errorf("genai: generate content: %w", err)
	}

	img, explanation := extractImage(resp)
	if img == nil {
		c.logger.Info().
			Str("model", c.model).
			Dur("elapsed", time.Since(start)).
			Str("finish_reason", finishReason(resp)).
			Msg("genai: response carried no image")
		if explanation != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoImageProduced, truncate(explanation, 200))
		}
		return nil, ErrNoImageProduced
	}
	img.Width, img.Height = imagegen.Dimensions(img.Data)

	c.logger.Debug().
		Str("model", c.model).
		Dur("elapsed", time.Since(start)).
		Int("bytes", len(img.Data)).
		Int("width", img.Width).
		Int("height", img.Height).
		Msg("genai: enhanced image received")
	return img, nil
}

func extractImage(resp *sdk.GenerateContentResponse) (*EnhancedImage, string) {
	if resp == nil {
		return nil, ""
	}
	var text []string
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return &EnhancedImage{Data: part.InlineData.Data, MIMEType: mime}, ""
			}
			if t := strings.TrimSpace(part.Text); t != "" {
				text = append(text, t)
			}
		}
	}
	return nil, strings.Join(text, " ")
}

func finishReason(resp *sdk.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	return string(resp.Candidates[0].FinishReason)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
