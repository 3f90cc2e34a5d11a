package astria

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/digkill/photostudio/internal/config"
)

// Client talks to the Astria fine-tuning and generation API. Both calls
// return as soon as the job is queued; results arrive on the callback URL.
type Client struct {
	apiKey     string
	baseURL    string
	baseTuneID string
	httpClient *http.Client
	log        *slog.Logger
}

type PromptRequest struct {
	TuneID          string
	Text            string
	NumImages       int
	AspectRatio     string
	InputImageURL   string
	SuperResolution bool
	FilmGrain       bool
	InpaintFaces    bool
	CallbackURL     string
}

type TuneRequest struct {
	Title       string
	ClassName   string
	ImageURLs   []string
	CallbackURL string
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &Client{
		apiKey:     cfg.AstriaAPIKey,
		baseURL:    strings.TrimRight(cfg.AstriaBaseURL, "/"),
		baseTuneID: cfg.AstriaBaseTune,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// CreatePrompt queues an image generation on a tune and returns the prompt id.
func (c *Client) CreatePrompt(ctx context.Context, req PromptRequest) (string, error) {
	if req.TuneID == "" {
		return "", fmt.Errorf("tune id is required")
	}
	prompt := map[string]any{
		"text":             req.Text,
		"num_images":       req.NumImages,
		"super_resolution": req.SuperResolution,
		"film_grain":       req.FilmGrain,
		"inpaint_faces":    req.InpaintFaces,
		"callback":         req.CallbackURL,
	}
	if req.AspectRatio != "" {
		prompt["ar"] = req.AspectRatio
	}
	if req.InputImageURL != "" {
		prompt["input_image_url"] = req.InputImageURL
	}

	path := "/tunes/" + url.PathEscape(req.TuneID) + "/prompts"
	return c.create(ctx, path, map[string]any{"prompt": prompt})
}

// CreateTune queues fine-tuning on the uploaded images and returns the tune id.
func (c *Client) CreateTune(ctx context.Context, req TuneRequest) (string, error) {
	if len(req.ImageURLs) == 0 {
		return "", fmt.Errorf("training images are required")
	}
	tune := map[string]any{
		"title":      req.Title,
		"name":       req.ClassName,
		"image_urls": req.ImageURLs,
		"callback":   req.CallbackURL,
	}
	if c.baseTuneID != "" {
		tune["base_tune_id"] = c.baseTuneID
		tune["model_type"] = "lora"
	}
	return c.create(ctx, "/tunes", map[string]any{"tune": tune})
}

func (c *Client) create(ctx context.Context, path string, payload map[string]any) (string, error) {
	fullURL := c.baseURL + path

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post astria: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("astria request failed", "status", resp.StatusCode, "path", path, "body", truncateBody(rawBody))
		}
		return "", fmt.Errorf("astria error: status=%d path=%s body=%s", resp.StatusCode, path, truncateBody(rawBody))
	}

	var created struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(rawBody, &created); err != nil {
		return "", fmt.Errorf("decode astria response: %w (body=%s)", err, truncateBody(rawBody))
	}
	if created.ID == "" {
		return "", fmt.Errorf("empty id in astria response")
	}

	if c.log != nil {
		c.log.Info("astria job queued", "path", path, "id", created.ID.String())
	}
	return created.ID.String(), nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
