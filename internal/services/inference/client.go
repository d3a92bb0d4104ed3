package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"firesmoke-api/internal/config"
	"firesmoke-api/internal/models"
)

// ProviderName is reported in every detection result
const ProviderName = "roboflow"

// maxErrorBody caps how much of an error response is kept for diagnostics
const maxErrorBody = 512

// Client calls the hosted Roboflow detection API over HTTP
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client from the inference section of the config.
// Deadlines come from the request context; the HTTP client timeout is only a
// backstop for callers that pass a context without one.
func NewClient(cfg *config.Config) *Client {
	backstop := cfg.BatchInferenceTimeout
	if backstop <= 0 {
		backstop = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.InferenceBaseURL, "/"),
		apiKey:  cfg.InferenceAPIKey,
		httpClient: &http.Client{
			Timeout: backstop,
		},
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Detect posts the base64 image to {base}/{model}?api_key=..&confidence=..
func (c *Client) Detect(ctx context.Context, req Request) (*models.DetectionResult, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("roboflow api key: %w", models.ErrNotConfigured)
	}
	if req.ImageBase64 == "" {
		return nil, fmt.Errorf("empty image payload")
	}
	if req.ModelID == "" {
		return nil, fmt.Errorf("model id is required")
	}

	endpoint := c.endpoint(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(req.ImageBase64))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &models.ProviderError{Provider: ProviderName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.ProviderError{Provider: ProviderName, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &models.ProviderError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(snippet)),
		}
	}

	var parsed roboflowResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := models.NewDetectionResult(parsed.toDetections())
	result.Provider = ProviderName
	result.Model = req.ModelID
	result.ImageWidth = parsed.Image.Width
	result.ImageHeight = parsed.Image.Height
	result.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000

	log.Debug().
		Str("model", req.ModelID).
		Int("count", result.Count).
		Float64("max_confidence", result.MaxConfidence).
		Float64("latency_ms", result.ProcessingTimeMs).
		Msg("Inference completed")

	return result, nil
}

func (c *Client) endpoint(req Request) string {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("confidence", strconv.Itoa(req.ConfidencePct))
	return fmt.Sprintf("%s/%s?%s", c.baseURL, req.ModelID, q.Encode())
}
