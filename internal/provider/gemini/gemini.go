package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/imgstudio/imgstudio/internal/provider"
	"github.com/imgstudio/imgstudio/pkg/models"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 120 * time.Second
)

type apiRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	CandidateCount     int          `json:"candidateCount,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type apiResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Provider calls the Generative Language REST API.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	registry   *models.ModelRegistry
	verbose    bool
}

func New(cfg *provider.Config, registry *models.ModelRegistry) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		registry: registry,
		verbose:  cfg.Verbose,
	}, nil
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) ListModels() []string {
	return p.registry.List()
}

func (p *Provider) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	apiReq := &apiRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: req.Prompt}},
		}},
		GenerationConfig: buildGenerationConfig(req),
	}

	apiResp, err := p.call(ctx, req.Model, apiReq)
	if err != nil {
		return nil, err
	}

	return p.buildResponse(apiResp, req.Prompt)
}

func (p *Provider) Upscale(ctx context.Context, req *models.UpscaleRequest) (*models.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	apiReq := &apiRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: req.BuildPrompt()},
				{InlineData: &inlineData{
					MimeType: req.MimeType,
					Data:     base64.StdEncoding.EncodeToString(req.Image),
				}},
			},
		}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
			CandidateCount:     1,
		},
	}

	apiResp, err := p.call(ctx, models.DefaultModel, apiReq)
	if err != nil {
		if provider.Classify(err) == provider.KindPermission {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", provider.ErrUpscaleFailed, err)
	}

	return p.buildResponse(apiResp, req.Prompt)
}

func buildGenerationConfig(req *models.Request) *generationConfig {
	cfg := &generationConfig{
		ResponseModalities: []string{"IMAGE"},
	}
	if req.Count > 1 {
		cfg.CandidateCount = req.Count
	}

	img := &imageConfig{}
	if req.AspectRatio != "" {
		img.AspectRatio = req.AspectRatio.String()
	}
	switch {
	case req.Resolution != "":
		img.ImageSize = req.Resolution.String()
	case req.Quality == models.QualityHigh:
		// The high quality tier maps to the next resolution step.
		img.ImageSize = models.Resolution2K.String()
	}
	if img.AspectRatio != "" || img.ImageSize != "" {
		cfg.ImageConfig = img
	}

	return cfg
}

func (p *Provider) call(ctx context.Context, model string, apiReq *apiRequest) (*apiResponse, error) {
	jsonData, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	p.logRequest(http.MethodPost, url, httpReq.Header, jsonData)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	p.logResponse(resp.StatusCode, resp.Header, body)

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if err := classifyFailure(resp.StatusCode, apiResp.Error); err != nil {
		return nil, err
	}

	return &apiResp, nil
}

func classifyFailure(statusCode int, apiErr *apiError) error {
	if apiErr != nil {
		if apiErr.Code == http.StatusForbidden || apiErr.Status == "PERMISSION_DENIED" {
			return fmt.Errorf("%w: %s", provider.ErrPermissionDenied, apiErr.Message)
		}
		return fmt.Errorf("%w: %s", provider.ErrGenerationFailed, apiErr.Message)
	}

	switch {
	case statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", provider.ErrPermissionDenied, statusCode)
	case statusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d", provider.ErrGenerationFailed, statusCode)
	}

	return nil
}

func (p *Provider) buildResponse(apiResp *apiResponse, sourcePrompt string) (*models.Response, error) {
	response := &models.Response{}

	var refusal strings.Builder
	for _, cand := range apiResp.Candidates {
		for _, pt := range cand.Content.Parts {
			if pt.InlineData != nil && pt.InlineData.Data != "" {
				decoded, err := base64.StdEncoding.DecodeString(pt.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode image %d: %w", len(response.Images), err)
				}
				response.Images = append(response.Images, models.GeneratedImage{
					Data:         decoded,
					MimeType:     pt.InlineData.MimeType,
					SourcePrompt: sourcePrompt,
					Index:        len(response.Images),
				})
				continue
			}
			if pt.Text != "" {
				if refusal.Len() > 0 {
					refusal.WriteString(" ")
				}
				refusal.WriteString(pt.Text)
			}
		}
	}
	response.Refusal = refusal.String()

	// A text-only reply is the model declining to produce an image.
	if len(response.Images) == 0 {
		if response.Refusal != "" {
			return nil, fmt.Errorf("%w: %s", provider.ErrNoImageReturned, response.Refusal)
		}
		return nil, provider.ErrNoImageReturned
	}

	return response, nil
}

func (p *Provider) logRequest(method, url string, headers http.Header, body []byte) {
	if !p.verbose {
		return
	}

	fmt.Fprintln(os.Stderr, "--- REQUEST ---")
	fmt.Fprintf(os.Stderr, "%s %s\n", method, url)
	fmt.Fprintln(os.Stderr, "Headers:")
	for key, values := range headers {
		for _, value := range values {
			if strings.ToLower(key) == "x-goog-api-key" {
				value = "[REDACTED]"
			}
			fmt.Fprintf(os.Stderr, "  %s: %s\n", key, value)
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(os.Stderr, "Body:")
		printJSON(truncateInlineData(body))
	}
	fmt.Fprintln(os.Stderr, "---------------")
}

func (p *Provider) logResponse(statusCode int, headers http.Header, body []byte) {
	if !p.verbose {
		return
	}

	fmt.Fprintln(os.Stderr, "--- RESPONSE ---")
	fmt.Fprintf(os.Stderr, "Status: %d\n", statusCode)
	fmt.Fprintln(os.Stderr, "Headers:")
	for key, values := range headers {
		for _, value := range values {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", key, value)
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(os.Stderr, "Body:")
		printJSON(truncateInlineData(body))
	}
	fmt.Fprintln(os.Stderr, "----------------")
}

func printJSON(body []byte) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "  ", "  "); err == nil {
		fmt.Fprintf(os.Stderr, "  %s\n", pretty.String())
	} else {
		fmt.Fprintf(os.Stderr, "  %s\n", string(body))
	}
}

// truncateInlineData shortens base64 image payloads so verbose logs stay
// readable.
func truncateInlineData(body []byte) []byte {
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	truncateDataFields(data)

	result, err := json.Marshal(data)
	if err != nil {
		return body
	}
	return result
}

func truncateDataFields(data map[string]interface{}) {
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if key == "data" && len(v) > 100 {
				data[key] = v[:100] + "... [truncated]"
			}
		case map[string]interface{}:
			truncateDataFields(v)
		case []interface{}:
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					truncateDataFields(m)
				}
			}
		}
	}
}
