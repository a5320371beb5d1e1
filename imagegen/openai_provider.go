// openai_provider.go implements the OpenAIProvider molecule that generates
// images with the OpenAI images API, or an Azure OpenAI deployment of it.
//
// This molecule composes:
//   - atoms.go: endpoint classification
//   - downloader.go: for URL-format responses
//   - go-openai client: for API calls
package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"

	"text2image/core"
	"text2image/logging"
	"text2image/sdruntime"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider implements sdruntime.Engine on top of the OpenAI images API.
//
// The API has no notion of steps, guidance or negative prompts, so those
// request fields are ignored. dall-e-3 accepts only one image per call and
// is called once per requested image.
//
// Thread Safety: OpenAIProvider is safe for concurrent use.
type OpenAIProvider struct {
	client     *openai.Client
	downloader *Downloader
	logger     *logging.Logger
	model      string
	size       string
	azure      bool
}

var _ sdruntime.Engine = (*OpenAIProvider)(nil)

// OpenAIProviderConfig holds configuration specific to the OpenAI provider.
type OpenAIProviderConfig struct {
	// APIKey is the OpenAI or Azure API key (required)
	APIKey string

	// BaseURL is the API endpoint (default: https://api.openai.com/v1)
	BaseURL string

	// Model is the image model, or the deployment name on Azure
	// (default: dall-e-2)
	Model string

	// Size is the requested image size (default: 1024x1024)
	Size string

	// AzureAPIVersion is used only for Azure endpoints
	AzureAPIVersion string

	// HTTPClient is used for API calls and downloads (optional)
	HTTPClient *http.Client
}

// NewOpenAIProvider creates a provider from the application config.
//
// Returns an error if the API key is empty or the endpoint is a local
// endpoint, which does not support image generation.
func NewOpenAIProvider(cfg *core.Config, logger *logging.Logger) (*OpenAIProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}

	model := cfg.OpenAIImageModel
	if IsAzureEndpoint(cfg.ImageLLMURL) && cfg.AzureOpenAIDeployment != "" {
		model = cfg.AzureOpenAIDeployment
	}

	return NewOpenAIProviderWithConfig(OpenAIProviderConfig{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.ImageLLMURL,
		Model:           model,
		Size:            cfg.OpenAIImageSize,
		AzureAPIVersion: cfg.AzureOpenAIAPIVersion,
		HTTPClient:      core.GetHTTPClient(cfg, cfg.GenerationTimeout),
	}, logger)
}

// NewOpenAIProviderWithConfig creates a provider with explicit configuration.
func NewOpenAIProviderWithConfig(providerCfg OpenAIProviderConfig, logger *logging.Logger) (*OpenAIProvider, error) {
	if providerCfg.APIKey == "" {
		return nil, fmt.Errorf("imagegen: OpenAI API key is required for image generation")
	}

	endpoint := providerCfg.BaseURL
	if endpoint == "" {
		endpoint = core.DefaultImageLLMURL
	}
	if IsLocalEndpoint(endpoint) {
		return nil, fmt.Errorf("imagegen: local endpoint (%s) does not support image generation; "+
			"configure IMAGE_LLM_URL to use OpenAI or Azure", endpoint)
	}

	model := providerCfg.Model
	if model == "" {
		model = openai.CreateImageModelDallE2
	}
	size := providerCfg.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	azure := IsAzureEndpoint(endpoint)
	var clientConfig openai.ClientConfig
	if azure {
		clientConfig = openai.DefaultAzureConfig(providerCfg.APIKey, endpoint)
		if providerCfg.AzureAPIVersion != "" {
			clientConfig.APIVersion = providerCfg.AzureAPIVersion
		}
		deployment := model
		clientConfig.AzureModelMapperFunc = func(string) string { return deployment }
	} else {
		clientConfig = openai.DefaultConfig(providerCfg.APIKey)
		clientConfig.BaseURL = endpoint
	}
	if providerCfg.HTTPClient != nil {
		clientConfig.HTTPClient = providerCfg.HTTPClient
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		downloader: NewDownloader(DownloaderConfig{HTTPClient: providerCfg.HTTPClient}, nil),
		logger:     logger.Named("openai"),
		model:      model,
		size:       size,
		azure:      azure,
	}, nil
}

// Name implements sdruntime.Engine.
func (p *OpenAIProvider) Name() string {
	if p.azure {
		return "azure:" + p.model
	}
	return "openai:" + p.model
}

// Model returns the configured image model or deployment name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Close implements sdruntime.Engine. The HTTP client holds no resources
// that need releasing.
func (p *OpenAIProvider) Close() error {
	return nil
}

// Generate requests req.NumImages images for req.Prompt.
func (p *OpenAIProvider) Generate(ctx context.Context, req sdruntime.EngineRequest) ([]image.Image, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("imagegen: prompt cannot be empty")
	}
	if req.NumImages < 1 {
		return nil, fmt.Errorf("imagegen: at least one image must be requested")
	}

	if req.HasNegative || req.Seed != nil {
		p.logger.Debug("parameters not supported by the images API are ignored",
			zap.Bool("negative_prompt", req.HasNegative),
			zap.Bool("seed", req.Seed != nil),
			zap.Int("steps", req.Steps),
			zap.Float64("guidance_scale", req.GuidanceScale))
	}

	perCall := req.NumImages
	if p.model == openai.CreateImageModelDallE3 {
		perCall = 1
	}

	images := make([]image.Image, 0, req.NumImages)
	for len(images) < req.NumImages {
		n := min(perCall, req.NumImages-len(images))
		batch, err := p.createImages(ctx, req.Prompt, n)
		if err != nil {
			return nil, err
		}
		images = append(images, batch...)
	}

	return images, nil
}

func (p *OpenAIProvider) createImages(ctx context.Context, prompt string, n int) ([]image.Image, error) {
	request := openai.ImageRequest{
		Prompt:         prompt,
		Model:          p.model,
		N:              n,
		Size:           p.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}
	if p.model == openai.CreateImageModelDallE3 {
		request.Style = openai.CreateImageStyleVivid
	}

	response, err := p.client.CreateImage(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("imagegen: image generation failed: %w", err)
	}
	if len(response.Data) != n {
		return nil, fmt.Errorf("imagegen: API returned %d images, want %d", len(response.Data), n)
	}

	images := make([]image.Image, 0, n)
	for i, item := range response.Data {
		data, err := p.imageBytes(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("imagegen: image %d: %w", i, err)
		}
		img, err := sdruntime.DecodePNG(data)
		if err != nil {
			return nil, fmt.Errorf("imagegen: image %d: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func (p *OpenAIProvider) imageBytes(ctx context.Context, item openai.ImageResponseDataInner) ([]byte, error) {
	switch {
	case item.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image data: %w", err)
		}
		return data, nil
	case item.URL != "":
		data, _, err := p.downloader.DownloadBytes(ctx, item.URL)
		return data, err
	default:
		return nil, fmt.Errorf("response carried neither image data nor URL")
	}
}
