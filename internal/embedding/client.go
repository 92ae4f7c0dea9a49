package embedding

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// DefaultAzureAPIVersion is used when an Azure endpoint is configured without
// an explicit API version.
const DefaultAzureAPIVersion = "2024-06-01"

// ClientConfig selects between Azure OpenAI and the public OpenAI API.
// Azure is used whenever AzureEndpoint is set.
type ClientConfig struct {
	APIKey  string // OpenAI API key
	BaseURL string // Optional OpenAI-compatible base URL

	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
}

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates an embeddings client from cfg.
// It returns ErrAPIKeyRequired if no key is configured for the selected provider.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.AzureEndpoint != "" {
		if cfg.AzureAPIKey == "" {
			return nil, ErrAPIKeyRequired
		}
		version := cfg.AzureAPIVersion
		if version == "" {
			version = DefaultAzureAPIVersion
		}
		opts = append(opts,
			azure.WithEndpoint(cfg.AzureEndpoint, version),
			azure.WithAPIKey(cfg.AzureAPIKey),
		)
	} else {
		if cfg.APIKey == "" {
			return nil, ErrAPIKeyRequired
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client}, nil
}
