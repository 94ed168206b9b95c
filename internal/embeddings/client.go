// Package embeddings turns text into vectors via the OpenAI embeddings API.
package embeddings

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/loreworks/mwassist/internal/domain"
)

const (
	DefaultModel      = "text-embedding-3-small"
	DefaultDimensions = 1536

	// maxBatchSize caps how many inputs go into one API request.
	maxBatchSize = 20
)

// EmbeddingAPI defines the interface for batch embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Client generates embeddings and validates their shape before anything
// downstream sees them.
type Client struct {
	api        EmbeddingAPI
	dimensions int
}

type openAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func newOpenAIAdapter(apiKey, model string) *openAIAdapter {
	if model == "" {
		model = DefaultModel
	}
	return &openAIAdapter{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}
}

func (a *openAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeTransport, "embedding request failed", err)
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

type Config struct {
	APIKey     string
	Model      string
	Dimensions int
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewDomainError(domain.ErrCodeConfiguration, "OpenAI API key is not set")
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Client{
		api:        newOpenAIAdapter(cfg.APIKey, cfg.Model),
		dimensions: dimensions,
	}, nil
}

// NewClientWithAPI wires a custom backend, used by tests.
func NewClientWithAPI(api EmbeddingAPI, dimensions int) *Client {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Client{api: api, dimensions: dimensions}
}

// EmbedOne embeds a single text.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Embed embeds texts in order, splitting large inputs into batches. Every
// returned vector is checked against the configured dimension.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, domain.ErrEmptyEmbeddingBatch
	}
	for _, t := range texts {
		if t == "" {
			return nil, domain.NewDomainError(domain.ErrCodeValidation, "cannot embed empty text")
		}
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.api.CreateEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, domain.NewDomainError(domain.ErrCodeResponseValidation, "embedding count does not match input count")
		}
		for _, v := range batch {
			if len(v) != c.dimensions {
				return nil, domain.NewDomainError(domain.ErrCodeResponseValidation, "embedding has unexpected dimensions")
			}
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// Dimensions reports the vector size this client produces.
func (c *Client) Dimensions() int {
	return c.dimensions
}
