// internal/describe/client.go
// Package describe provides a client for the description-enrichment service.
// It builds a prompt from a catalog entry and asks a text-generation endpoint
// (Ollama-compatible generate API) for a product description.
package describe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sellerhub/sellerhub-catalog-go/internal/metrics"
	"github.com/sellerhub/sellerhub-catalog-go/internal/model"
)

// Describer produces a product description for a catalog entry. Callers
// treat any failure as "no description": enrichment never blocks creation.
type Describer interface {
	Describe(ctx context.Context, entry model.Entry) (string, error)
}

// maxDescriptionLen caps generated text at the entry field limit.
const maxDescriptionLen = 300

// Client talks to an Ollama-compatible generate endpoint.
type Client struct {
	apiURL  string
	mdl     string
	hc      *http.Client
	metrics *metrics.Metrics
}

// New creates a describer for the given endpoint and model identifier.
// The generation call is slow by nature, so the timeout is generous.
func New(apiURL, mdl string) *Client {
	return &Client{
		apiURL:  apiURL,
		mdl:     mdl,
		hc:      &http.Client{Timeout: 120 * time.Second},
		metrics: metrics.NewMetrics(),
	}
}

// generateRequest is the wire format of the generate endpoint.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

// generateResponse wraps the model's reply; with format "json" the response
// field itself holds a JSON document.
type generateResponse struct {
	Response string `json:"response"`
}

// Describe builds the prompt, calls the generation endpoint and parses the
// JSON reply down to the description text.
func (c *Client) Describe(ctx context.Context, entry model.Entry) (string, error) {
	start := time.Now()

	description, err := c.generate(ctx, entry)

	status := "success"
	if err != nil {
		status = "failure"
	}
	c.metrics.EnrichmentTotal.WithLabelValues(status).Inc()
	c.metrics.EnrichmentDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	return description, err
}

func (c *Client) generate(ctx context.Context, entry model.Entry) (string, error) {
	prompt := fmt.Sprintf(`Você é um especialista em e-commerce. Crie uma descrição de produto em português baseada APENAS nos dados fornecidos abaixo.

PRODUTO: %s

INSTRUÇÕES:
- Crie uma descrição atrativa e profissional
- Use APENAS as informações do produto fornecido
- Máximo 300 caracteres
- Retorne APENAS um JSON válido no formato exato abaixo
- NÃO inclua texto adicional

Formato de resposta:
{"description": "sua descrição aqui"}`, entry.Name)

	body, err := json.Marshal(generateRequest{
		Model:  c.mdl,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate call failed with status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}

	var reply struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(genResp.Response), &reply); err != nil {
		return "", fmt.Errorf("malformed model reply: %w", err)
	}
	if reply.Description == "" {
		return "", fmt.Errorf("model reply missing description field")
	}

	// Truncate on a rune boundary so accented replies stay valid UTF-8.
	description := reply.Description
	if runes := []rune(description); len(runes) > maxDescriptionLen {
		description = string(runes[:maxDescriptionLen])
	}

	return description, nil
}
