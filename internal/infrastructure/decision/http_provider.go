package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
)

// HTTPProvider fetches one decision per call from the external
// decision-making service. The output is untrusted: the orchestrator
// validates every symbol before acting on it.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
}

func NewHTTPProvider(endpoint string) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		// Per-call deadlines come from the caller's context; the client
		// timeout is only a safety net against a missing one.
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *HTTPProvider) NextDecision(ctx context.Context) (*domain.Decision, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/v1/decision", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("decision request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decision service returned %d: %s", resp.StatusCode, string(body))
	}

	var dec domain.Decision
	if err := json.Unmarshal(body, &dec); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	return &dec, nil
}
