package chain

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kelsos/chainbot/internal/logger"
)

// EndpointProbe checks that the chain API endpoint answers HTTP requests
type EndpointProbe struct {
	endpoint   string
	httpClient *http.Client
}

func NewEndpointProbe(endpoint string) *EndpointProbe {
	return &EndpointProbe{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Ping succeeds if the endpoint answers with anything but a server error.
// An unconfigured endpoint is reported as healthy.
func (p *EndpointProbe) Ping(ctx context.Context) error {
	if p.endpoint == "" {
		return nil
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.Debug("Chain endpoint %s unreachable after %v: %v", p.endpoint, time.Since(start), err)
		return fmt.Errorf("chain endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("chain endpoint answered with status %d", resp.StatusCode)
	}

	return nil
}
