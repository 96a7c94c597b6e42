package connections

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/localloop/marketplace/internal/app/domain/connection"
	"github.com/localloop/marketplace/pkg/logger"
)

// HTTPNotifier posts transition events to a webhook endpoint. Delivery is
// best effort; the service treats any error as non-fatal.
type HTTPNotifier struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

var _ Notifier = (*HTTPNotifier)(nil)

// NewHTTPNotifier constructs a notifier for the given webhook endpoint.
func NewHTTPNotifier(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPNotifier, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("notifier endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse notifier endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("connections-notifier")
	}
	return &HTTPNotifier{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		log:      log,
	}, nil
}

func (n *HTTPNotifier) NotifyTransition(ctx context.Context, conn connection.Connection) error {
	payload, err := json.Marshal(map[string]any{
		"connection_id":        conn.ID,
		"buyer_business_id":    conn.BuyerBusinessID,
		"supplier_business_id": conn.SupplierBusinessID,
		"status":               conn.Status,
		"updated_at":           conn.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification status %d", resp.StatusCode)
	}
	return nil
}
