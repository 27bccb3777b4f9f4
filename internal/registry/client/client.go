// Package client fetches the service provider directory document from its
// external source over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"rtpbridge/internal/registry/models"
)

// Client retrieves the registry JSON document.
type Client struct {
	sourceURL string
	http      *http.Client
}

// New builds a registry source client. httpClient may be nil, in which case
// http.DefaultClient is used.
func New(sourceURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{sourceURL: sourceURL, http: httpClient}
}

// Fetch downloads and decodes the full directory snapshot.
func (c *Client) Fetch(ctx context.Context) (models.RegistryData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceURL, nil)
	if err != nil {
		return models.RegistryData{}, fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.RegistryData{}, fmt.Errorf("fetch registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.RegistryData{}, fmt.Errorf("fetch registry: unexpected status %d", resp.StatusCode)
	}

	var data models.RegistryData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return models.RegistryData{}, fmt.Errorf("decode registry document: %w", err)
	}
	return data, nil
}
