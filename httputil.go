package valutatrade

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GetJSON performs an HTTP GET and decodes the JSON response body into data.
// Provider packages share it so that status handling stays uniform.
func GetJSON(ctx context.Context, client *http.Client, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", req.URL.Host, req.URL.Path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(data); err != nil {
		return fmt.Errorf("cannot decode response of %v%v: %w", req.URL.Host, req.URL.Path, err)
	}
	return nil
}
