package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
)

// State is the claimed access URL saved between runs.
type State struct {
	ClaimedAt time.Time `json:"claimed_at"`
	AccessURL string    `json:"access_url"`
}

// LoadState reads a saved access URL.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if state.AccessURL == "" {
		return nil, fmt.Errorf("%s holds no access URL", path)
	}
	return &state, nil
}

// SaveState writes the access URL readable by the owner only. The URL embeds
// credentials.
func SaveState(path string, state State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Claim exchanges a base64 setup token for an access URL. A setup token can
// be claimed once; later claims fail with 403.
func Claim(ctx context.Context, client *http.Client, token string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", common.Validationf("SimpleFIN setup token is not valid base64")
	}
	claimURL := strings.TrimSpace(string(decoded))
	if u, err := url.Parse(claimURL); err != nil || u.Scheme == "" || u.Host == "" {
		return "", common.Validationf("SimpleFIN setup token does not hold a claim URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Length", "0")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to claim SimpleFIN token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read claim response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: SimpleFIN setup token was already claimed or is invalid", common.ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("SimpleFIN claim returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	accessURL := strings.TrimSpace(string(body))
	if _, err := url.Parse(accessURL); err != nil || accessURL == "" {
		return "", fmt.Errorf("SimpleFIN claim returned an unusable access URL")
	}
	return accessURL, nil
}
