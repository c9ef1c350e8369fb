package atlasapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RefreshFunc exchanges a refresh token for a fresh token pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (access, refresh string, err error)

type refreshPayload struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresher builds the RefreshFunc the session store uses for silent
// token rotation. The auth service itself is external; this is the only
// call the core makes against it.
func Refresher(baseURL string, hc HTTPClient) RefreshFunc {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}

	return func(ctx context.Context, refreshToken string) (string, string, error) {
		jsonBytes, err := json.Marshal(refreshPayload{RefreshToken: refreshToken})
		if err != nil {
			return "", "", fmt.Errorf("encoding refresh request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/refresh", bytes.NewBuffer(jsonBytes))
		if err != nil {
			return "", "", fmt.Errorf("building refresh request: %w", err)
		}
		req.Header.Add("Content-Type", "application/json")

		resp, err := hc.Do(req)
		if err != nil {
			return "", "", &APIError{Kind: KindUnreachable, Msg: err.Error()}
		}
		defer drain(resp)

		if ae := apiErrorFromResponse(resp); ae != nil {
			return "", "", ae
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", "", &APIError{Kind: KindUnreachable, Msg: err.Error()}
		}
		var tokens refreshResponse
		if err := json.Unmarshal(body, &tokens); err != nil {
			return "", "", fmt.Errorf("decoding refresh response: %w", err)
		}
		return tokens.AccessToken, tokens.RefreshToken, nil
	}
}
