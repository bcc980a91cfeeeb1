package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"globalblock/internal/status"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

func apiPost(path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(serverURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}

	return doRequest(req, out)
}

func apiGet(path string, query url.Values, out any) error {
	target := strings.TrimRight(serverURL, "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}

	return doRequest(req, out)
}

func doRequest(req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if out != nil {
		if jsonErr := json.Unmarshal(body, out); jsonErr == nil {
			return nil
		}
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed with HTTP %d", resp.StatusCode)
	}
	return nil
}

// commandOutcome posts a command and renders its structured outcome as one
// line, suitable for both single and bulk invocations.
func commandOutcome(path string, payload any, label string) error {
	var outcome status.Status
	if err := apiPost(path, payload, &outcome); err != nil {
		return err
	}

	if outcome.Succeeded() {
		if outcome.BlockID != 0 {
			fmt.Printf("%s: %s (block #%d)\n", label, outcome.Code, outcome.BlockID)
		} else {
			fmt.Printf("%s: %s\n", label, outcome.Code)
		}
		return nil
	}
	return fmt.Errorf("%s: %s", label, outcome.Code)
}
