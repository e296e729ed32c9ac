package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const cronSecretHeader = "X-Internal-Cron-Secret"

type client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func clientFrom(v *viper.Viper) *client {
	timeout := v.GetDuration("timeout")
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &client{
		baseURL: strings.TrimRight(v.GetString("server"), "/"),
		secret:  v.GetString("secret"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *client) post(ctx context.Context, path string) ([]byte, error) {
	if c.secret == "" {
		return nil, fmt.Errorf("no cron secret: pass --secret or set INTERNAL_CRON_SECRET")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(cronSecretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
