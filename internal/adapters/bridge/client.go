package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

const maxResponseBytes = 1 << 20

var ErrNotFound = errors.New("bridge resource not found")

// Client speaks the JSON wallet bridge protocol shared by local wallet bridges and
// the pairing relay.
type Client struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c Client) Do(ctx context.Context, method string, path string, body any, out any) error {
	endpoint, err := buildURL(c.BaseURL, path)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode bridge request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create bridge request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s %s: %w", method, path, decodeError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode bridge response: %w", err)
	}
	return nil
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// requestContext bounds requests without a caller deadline. Approval requests block
// until the user answers, so the default is generous.
func (c Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 2 * time.Minute
	}

	return context.WithTimeout(ctx, requestTimeout)
}

// decodeError maps bridge status codes onto the wallet failure taxonomy.
func decodeError(resp *http.Response) error {
	var payload errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err := json.Unmarshal(data, &payload); err != nil || (payload.Error == "" && payload.Message == "") {
		payload.Message = strings.TrimSpace(string(data))
	}

	message := payload.Message
	if message == "" {
		message = payload.Error
	}
	if message == "" {
		message = fmt.Sprintf("status %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUserRejected, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedParams, message)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", domain.ErrHandshakeTimeout, message)
	default:
		return fmt.Errorf("status %d: %s", resp.StatusCode, message)
	}
}

func buildURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("bridge url is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse bridge url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("bridge url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("bridge url host is required")
	}

	parsed.RawQuery = ""
	return strings.TrimSuffix(parsed.String(), "/") + "/" + strings.TrimPrefix(path, "/"), nil
}
