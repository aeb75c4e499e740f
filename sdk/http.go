package practice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sethvargo/go-retry"

	"github.com/mrchandrayee/interview-practice/pkg/core"
)

// doJSON issues one JSON request against the platform API, decoding the
// response into out when it is non-nil. Retryable failures (connection
// errors, 429, 5xx) are retried with exponential backoff up to the client's
// retry budget.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	endpoint, err := c.apiEndpoint(path)
	if err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return core.NewInvalidRequestError(fmt.Sprintf("encode request body: %v", err))
		}
	}

	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(c.retryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return core.NewInvalidRequestError(fmt.Sprintf("build request: %v", err))
		}
		req.Header = c.authHeader()
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(core.NewConnectionError(fmt.Sprintf("%s %s: %v", method, endpoint, err)))
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := decodeErrorResponse(resp, method, endpoint)
			if apiErr.IsRetryable() {
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}

		if out == nil {
			return nil
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return core.NewAPIError(fmt.Sprintf("read response from %s: %v", endpoint, err))
		}
		if err := json.Unmarshal(data, out); err != nil {
			return core.NewAPIError(fmt.Sprintf("decode response from %s: %v", endpoint, err))
		}
		return nil
	})
}

func decodeErrorResponse(resp *http.Response, method, endpoint string) *core.Error {
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &body)

	message := body.Detail
	if message == "" {
		message = body.Message
	}
	if message == "" {
		message = body.Error
	}
	if message == "" {
		message = fmt.Sprintf("%s %s returned status %d", method, endpoint, resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.NewAuthenticationError(message)
	case resp.StatusCode == http.StatusNotFound:
		return core.NewNotFoundError(message)
	case resp.StatusCode == http.StatusTooManyRequests:
		return core.NewRateLimitError(message, 0)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return core.NewInvalidRequestError(message)
	default:
		return core.NewAPIError(message)
	}
}
