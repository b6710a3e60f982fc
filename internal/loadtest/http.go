package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/pulse/internal/adapters/http/api"
)

// client issues API calls on behalf of arbitrary senders.
type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{base: base, http: &http.Client{Timeout: timeout}}
}

// apiError is the error body returned by the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// call sends a request and decodes a 200 response into out. Any other
// status is returned with the decoded error body.
func (c *client) call(ctx context.Context, method, path string, from *common.Address, body, out any) (int, apiError, error) {
	var rdr io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, apiError{}, fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return 0, apiError{}, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if from != nil {
		req.Header.Set(api.HeaderCaller, from.Hex())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, apiError{}, fmt.Errorf("%w: %s %s: %w", ErrRequest, method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, apiError{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e apiError
		_ = json.Unmarshal(data, &e)
		return resp.StatusCode, e, nil
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, apiError{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, apiError{}, nil
}
