package invoicing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/gebv/checkout"
)

type client struct {
	httpClient *http.Client
	token      string
}

func newClient(token string) *client {
	return &client{
		httpClient: &http.Client{},
		token:      token,
	}
}

// GET returns the body and its content type.
func (c *client) GET(ctx context.Context, link string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "Failed new request")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", errors.Wrap(ctx.Err(), "Failed do request")
		}
		return nil, "", &checkout.ConnectionError{Err: err}
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &checkout.ConnectionError{Err: errors.Wrap(err, "Failed read all body")}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ce := &checkout.CodedError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(b, &body) == nil && body.Code != 0 {
			ce.Code, ce.Message = body.Code, body.Message
		}
		return nil, "", ce
	}
	return b, resp.Header.Get("Content-Type"), nil
}
