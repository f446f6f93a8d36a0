package backend

import (
	"bytes"
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

func newClient(httpClient *http.Client, token string) *client {
	return &client{
		httpClient: httpClient,
		token:      token,
	}
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// POSTAndUnmarshalJson posts in as JSON and decodes the answer into out.
func (c *client) POSTAndUnmarshalJson(ctx context.Context, link string, in, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "Failed marshal")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "Failed new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "Failed do request")
		}
		return &checkout.ConnectionError{Err: err}
	}
	defer resp.Body.Close()
	b, err = io.ReadAll(resp.Body)
	if err != nil {
		return &checkout.ConnectionError{Err: errors.Wrap(err, "Failed read all body")}
	}
	if err := statusError(resp.StatusCode, b); err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Wrap(err, "Failed unmarshal")
	}
	return nil
}

// statusError maps an unsuccessful answer to an error.
func statusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return &checkout.ConnectionError{Err: errors.Errorf("backend unavailable: %d", status)}
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Code != 0 {
		return &checkout.CodedError{Code: eb.Code, Message: eb.Message}
	}
	return errors.Errorf("unexpected status %d", status)
}
