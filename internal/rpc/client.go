// Package rpc reaches the external Styx program endpoint over HTTP.
// It is the only implementation of the submit transport boundary; the
// core never assumes more than "bytes in, receipt or typed failure
// out".
package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/QuarksBlueFoot/styxctl/internal/submit"
)

type submitRequest struct {
	Payload string `json:"payload"`
	Signer  string `json:"signer"`
	Key     string `json:"key,omitempty"`
}

type submitResponse struct {
	OK    bool            `json:"ok"`
	Error *responseError  `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type submitData struct {
	Signature string            `json:"signature"`
	Handles   map[string]string `json:"handles,omitempty"`
}

// Client submits instruction buffers to one program endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient constructs a transport bound to one endpoint URL.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		http:     &http.Client{Timeout: timeout},
	}
}

// ValidSignerKey reports whether pk decodes as a 32-byte base58 key.
func ValidSignerKey(pk string) bool {
	raw, err := base58.Decode(strings.TrimSpace(pk))
	return err == nil && len(raw) == 32
}

// Submit implements submit.Transport. Connection and timeout failures
// map to TransportError; an explicit ok=false response maps to
// RejectedError carrying the program's code and message.
func (c *Client) Submit(ctx context.Context, payload []byte, signer submit.Signer) (submit.Receipt, error) {
	if c.endpoint == "" {
		return submit.Receipt{}, &submit.TransportError{Op: "submit", Err: fmt.Errorf("rpc: endpoint required")}
	}

	body, err := json.Marshal(submitRequest{
		Payload: base64.StdEncoding.EncodeToString(payload),
		Signer:  signer.PublicKey,
		Key:     signer.KeyHandle,
	})
	if err != nil {
		return submit.Receipt{}, &submit.TransportError{Op: "encode", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return submit.Receipt{}, &submit.TransportError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return submit.Receipt{}, &submit.TransportError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return submit.Receipt{}, &submit.TransportError{Op: "post", Err: fmt.Errorf("rpc: server status %d", resp.StatusCode)}
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return submit.Receipt{}, &submit.TransportError{Op: "decode", Err: err}
	}

	if !out.OK {
		rej := &submit.RejectedError{}
		if out.Error != nil {
			rej.Code = out.Error.Code
			rej.Message = strings.TrimSpace(out.Error.Message)
		}
		return submit.Receipt{}, rej
	}

	var data submitData
	if len(out.Data) > 0 {
		if err := json.Unmarshal(out.Data, &data); err != nil {
			return submit.Receipt{}, &submit.TransportError{Op: "decode", Err: err}
		}
	}

	return submit.Receipt{
		Signature: data.Signature,
		Handles:   data.Handles,
		Detail:    "accepted",
	}, nil
}
