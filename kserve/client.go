package kserve

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const (
	// headerContentLength carries the size of the JSON part of a response that
	// uses the binary tensor data extension
	headerContentLength = "Inference-Header-Content-Length"

	// DefaultTimeout is the per request timeout
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the number of attempts made when the server can not
	// be reached
	DefaultRetries = 3
	// DefaultRetryInterval is the wait between attempts
	DefaultRetryInterval = time.Second
)

// Client talks to a model server over the KServe v2 REST protocol
type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	timeout       time.Duration
	retries       int
	retryInterval time.Duration
	binaryOutput  bool
	logger        *zap.SugaredLogger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetries sets the number of attempts and the wait between them used when
// the server can not be reached
func WithRetries(n int, interval time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.retryInterval = interval
	}
}

// WithBinaryOutput requests output tensors using the binary data extension
func WithBinaryOutput(enabled bool) Option {
	return func(c *Client) {
		c.binaryOutput = enabled
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a client for the model server at address, eg:
// http://localhost:8000
func NewClient(address string, opts ...Option) (*Client, error) {

	u, err := url.Parse(address)

	if err != nil {
		return nil, errors.Wrapf(err, "invalid model server address %q", address)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("model server address %q needs a scheme and host", address)
	}

	c := &Client{
		baseURL:       u,
		httpClient:    http.DefaultClient,
		timeout:       DefaultTimeout,
		retries:       DefaultRetries,
		retryInterval: DefaultRetryInterval,
		logger:        zap.NewNop().Sugar(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.retries < 1 {
		c.retries = 1
	}

	return c, nil
}

// Ready probes server readiness
func (c *Client) Ready(ctx context.Context) error {
	return c.probe(ctx, "v2/health/ready")
}

// ModelReady probes readiness of a model, version may be empty
func (c *Client) ModelReady(ctx context.Context, model, version string) error {
	return c.probe(ctx, modelPath(model, version)+"/ready")
}

// Metadata returns the input and output description of a model
func (c *Client) Metadata(ctx context.Context, model, version string) (*ModelMetadata, error) {

	resp, err := c.do(ctx, http.MethodGet, modelPath(model, version), nil)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	var md ModelMetadata

	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, errors.Wrapf(err, "error decoding metadata of model %s", model)
	}

	return &md, nil
}

// Infer runs inference and returns the outputs with their values decoded
func (c *Client) Infer(ctx context.Context, req InferRequest) (*InferResponse, error) {

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if c.binaryOutput {
		if req.Parameters == nil {
			req.Parameters = Parameters{}
		}
		req.Parameters["binary_data_output"] = true
	}

	body, err := json.Marshal(req)

	if err != nil {
		return nil, errors.Wrap(err, "error encoding infer request")
	}

	start := time.Now()

	resp, err := c.do(ctx, http.MethodPost, modelPath(req.Model, req.Version)+"/infer", body)

	if err != nil {
		return nil, errors.Wrapf(err, "infer request %s to model %s", req.ID, req.Model)
	}

	defer resp.Body.Close()

	res, err := decodeInferResponse(resp)

	if err != nil {
		return nil, errors.Wrapf(err, "infer response %s from model %s", req.ID, req.Model)
	}

	c.logger.Debugw("inference complete", "model", req.Model, "id", req.ID,
		"outputs", len(res.Outputs), "elapsed", time.Since(start))

	return res, nil
}

// probe issues a GET readiness request
func (c *Client) probe(ctx context.Context, path string) error {

	resp, err := c.do(ctx, http.MethodGet, path, nil)

	if err != nil {
		var serr *ServerError
		if errors.As(err, &serr) {
			return errors.Wrapf(ErrServerNotReady, "%s returned %d", path, serr.StatusCode)
		}
		return err
	}

	resp.Body.Close()

	return nil
}

// do sends the request retrying when the server can not be reached.  Non 2xx
// responses are returned as *ServerError and are not retried.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {

	target := c.baseURL.JoinPath(path).String()

	var lastErr error

	for attempt := 0; attempt < c.retries; attempt++ {

		if attempt > 0 {
			c.logger.Warnw("retrying model server request", "url", target,
				"attempt", attempt+1, "error", lastErr)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryInterval):
			}
		}

		resp, err := c.send(ctx, method, target, body)

		if err == nil {
			return resp, nil
		}

		// only connection failures are retried, a server that is slow to
		// answer would just time out again
		var serr *ServerError
		if errors.As(err, &serr) || ctx.Err() != nil ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		lastErr = err
	}

	return nil, errors.Wrapf(lastErr, "giving up after %d attempts", c.retries)
}

func (c *Client) send(ctx context.Context, method, target string, body []byte) (*http.Response, error) {

	// the timeout covers reading the body, so the cancel func is released when
	// the body is closed
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)

	var rdr io.Reader

	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, target, rdr)

	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "error building request")
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)

	if err != nil {
		cancel()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()

		serr := &ServerError{StatusCode: resp.StatusCode}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

		if jerr := json.Unmarshal(msg, serr); jerr != nil || serr.Message == "" {
			serr.Message = strings.TrimSpace(string(msg))
		}

		return nil, serr
	}

	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}

	return resp, nil
}

// cancelBody releases the request context once the body is closed
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// decodeInferResponse splits a JSON or binary extension response and decodes
// every output to float32 values
func decodeInferResponse(resp *http.Response) (*InferResponse, error) {

	payload, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, errors.Wrap(err, "error reading response")
	}

	header := payload
	var raw []byte

	if hl := resp.Header.Get(headerContentLength); hl != "" {
		n, err := strconv.Atoi(hl)

		if err != nil || n < 0 || n > len(payload) {
			return nil, errors.Errorf("invalid %s %q", headerContentLength, hl)
		}

		header, raw = payload[:n], payload[n:]
	}

	var res InferResponse

	if err := json.Unmarshal(header, &res); err != nil {
		return nil, errors.Wrap(err, "error decoding response")
	}

	for i := range res.Outputs {
		out := &res.Outputs[i]

		if size, ok := out.Parameters["binary_data_size"]; ok {
			n, err := cast.ToIntE(size)

			if err != nil {
				return nil, errors.Wrapf(err, "output %s binary_data_size", out.Name)
			}

			if n > len(raw) {
				return nil, errors.Errorf("output %s needs %d bytes, %d remain",
					out.Name, n, len(raw))
			}

			out.Values, err = decodeBinary(out.Datatype, raw[:n])

			if err != nil {
				return nil, errors.Wrapf(err, "output %s", out.Name)
			}

			raw = raw[n:]
			continue
		}

		if len(out.Data) == 0 {
			continue
		}

		out.Values, err = decodeJSON(out.Datatype, out.Data)

		if err != nil {
			return nil, errors.Wrapf(err, "output %s", out.Name)
		}
	}

	return &res, nil
}

// modelPath returns the URL path of a model, optionally pinned to a version
func modelPath(model, version string) string {

	p := "v2/models/" + url.PathEscape(model)

	if version != "" {
		p += "/versions/" + url.PathEscape(version)
	}

	return p
}
