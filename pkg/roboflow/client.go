// Package roboflow is a minimal client for the Roboflow serverless
// workflow API. It covers exactly what the service needs: running a
// hosted workflow against a single image, referenced either by local
// path or by URL.
package roboflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://serverless.roboflow.com"

// Client runs hosted workflows against the Roboflow API.
type Client interface {
	// RunWorkflow executes a workflow on one image and returns the raw
	// decoded response. The shape of the result is vendor-defined and
	// not contractually guaranteed; callers must treat it as untrusted.
	RunWorkflow(ctx context.Context, req RunWorkflowRequest) (any, error)
}

// RunWorkflowRequest identifies a workflow invocation.
type RunWorkflowRequest struct {
	WorkspaceName string
	WorkflowID    string
	// Image is a local file path or an http(s) URL.
	Image    string
	UseCache bool
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Roboflow API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// imageInput is one entry of the workflow "inputs" block.
type imageInput struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type runWorkflowBody struct {
	APIKey   string                `json:"api_key"`
	Inputs   map[string]imageInput `json:"inputs"`
	UseCache bool                  `json:"use_cache"`
}

func (c *httpClient) RunWorkflow(ctx context.Context, req RunWorkflowRequest) (any, error) {
	input, err := buildImageInput(req.Image)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(runWorkflowBody{
		APIKey:   c.apiKey,
		Inputs:   map[string]imageInput{"image": input},
		UseCache: req.UseCache,
	})
	if err != nil {
		return nil, eris.Wrap(err, "roboflow: marshal request")
	}

	url := c.baseURL + "/infer/workflows/" + req.WorkspaceName + "/" + req.WorkflowID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "roboflow: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "roboflow: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "roboflow: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("roboflow: workflow %s: unexpected status %d: %s",
			req.WorkflowID, resp.StatusCode, string(respBody))
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, eris.Wrap(err, "roboflow: unmarshal response")
	}

	// The API wraps workflow results in an "outputs" field; older
	// deployments return the result object directly. Hand back whichever
	// is present and let the extraction layer normalize the rest.
	if obj, ok := decoded.(map[string]any); ok {
		if outputs, ok := obj["outputs"]; ok {
			return outputs, nil
		}
	}
	return decoded, nil
}

// buildImageInput encodes a local file as base64 or passes a URL through.
func buildImageInput(image string) (imageInput, error) {
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return imageInput{Type: "url", Value: image}, nil
	}

	data, err := os.ReadFile(image)
	if err != nil {
		return imageInput{}, eris.Wrapf(err, "roboflow: read image %s", image)
	}
	return imageInput{Type: "base64", Value: base64.StdEncoding.EncodeToString(data)}, nil
}
