// Package tool provides example flow.Component implementations that wrap
// external side effects, grounded on the teacher's tool package.
package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/arrowrift/flowengine/flow"
)

// HTTPComponent issues one HTTP request per Process call, reading its
// parameters from Context.Data and writing the response back. It supports
// GET and POST; a non-2xx response is not itself an error — that routing
// decision is left to the flow via ActivePort.
type HTTPComponent struct {
	client     *http.Client
	inputPath  string
	outputPath string
}

// NewHTTPComponent builds an HTTP component with default settings.
func NewHTTPComponent() *HTTPComponent {
	return &HTTPComponent{
		client:     &http.Client{},
		inputPath:  "http_request",
		outputPath: "http_response",
	}
}

// Init applies optional path overrides: input_path, output_path.
func (h *HTTPComponent) Init(config map[string]flow.Value) error {
	if v, ok := config["input_path"].(string); ok && v != "" {
		h.inputPath = v
	}
	if v, ok := config["output_path"].(string); ok && v != "" {
		h.outputPath = v
	}
	return nil
}

func (h *HTTPComponent) Setup(fctx *flow.Context) error    { return nil }
func (h *HTTPComponent) Teardown(fctx *flow.Context) error { return nil }
func (h *HTTPComponent) ValidateConfig() []string          { return nil }
func (h *HTTPComponent) HealthCheck(ctx context.Context) bool { return true }

// Process reads {method, url, headers, body} from Context.Data at
// h.inputPath and writes {status_code, headers, body} to h.outputPath.
// ActivePort is set to "ok" or "error" so graph edges can route on the
// outcome of the call.
func (h *HTTPComponent) Process(ctx context.Context, fctx *flow.Context) error {
	if err := flow.CheckDeadline(fctx); err != nil {
		return err
	}

	request, _ := fctx.Get(h.inputPath).(map[string]flow.Value)
	if request == nil {
		return fmt.Errorf("http component: %q is not a request object", h.inputPath)
	}

	urlStr, ok := request["url"].(string)
	if !ok || urlStr == "" {
		return fmt.Errorf("http component: url parameter required (string)")
	}

	method := "GET"
	if m, ok := request["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != "GET" && method != "POST" {
		return fmt.Errorf("http component: unsupported method %q (supported: GET, POST)", method)
	}

	var body io.Reader
	if bodyStr, ok := request["body"].(string); ok && bodyStr != "" {
		body = bytes.NewBufferString(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return fmt.Errorf("http component: building request: %w", err)
	}
	if headers, ok := request["headers"].(map[string]flow.Value); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(key, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		flow.SetOutputPort(fctx, "error")
		return fmt.Errorf("http component: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		flow.SetOutputPort(fctx, "error")
		return fmt.Errorf("http component: reading response: %w", err)
	}

	respHeaders := make(map[string]flow.Value, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 1 {
			respHeaders[key] = values[0]
		} else {
			vs := make([]flow.Value, len(values))
			for i, v := range values {
				vs[i] = v
			}
			respHeaders[key] = vs
		}
	}

	fctx.Set(h.outputPath, map[string]flow.Value{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	})

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		flow.SetOutputPort(fctx, "ok")
	} else {
		flow.SetOutputPort(fctx, "error")
	}
	return nil
}
