package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// APIClient talks to a running hostr daemon over its HTTP API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080/api"
	}
	if timeout == 0 {
		// Install can take minutes; the client must not give up before the
		// daemon's install ceiling.
		timeout = 6 * time.Minute
	}
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsReachable checks whether the daemon answers on its health endpoint.
func (c *APIClient) IsReachable() bool {
	resp, err := c.client.Get(c.baseURL + "/healthz")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// do issues a request and decodes the JSON response into out (when non-nil).
func (c *APIClient) do(method, path string, query url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var ae apiError
		if err := json.NewDecoder(resp.Body).Decode(&ae); err != nil || ae.Error == "" {
			return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("%s", ae.Error)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func nameQuery(name string) url.Values {
	q := url.Values{}
	q.Set("name", name)
	return q
}

type okResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
	PID    int    `json:"pid"`
}

func (c *APIClient) Create(name string) (okResult, error) {
	var out okResult
	err := c.do(http.MethodPost, "/create", nil, map[string]string{"name": name}, &out)
	return out, err
}

func (c *APIClient) List() ([]string, error) {
	var out struct {
		Projects []string `json:"projects"`
	}
	err := c.do(http.MethodGet, "/projects", nil, nil, &out)
	return out.Projects, err
}

func (c *APIClient) Start(name string) (okResult, error) {
	var out okResult
	err := c.do(http.MethodPost, "/start", nameQuery(name), nil, &out)
	return out, err
}

func (c *APIClient) Stop(name string) (okResult, error) {
	var out okResult
	err := c.do(http.MethodPost, "/stop", nameQuery(name), nil, &out)
	return out, err
}

func (c *APIClient) Restart(name string) (okResult, error) {
	var out okResult
	err := c.do(http.MethodPost, "/restart", nameQuery(name), nil, &out)
	return out, err
}

type statusResult struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	PID     int    `json:"pid"`
	Text    string `json:"text"`
}

func (c *APIClient) Status(name string) (statusResult, error) {
	var out statusResult
	err := c.do(http.MethodGet, "/status", nameQuery(name), nil, &out)
	return out, err
}

type logsResult struct {
	Text      string `json:"text"`
	Empty     bool   `json:"empty"`
	TotalSize int64  `json:"total_size"`
}

func (c *APIClient) Logs(name string, lines int) (logsResult, error) {
	q := nameQuery(name)
	if lines > 0 {
		q.Set("lines", fmt.Sprintf("%d", lines))
	}
	var out logsResult
	err := c.do(http.MethodGet, "/logs", q, nil, &out)
	return out, err
}

type usageResult struct {
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
	Text       string  `json:"text"`
}

func (c *APIClient) Usage(name string) (usageResult, error) {
	var out usageResult
	err := c.do(http.MethodGet, "/usage", nameQuery(name), nil, &out)
	return out, err
}

func (c *APIClient) Install(name string) (okResult, error) {
	var out okResult
	err := c.do(http.MethodPost, "/install", nameQuery(name), nil, &out)
	return out, err
}

func (c *APIClient) SetCommand(name, command string) (okResult, error) {
	var out okResult
	err := c.do(http.MethodPost, "/command", nameQuery(name), map[string]string{"command": command}, &out)
	return out, err
}

func (c *APIClient) Delete(name string) (okResult, error) {
	var out okResult
	err := c.do(http.MethodDelete, "/delete", nameQuery(name), nil, &out)
	return out, err
}
