package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout 单次探测超时
	DefaultTimeout = 30 * time.Second

	defaultMaxBody = 1 << 20
	previewSize    = 200
)

// Config 探测客户端配置
type Config struct {
	Timeout      time.Duration
	RateLimit    float64 // 每秒请求数，0 表示不限速
	Burst        int
	MaxBodyBytes int64
	UserAgent    string
}

// Request 单次探测请求
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers map[string]string
	// Body 非 nil 时序列化为 JSON
	Body    any
	Timeout time.Duration
}

// Response 探测结果
type Response struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// Success 2xx
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// LatencyMS 毫秒延迟
func (r *Response) LatencyMS() int64 {
	return r.Latency.Milliseconds()
}

// Preview body 前 n 个字符
func (r *Response) Preview(n int) string {
	s := strings.TrimSpace(string(r.Body))
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Client HTTP 探测客户端：一次请求，一个超时，不重试
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	maxBody    int64
	userAgent  string
}

// New 创建客户端
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "migration-auditor"
	}

	c := &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
		maxBody:    maxBody,
		userAgent:  userAgent,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// Do 发送一次探测；任意状态码都返回 Response，只有传输层失败返回 *TransportError
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, URL: req.URL, Timeout: isTimeoutErr(err), Err: err}
		}
	}

	httpReq, err := c.newHTTPRequest(ctx, method, req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: req.URL, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: method, URL: req.URL, Timeout: isTimeoutErr(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	latency := time.Since(start)
	if err != nil {
		return nil, &TransportError{Method: method, URL: req.URL, Timeout: isTimeoutErr(err), Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Latency:    latency,
	}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, method string, req Request) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}
