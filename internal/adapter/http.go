package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"migration-auditor/internal/probe"
)

// Prober 发送单次 HTTP 探测
type Prober interface {
	Do(ctx context.Context, req probe.Request) (*probe.Response, error)
}

// HTTPConfig 表内容 API 配置
type HTTPConfig struct {
	// ContentURL 表内容地址，{table_id} 会被替换
	ContentURL string
	// Token 元数据 API token，以 Bearer 方式发送
	Token string
}

// HTTPSource 通过表内容 API 读记录
type HTTPSource struct {
	prober Prober
	cfg    HTTPConfig
}

// NewHTTPSource 创建 HTTP 记录源
func NewHTTPSource(prober Prober, cfg HTTPConfig) (*HTTPSource, error) {
	if cfg.ContentURL == "" {
		return nil, fmt.Errorf("HTTP 记录源需要 content_url")
	}
	if !strings.Contains(cfg.ContentURL, "{table_id}") {
		return nil, fmt.Errorf("content_url 必须包含 {table_id}: %s", cfg.ContentURL)
	}
	return &HTTPSource{prober: prober, cfg: cfg}, nil
}

func (s *HTTPSource) contentURL(table TableRef) string {
	return strings.ReplaceAll(s.cfg.ContentURL, "{table_id}", strconv.Itoa(table.ID))
}

func (s *HTTPSource) headers() map[string]string {
	if s.cfg.Token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + s.cfg.Token}
}

// SampleRows GET content?page=1&per_page=limit
func (s *HTTPSource) SampleRows(ctx context.Context, table TableRef, limit int) (*Page, error) {
	resp, err := s.prober.Do(ctx, probe.Request{
		Method:  http.MethodGet,
		URL:     s.contentURL(table),
		Query:   url.Values{"page": {"1"}, "per_page": {strconv.Itoa(limit)}},
		Headers: s.headers(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success() {
		return nil, probe.NewRemoteError(resp)
	}

	page, err := parsePage(resp.Body)
	if err != nil {
		return nil, err
	}
	page.StatusCode = resp.StatusCode
	page.Latency = resp.Latency
	return page, nil
}

// Exists field 为 id 时直接取记录，否则走 content/search
func (s *HTTPSource) Exists(ctx context.Context, table TableRef, field string, value any) (bool, error) {
	if field == "" || field == "id" {
		resp, err := s.prober.Do(ctx, probe.Request{
			Method:  http.MethodGet,
			URL:     s.contentURL(table) + "/" + url.PathEscape(FormatValue(value)),
			Headers: s.headers(),
		})
		if err != nil {
			return false, err
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return false, nil
		case resp.Success():
			body := gjson.ParseBytes(resp.Body)
			return body.Exists() && body.Type != gjson.Null, nil
		default:
			return false, probe.NewRemoteError(resp)
		}
	}

	resp, err := s.prober.Do(ctx, probe.Request{
		Method:  http.MethodPost,
		URL:     s.contentURL(table) + "/search",
		Headers: s.headers(),
		Body: map[string]any{
			"page":     1,
			"per_page": 1,
			"search":   map[string]any{field: value},
		},
	})
	if err != nil {
		return false, err
	}
	if !resp.Success() {
		return false, probe.NewRemoteError(resp)
	}
	page, err := parsePage(resp.Body)
	if err != nil {
		return false, err
	}
	return page.RecordCount() > 0, nil
}

// Close 无连接需要释放
func (s *HTTPSource) Close() error {
	return nil
}

// parsePage 兼容 {"items":[...],"itemsTotal":N} 和裸数组两种响应
func parsePage(body []byte) (*Page, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("响应不是合法 JSON")
	}

	root := gjson.ParseBytes(body)
	items := root
	if !root.IsArray() {
		items = root.Get("items")
		if !items.Exists() {
			return nil, fmt.Errorf("响应缺少 items 字段")
		}
	}

	page := &Page{}
	for _, item := range items.Array() {
		row, ok := item.Value().(map[string]any)
		if !ok {
			continue
		}
		page.Rows = append(page.Rows, Row(row))
	}

	if total := root.Get("itemsTotal"); total.Exists() {
		page.Total = total.Int()
		page.TotalKnown = true
	}
	return page, nil
}
