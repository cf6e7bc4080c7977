package validator

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
	"migration-auditor/internal/probe"
)

// handlerReachableMarkers 500 响应中出现这些片段说明处理函数已执行，只是 mock 事件不完整
var handlerReachableMarkers = []string{
	"Unable to locate var",
	"Unable to locate input",
}

// WebhookValidator webhook 接收端校验
type WebhookValidator struct {
	store  *catalog.Store
	prober Prober
}

// NewWebhookValidator 创建 webhook 校验器
func NewWebhookValidator(store *catalog.Store, prober Prober) *WebhookValidator {
	return &WebhookValidator{store: store, prober: prober}
}

// Validate 发送 mock payload 并按预期行为判定
func (v *WebhookValidator) Validate(ctx context.Context, w catalog.Webhook) outcome.Outcome {
	opts := []outcome.Option{
		outcome.WithGroup(string(w.ExpectedBehavior)),
		outcome.WithMeta("integration", w.Integration),
		outcome.WithMeta("path", w.Path),
		outcome.WithMeta("expected_behavior", string(w.ExpectedBehavior)),
	}

	rawURL, err := resolveURL(v.store, w.APIGroup, w.Path, TestIdentity{})
	if err != nil {
		return outcome.FromError(catalog.KindWebhook, w.Name, err, opts...)
	}

	var body any = map[string]any{}
	if w.Payload != nil {
		body = w.Payload
	}
	resp, err := v.prober.Do(ctx, probe.Request{Method: w.HTTPMethod(), URL: rawURL, Body: body})
	if err != nil {
		return outcome.FromError(catalog.KindWebhook, w.Name, err, opts...)
	}

	ok, note := ClassifyWebhook(w, resp.StatusCode, resp.Body)
	opts = append(opts,
		outcome.WithLatency(resp.Latency),
		outcome.WithMeta("status_code", resp.StatusCode),
		outcome.WithMeta("note", note),
	)
	if !ok {
		return outcome.Failed(catalog.KindWebhook, w.Name, note, opts...)
	}
	return outcome.Passed(catalog.KindWebhook, w.Name, opts...)
}

// ClassifyWebhook 按预期行为解释状态码，返回是否通过和说明
func ClassifyWebhook(w catalog.Webhook, status int, body []byte) (bool, string) {
	if status == http.StatusNotFound {
		return false, "Webhook handler not found (404)"
	}

	if w.ExpectedBehavior == catalog.BehaviorRequiresSignature {
		switch status {
		case http.StatusUnauthorized:
			return true, "Correctly rejected unsigned payload (401)"
		case http.StatusBadRequest:
			return true, "Rejected mock payload (400)"
		case http.StatusOK:
			return true, "Accepted mock payload (200)"
		case http.StatusInternalServerError:
			if reachable(body) {
				return true, fmt.Sprintf("Handler reachable (requires real %s event)", integrationName(w))
			}
		}
		return false, fmt.Sprintf("Unexpected status %d for signed webhook", status)
	}

	switch {
	case status >= 200 && status < 300:
		return true, fmt.Sprintf("Accepted payload (%d)", status)
	case status >= 300 && status < 500:
		return true, fmt.Sprintf("Handler reachable (%d)", status)
	}
	return false, fmt.Sprintf("Unexpected status %d", status)
}

func reachable(body []byte) bool {
	s := string(body)
	for _, marker := range handlerReachableMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func integrationName(w catalog.Webhook) string {
	if w.Integration == "" {
		return "provider"
	}
	return w.Integration
}
