package validator

import (
	"context"
	"net/http"
	"time"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/outcome"
	"migration-auditor/internal/probe"
)

// EndpointValidator 端点可用性校验
type EndpointValidator struct {
	store    *catalog.Store
	prober   Prober
	identity TestIdentity
	slow     time.Duration
}

// NewEndpointValidator 创建端点校验器，slow <= 0 时使用 SlowThreshold
func NewEndpointValidator(store *catalog.Store, prober Prober, identity TestIdentity, slow time.Duration) *EndpointValidator {
	if slow <= 0 {
		slow = SlowThreshold
	}
	return &EndpointValidator{store: store, prober: prober, identity: identity, slow: slow}
}

// Validate 2xx 通过，404 始终失败，需要登录态的端点跳过
func (v *EndpointValidator) Validate(ctx context.Context, ep catalog.Endpoint) outcome.Outcome {
	name := ep.DisplayName()
	policy := EndpointPolicy(ep)
	method := ep.HTTPMethod()

	opts := []outcome.Option{
		outcome.WithGroup(v.category(ep)),
		outcome.WithMeta("path", ep.Path),
		outcome.WithMeta("method", method),
		outcome.WithMeta("api_group", ep.APIGroup),
		outcome.WithMeta("policy", string(policy)),
	}

	if policy == PolicyAuth {
		return outcome.Skipped(catalog.KindEndpoint, name, "requires authenticated user session", opts...)
	}

	rawURL, err := resolveURL(v.store, ep.APIGroup, ep.Path, v.identity)
	if err != nil {
		return outcome.FromError(catalog.KindEndpoint, name, err, opts...)
	}

	resp, err := v.prober.Do(ctx, testRequest(method, rawURL, policy == PolicyTestID, v.identity))
	if err != nil {
		return outcome.FromError(catalog.KindEndpoint, name, err, opts...)
	}

	opts = append(opts,
		outcome.WithLatency(resp.Latency),
		outcome.WithMeta("status_code", resp.StatusCode),
		outcome.WithMeta("response_size", len(resp.Body)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return outcome.Failed(catalog.KindEndpoint, name, "endpoint not found (404)", opts...)
	case resp.Success():
		if resp.Latency > v.slow {
			opts = append(opts, outcome.WithMeta("slow", true))
		}
		return outcome.Passed(catalog.KindEndpoint, name, opts...)
	default:
		return outcome.FromError(catalog.KindEndpoint, name, probe.NewRemoteError(resp), opts...)
	}
}

func (v *EndpointValidator) category(ep catalog.Endpoint) string {
	if ep.Category != "" {
		return ep.Category
	}
	if g, ok := v.store.APIGroup(ep.APIGroup); ok && g.Category != "" {
		return g.Category
	}
	return ep.APIGroup
}
