package validator

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"migration-auditor/internal/catalog"
	"migration-auditor/internal/probe"
)

// SlowThreshold 成功但慢于此值的探测标记为 slow
const SlowThreshold = 2000 * time.Millisecond

// Prober 发送单次探测
type Prober interface {
	Do(ctx context.Context, req probe.Request) (*probe.Response, error)
}

// TestIdentity 约定的种子测试 id
type TestIdentity struct {
	UserID int `yaml:"user_id" json:"user_id"`
	TeamID int `yaml:"team_id" json:"team_id"`
}

// Policy 端点探测策略
type Policy string

const (
	PolicyAuth   Policy = "requires_auth"
	PolicyTestID Policy = "requires_test_id"
	PolicyNone   Policy = "none"
)

// EndpointPolicy 构造测试时对端点分类
func EndpointPolicy(ep catalog.Endpoint) Policy {
	switch {
	case ep.AuthRequired:
		return PolicyAuth
	case ep.RequiresTestID:
		return PolicyTestID
	}
	return PolicyNone
}

var pathParam = regexp.MustCompile(`\{[^}/]+\}`)

// resolveURL 分组 base URL + 路径，{param} 替换为种子 id
func resolveURL(store *catalog.Store, apiGroup, path string, id TestIdentity) (string, error) {
	group, ok := store.APIGroup(apiGroup)
	if !ok || group.BaseURL == "" {
		return "", &catalog.ConfigurationError{
			Entity: "api group " + apiGroup,
			Err:    catalog.ErrNotFound,
		}
	}

	path = pathParam.ReplaceAllStringFunc(path, func(param string) string {
		if strings.Contains(strings.ToLower(param), "team") {
			return strconv.Itoa(id.TeamID)
		}
		return strconv.Itoa(id.UserID)
	})
	return strings.TrimRight(group.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

// testRequest GET 把测试 id 放在 query，其余方法放在 JSON body
func testRequest(method, rawURL string, withTestID bool, id TestIdentity) probe.Request {
	req := probe.Request{Method: method, URL: rawURL}

	if method == http.MethodGet {
		if withTestID {
			req.Query = url.Values{
				"user_id": {strconv.Itoa(id.UserID)},
				"team_id": {strconv.Itoa(id.TeamID)},
			}
		}
		return req
	}

	if withTestID {
		req.Body = map[string]any{"user_id": id.UserID, "team_id": id.TeamID}
	} else {
		req.Body = map[string]any{}
	}
	return req
}
