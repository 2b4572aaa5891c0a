package influx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrQueryFailed 查询执行失败（网络错误、非 2xx 响应或响应无法解析）
var ErrQueryFailed = errors.New("influx query failed")

// Row 查询结果行（列名 -> 原始值）
// 直连模式下值均为 string；代理模式下可能是 JSON number
type Row map[string]any

// Client InfluxDB v2 查询客户端（POST /api/v2/query，返回 annotated CSV）
type Client struct {
	httpClient *resty.Client
	org        string
	logger     *zap.Logger
}

// NewClient 创建 InfluxDB 直连客户端
// 不配置重试：单次轮询失败由调度器记录并等待下一次触发
func NewClient(baseURL, token, org string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/csv")
	if token != "" {
		client.SetHeader("Authorization", "Token "+token)
	}

	return &Client{
		httpClient: client,
		org:        org,
		logger:     logger,
	}
}

// Query 执行 Flux 查询并解析为行
func (c *Client) Query(ctx context.Context, query string) ([]Row, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("org", c.org).
		SetBody(map[string]string{
			"query": query,
			"type":  "flux",
		}).
		Post("/api/v2/query")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	if resp.IsError() {
		c.logger.Error("InfluxDB returned error",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", preview(resp.Body())),
		)
		return nil, fmt.Errorf("%w: status %d: %s", ErrQueryFailed, resp.StatusCode(), preview(resp.Body()))
	}

	rows, err := ParseCSV(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	c.logger.Debug("InfluxDB query succeeded",
		zap.Int("record_count", len(rows)),
		zap.Int("body_length", len(resp.Body())),
	)
	return rows, nil
}

// ProxyClient 经由查询代理执行（POST {"query": ...}，返回 {"results": [...]}）
type ProxyClient struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// proxyResponse 代理响应；results 保持原始 JSON 以便区分缺失/非数组
type proxyResponse struct {
	Results json.RawMessage `json:"results"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// NewProxyClient 创建代理客户端
func NewProxyClient(url, token string, logger *zap.Logger) *ProxyClient {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}

	return &ProxyClient{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Query 执行查询
// 响应体无法解析或带 error 时视为失败；results 缺失或不是数组时视为 0 行
func (p *ProxyClient) Query(ctx context.Context, query string) ([]Row, error) {
	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"query": query}).
		Post(p.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	var body proxyResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		if resp.IsError() {
			return nil, fmt.Errorf("%w: status %d: %s", ErrQueryFailed, resp.StatusCode(), preview(resp.Body()))
		}
		return nil, fmt.Errorf("%w: invalid response body: %v", ErrQueryFailed, err)
	}

	if resp.IsError() {
		msg := firstNonEmpty(body.Error, body.Message, preview(resp.Body()))
		return nil, fmt.Errorf("%w: status %d: %s", ErrQueryFailed, resp.StatusCode(), msg)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrQueryFailed, body.Error)
	}

	return decodeResults(body.Results, p.logger), nil
}

// decodeResults 将 results 转为行；非数组时返回空，非对象元素跳过
func decodeResults(raw json.RawMessage, logger *zap.Logger) []Row {
	if len(raw) == 0 {
		return nil
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Warn("Proxy results is not an array, treating as empty", zap.Error(err))
		return nil
	}

	rows := make([]Row, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, Row(obj))
	}
	return rows
}

func preview(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
