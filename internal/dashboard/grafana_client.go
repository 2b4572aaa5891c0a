package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"wisefido-vital-monitor/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// dashboardType 已保存的仪表盘（排除文件夹等其它搜索结果）
const dashboardType = "dash-db"

// searchHit /api/search 返回的条目
type searchHit struct {
	ID    int64  `json:"id"`
	UID   string `json:"uid"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

// GrafanaClient Grafana 仪表盘目录客户端
type GrafanaClient struct {
	httpClient *resty.Client
	baseURL    string
	logger     *zap.Logger
}

// NewGrafanaClient 创建 Grafana 客户端
func NewGrafanaClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *GrafanaClient {
	baseURL = strings.TrimRight(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}

	return &GrafanaClient{
		httpClient: client,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// ListDashboards 获取仪表盘列表
// 只保留 dash-db 且 url 非空的条目，按 id 升序
func (g *GrafanaClient) ListDashboards(ctx context.Context) ([]models.DashboardSummary, error) {
	var hits []searchHit
	resp, err := g.httpClient.R().
		SetContext(ctx).
		SetQueryParam("type", dashboardType).
		SetResult(&hits).
		Get("/api/search")
	if err != nil {
		return nil, fmt.Errorf("failed to search dashboards: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("dashboard search returned status %d", resp.StatusCode())
	}

	kept := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		if h.Type != dashboardType || strings.TrimSpace(h.URL) == "" {
			continue
		}
		kept = append(kept, h)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })

	out := make([]models.DashboardSummary, 0, len(kept))
	for _, h := range kept {
		out = append(out, models.DashboardSummary{
			UID:   h.UID,
			Title: h.Title,
			URL:   g.absoluteURL(h.URL),
		})
	}

	g.logger.Debug("Fetched dashboards",
		zap.Int("total", len(hits)),
		zap.Int("kept", len(out)),
	)
	return out, nil
}

// absoluteURL Grafana 返回的是相对路径（/d/uid/slug），拼接成完整地址
func (g *GrafanaClient) absoluteURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return g.baseURL + u
}
