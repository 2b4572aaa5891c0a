package httpapi

import (
	"net/http"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterVitalsRoutes 体征视图、手动刷新、导出
func (r *Router) RegisterVitalsRoutes(v *VitalsHandler) {
	r.Handle("/api/v1/vitals", methodOnly(http.MethodGet, v.GetVitals))
	r.Handle("/api/v1/vitals/refresh", methodOnly(http.MethodPost, v.Refresh))
	r.Handle("/api/v1/vitals/export", methodOnly(http.MethodGet, v.Export))
	r.Handle("/healthz", methodOnly(http.MethodGet, v.Health))
}

// RegisterMetricsRoute Prometheus 抓取
func (r *Router) RegisterMetricsRoute(h http.Handler) {
	r.HandleHandler("/metrics", h)
}

// Handler 外层包装：panic 恢复 + CORS（展示页面运行在 Grafana 的域名下）
func (r *Router) Handler(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(r.logger)),
		handlers.PrintRecoveryStack(true),
	)
	// 访问日志经 zap 输出（Apache common log 格式）
	return recovery(handlers.LoggingHandler(zap.NewStdLog(r.logger).Writer(), cors(r)))
}
