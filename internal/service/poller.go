package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"wisefido-vital-monitor/internal/aggregator"
	"wisefido-vital-monitor/internal/dashboard"
	"wisefido-vital-monitor/internal/flux"
	"wisefido-vital-monitor/internal/influx"
	"wisefido-vital-monitor/internal/metrics"
	"wisefido-vital-monitor/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrStopped 服务已停止，轮询结果不再提交
var ErrStopped = errors.New("vital poller stopped")

// 轮询触发原因（写入日志与指标）
const (
	ReasonStartup = "startup"
	ReasonTimer   = "timer"
	ReasonManual  = "manual"
	ReasonMQTT    = "mqtt"
)

// sideEffectTimeout 提交后写缓存/发布消息的超时
const sideEffectTimeout = 5 * time.Second

// QueryExecutor 执行 Flux 查询（influx.Client / influx.ProxyClient）
type QueryExecutor interface {
	Query(ctx context.Context, query string) ([]influx.Row, error)
}

// DashboardLister 仪表盘目录
type DashboardLister interface {
	ListDashboards(ctx context.Context) ([]models.DashboardSummary, error)
}

// ViewCache 最新视图缓存
type ViewCache interface {
	UpdateView(ctx context.Context, view *models.VitalsView) error
}

// RecordPublisher 按设备发布记录
type RecordPublisher interface {
	PublishRecords(cycleID string, records []models.DeviceVitals, at time.Time) error
}

// FallRiskPublisher 跌倒风险事件
type FallRiskPublisher interface {
	PublishFallRisk(ctx context.Context, cycleID string, record models.DeviceVitals) error
}

// PollerOptions 轮询参数
type PollerOptions struct {
	Devices            []models.DeviceConfig
	Bucket             string
	QueryRange         string
	Fields             models.MetricFields
	AmplitudeThreshold float64
	PollInterval       time.Duration
	QueryTimeout       time.Duration
}

// PollerDeps 外部依赖；除 Executor 外均可为 nil
type PollerDeps struct {
	Executor   QueryExecutor
	Dashboards DashboardLister
	Cache      ViewCache
	Publisher  RecordPublisher
	Events     FallRiskPublisher
	Metrics    *metrics.Metrics
}

// Poller 体征轮询调度器
//
// 定时器、手动刷新、MQTT 指令三个入口共用 cycleMu，同一时刻只有一轮在执行，
// 上一次快照的读取与整体替换都发生在同一轮内。Stop 之后完成的轮次直接丢弃。
type Poller struct {
	opts      PollerOptions
	deps      PollerDeps
	query     string
	extractor *aggregator.SnapshotExtractor
	store     *aggregator.SnapshotStore
	logger    *zap.Logger

	cycleMu sync.Mutex

	stateMu       sync.RWMutex
	records       []models.DeviceVitals
	links         map[string]string
	lastUpdated   *time.Time
	lastError     string
	hasLoadedOnce bool
	loading       bool
	phase         models.PollPhase
	fallRisk      map[string]bool
	stopped       bool

	stopCtx    context.Context
	stopCancel context.CancelFunc
}

// NewPoller 创建调度器；设备列表在此之后不可变
func NewPoller(opts PollerOptions, deps PollerDeps, logger *zap.Logger) *Poller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 15 * time.Second
	}
	if opts.QueryRange == "" {
		opts.QueryRange = "-1m"
	}
	devices := make([]models.DeviceConfig, len(opts.Devices))
	copy(devices, opts.Devices)
	opts.Devices = devices

	stopCtx, stopCancel := context.WithCancel(context.Background())
	return &Poller{
		opts:       opts,
		deps:       deps,
		query:      flux.BuildVitalsQuery(opts.Bucket, opts.QueryRange, opts.Devices, opts.Fields.All()),
		extractor:  aggregator.NewSnapshotExtractor(opts.Fields, opts.AmplitudeThreshold, logger),
		store:      aggregator.NewSnapshotStore(),
		logger:     logger,
		links:      map[string]string{},
		phase:      models.PhaseIdle,
		fallRisk:   map[string]bool{},
		stopCtx:    stopCtx,
		stopCancel: stopCancel,
	}
}

// Devices 监控设备列表（副本）
func (p *Poller) Devices() []models.DeviceConfig {
	out := make([]models.DeviceConfig, len(p.opts.Devices))
	copy(out, p.opts.Devices)
	return out
}

// Run 拉取一次仪表盘、立即执行首轮（显示加载状态），然后按间隔轮询，直到 ctx 取消或 Stop
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Starting vitals polling",
		zap.Int("device_count", len(p.opts.Devices)),
		zap.Duration("interval", p.opts.PollInterval),
		zap.Duration("query_timeout", p.opts.QueryTimeout),
	)

	go p.loadDashboards(ctx)

	_ = p.runCycle(ctx, ReasonStartup, true)

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stopCtx.Done():
			return nil
		case <-ticker.C:
			_ = p.runCycle(ctx, ReasonTimer, false)
		}
	}
}

// Refresh 手动刷新（强制显示加载状态），返回本轮错误
func (p *Poller) Refresh(ctx context.Context) error {
	return p.runCycle(ctx, ReasonManual, true)
}

// Stop 停止定时器并取消进行中的查询；之后完成的轮次不会修改状态
func (p *Poller) Stop() {
	p.stateMu.Lock()
	p.stopped = true
	p.loading = false
	p.stateMu.Unlock()

	p.stopCancel()
}

// View 当前展示视图：按优先级排序的记录并附上链接
func (p *Poller) View() models.VitalsView {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.viewLocked()
}

func (p *Poller) viewLocked() models.VitalsView {
	links := make(map[string]string, len(p.links))
	for k, v := range p.links {
		links[k] = v
	}

	records := aggregator.OrderByPriority(p.records)
	for i := range records {
		records[i].MetricSnapshot = records[i].MetricSnapshot.Clone()
		records[i].Link = links[records[i].DeviceID]
	}

	view := models.VitalsView{
		Records:       records,
		Links:         links,
		LastError:     p.lastError,
		HasLoadedOnce: p.hasLoadedOnce,
		Loading:       p.loading,
		Phase:         p.phase,
	}
	if p.lastUpdated != nil {
		t := *p.lastUpdated
		view.LastUpdated = &t
	}
	return view
}

func (p *Poller) isStopped() bool {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.stopped
}

// loadDashboards 启动时拉取一次仪表盘；失败只记录日志，不影响体征展示
func (p *Poller) loadDashboards(ctx context.Context) {
	if p.deps.Dashboards == nil {
		return
	}

	dashboards, err := p.deps.Dashboards.ListDashboards(ctx)
	if err != nil {
		p.logger.Warn("Failed to load dashboards, links disabled", zap.Error(err))
		return
	}

	links := dashboard.ResolveLinks(p.opts.Devices, dashboards)
	p.deps.Metrics.SetDashboards(len(dashboards))

	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.stopped {
		return
	}
	p.links = links

	p.logger.Info("Dashboard links resolved",
		zap.Int("dashboard_count", len(dashboards)),
		zap.Int("linked_devices", len(links)),
	)
}

// runCycle 一轮：查询 -> 解析 -> 聚合 -> 提交
// showIndicator 为 true 或尚未成功加载过时显示加载状态
func (p *Poller) runCycle(ctx context.Context, reason string, showIndicator bool) error {
	if p.isStopped() {
		return ErrStopped
	}

	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	cycleID := uuid.NewString()
	logger := p.logger.With(zap.String("cycle_id", cycleID), zap.String("reason", reason))
	start := time.Now()

	p.stateMu.Lock()
	if p.stopped {
		p.stateMu.Unlock()
		return ErrStopped
	}
	indicator := showIndicator || !p.hasLoadedOnce
	if indicator {
		p.loading = true
	}
	p.phase = models.PhasePolling
	p.stateMu.Unlock()

	rows, err := p.execute(ctx)

	var result aggregator.AggregateResult
	if err == nil {
		extracted := p.extractor.Extract(rows)
		result = aggregator.AggregateDevices(p.opts.Devices, extracted, p.store)
	}

	p.stateMu.Lock()
	if p.stopped {
		p.stateMu.Unlock()
		logger.Info("Discarding poll cycle result after shutdown")
		p.deps.Metrics.ObserveCycle(reason, metrics.ResultDiscarded, time.Since(start), 0)
		return ErrStopped
	}
	if indicator {
		p.loading = false
	}
	p.phase = models.PhaseSettled

	// 调用方已放弃（如 HTTP 请求断开），结果不提交也不算作查询失败
	if ctxErr := ctx.Err(); ctxErr != nil {
		p.stateMu.Unlock()
		logger.Info("Discarding poll cycle result, caller context done", zap.Error(ctxErr))
		p.deps.Metrics.ObserveCycle(reason, metrics.ResultDiscarded, time.Since(start), 0)
		return ctxErr
	}

	if err != nil {
		p.lastError = err.Error()
		p.stateMu.Unlock()

		logger.Error("Poll cycle failed, keeping previous records", zap.Error(err))
		p.deps.Metrics.ObserveCycle(reason, metrics.ResultFailure, time.Since(start), 0)
		return err
	}

	now := time.Now()
	p.store.Replace(result.Snapshots)
	p.records = result.Records
	p.hasLoadedOnce = true
	p.lastError = ""
	p.lastUpdated = &now

	var onsets []models.DeviceVitals
	nextFallRisk := make(map[string]bool, len(result.Records))
	occupied, fallRisk := 0, 0
	for _, r := range result.Records {
		if r.FallRisk {
			fallRisk++
			if !p.fallRisk[r.DeviceID] {
				onsets = append(onsets, r)
			}
		}
		if r.Occupied {
			occupied++
		}
		nextFallRisk[r.DeviceID] = r.FallRisk
	}
	p.fallRisk = nextFallRisk
	view := p.viewLocked()
	p.stateMu.Unlock()

	logger.Info("Poll cycle committed",
		zap.Int("row_count", len(rows)),
		zap.Int("occupied", occupied),
		zap.Int("fall_risk", fallRisk),
		zap.Duration("duration", time.Since(start)),
	)
	p.deps.Metrics.ObserveCycle(reason, metrics.ResultSuccess, time.Since(start), len(rows))
	p.deps.Metrics.SetDeviceState(occupied, fallRisk, now)

	p.afterCommit(ctx, logger, cycleID, &view, onsets)
	return nil
}

// execute 执行查询；同时受调用方 ctx、Stop 和单轮超时约束
func (p *Poller) execute(ctx context.Context) ([]influx.Row, error) {
	queryCtx, cancel := context.WithTimeout(ctx, p.opts.QueryTimeout)
	defer cancel()
	unregister := context.AfterFunc(p.stopCtx, cancel)
	defer unregister()

	return p.deps.Executor.Query(queryCtx, p.query)
}

// afterCommit 缓存与消息发布；失败只记录日志，不影响本轮结果
func (p *Poller) afterCommit(ctx context.Context, logger *zap.Logger, cycleID string, view *models.VitalsView, onsets []models.DeviceVitals) {
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if p.deps.Cache != nil {
		if err := p.deps.Cache.UpdateView(sideCtx, view); err != nil {
			logger.Warn("Failed to update vitals cache", zap.Error(err))
		}
	}

	if p.deps.Publisher != nil {
		at := time.Now()
		if view.LastUpdated != nil {
			at = *view.LastUpdated
		}
		if err := p.deps.Publisher.PublishRecords(cycleID, view.Records, at); err != nil {
			logger.Warn("Failed to publish vitals records", zap.Error(err))
		}
	}

	if p.deps.Events != nil {
		for _, r := range onsets {
			r.Link = view.Links[r.DeviceID]
			if err := p.deps.Events.PublishFallRisk(sideCtx, cycleID, r); err != nil {
				logger.Warn("Failed to publish fall risk event",
					zap.String("device_id", r.DeviceID),
					zap.Error(err),
				)
			}
		}
	}
}
