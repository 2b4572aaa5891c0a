package aggregator

import (
	"sync"

	"wisefido-vital-monitor/internal/models"
)

// SnapshotStore 上一次成功轮询的快照（deviceID -> snapshot）
// 由调度器持有；只能整体替换，不做部分合并
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]models.MetricSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]models.MetricSnapshot)}
}

// Get 返回设备的上一次快照副本；不存在时返回 nil
func (s *SnapshotStore) Get(deviceID string) *models.MetricSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[deviceID]
	if !ok {
		return nil
	}
	c := snap.Clone()
	return &c
}

// Replace 用本轮结果整体替换
func (s *SnapshotStore) Replace(next map[string]models.MetricSnapshot) {
	copied := make(map[string]models.MetricSnapshot, len(next))
	for id, snap := range next {
		copied[id] = snap.Clone()
	}

	s.mu.Lock()
	s.snapshots = copied
	s.mu.Unlock()
}

// Len 已保存的设备数
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
