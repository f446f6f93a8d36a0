package store

import (
	"context"
	"sync"

	"github.com/gebv/checkout"
)

// Memory keeps unsynced orders in process memory, in insertion order.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]*checkout.ExportedOrder
	uids   []string
}

func NewMemory() *Memory {
	return &Memory{orders: map[string]*checkout.ExportedOrder{}}
}

func (s *Memory) SaveUnsyncedOrder(ctx context.Context, o *checkout.ExportedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.UID]; !exists {
		s.uids = append(s.uids, o.UID)
	}
	s.orders[o.UID] = o
	return nil
}

func (s *Memory) RemoveUnsyncedOrder(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[uid]; !exists {
		return nil
	}
	delete(s.orders, uid)
	for i, u := range s.uids {
		if u == uid {
			s.uids = append(s.uids[:i:i], s.uids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Memory) ListUnsyncedOrders(ctx context.Context) ([]*checkout.ExportedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*checkout.ExportedOrder, 0, len(s.uids))
	for _, uid := range s.uids {
		res = append(res, s.orders[uid])
	}
	return res, nil
}

var _ checkout.LocalStore = (*Memory)(nil)
