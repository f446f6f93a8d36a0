package provider

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/reform.v1"
)

var ErrOperationNotFound = errors.New("terminal operation not found")

// Operations keeps the external operations started on terminals, one per payment line and provider.
type Operations interface {
	// Start records a new operation, replacing a previous one of the same line.
	Start(ctx context.Context, op *TerminalOperation) error
	SetStatus(ctx context.Context, p Provider, extID, status string) (*TerminalOperation, error)
	GetByLineID(ctx context.Context, p Provider, lineID string) (*TerminalOperation, error)
	GetByExtID(ctx context.Context, p Provider, extID string) (*TerminalOperation, error)
}

type Store struct {
	DB *reform.DB
}

func (s *Store) Start(ctx context.Context, op *TerminalOperation) error {
	return s.DB.InTransaction(func(tx *reform.TX) error {
		var prev TerminalOperation
		err := tx.SelectOneTo(&prev, "WHERE provider = $1 AND line_id = $2", op.Provider, op.LineID)
		switch err {
		case nil:
			op.ID = prev.ID
			op.CreatedAt = prev.CreatedAt
			return errors.Wrap(tx.Update(op), "Failed update terminal operation")
		case reform.ErrNoRows:
			return errors.Wrap(tx.Insert(op), "Failed insert terminal operation")
		default:
			return errors.Wrap(err, "Failed get terminal operation")
		}
	})
}

func (s *Store) SetStatus(ctx context.Context, p Provider, extID, status string) (*TerminalOperation, error) {
	op, err := s.GetByExtID(ctx, p, extID)
	if err != nil {
		return nil, err
	}
	if op.RawStatus == status {
		return op, nil
	}
	op.RawStatus = status
	if err := s.DB.Update(op); err != nil {
		return nil, errors.Wrap(err, "Failed update terminal operation status")
	}
	return op, nil
}

func (s *Store) GetByLineID(ctx context.Context, p Provider, lineID string) (*TerminalOperation, error) {
	return s.selectOne("WHERE provider = $1 AND line_id = $2", p, lineID)
}

func (s *Store) GetByExtID(ctx context.Context, p Provider, extID string) (*TerminalOperation, error) {
	return s.selectOne("WHERE provider = $1 AND ext_id = $2", p, extID)
}

func (s *Store) selectOne(tail string, args ...interface{}) (*TerminalOperation, error) {
	var op TerminalOperation
	err := s.DB.SelectOneTo(&op, tail, args...)
	if err != nil {
		if err == reform.ErrNoRows {
			return nil, ErrOperationNotFound
		}
		return nil, errors.Wrap(err, "Failed get terminal operation")
	}
	return &op, nil
}

// MemoryStore is an in-process Operations.
type MemoryStore struct {
	mu  sync.Mutex
	ops []*TerminalOperation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Start(ctx context.Context, op *TerminalOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *op
	cp.UpdatedAt = time.Now()
	for i, prev := range s.ops {
		if prev.Provider.Match(op.Provider) && prev.LineID == op.LineID {
			cp.ID, cp.CreatedAt = prev.ID, prev.CreatedAt
			s.ops[i] = &cp
			*op = cp
			return nil
		}
	}
	cp.ID = int64(len(s.ops) + 1)
	cp.CreatedAt = cp.UpdatedAt
	s.ops = append(s.ops, &cp)
	*op = cp
	return nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, p Provider, extID, status string) (*TerminalOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range s.ops {
		if op.Provider.Match(p) && op.ExtID == extID {
			if op.RawStatus != status {
				op.RawStatus = status
				op.UpdatedAt = time.Now()
			}
			cp := *op
			return &cp, nil
		}
	}
	return nil, ErrOperationNotFound
}

func (s *MemoryStore) GetByLineID(ctx context.Context, p Provider, lineID string) (*TerminalOperation, error) {
	return s.find(func(op *TerminalOperation) bool { return op.Provider.Match(p) && op.LineID == lineID })
}

func (s *MemoryStore) GetByExtID(ctx context.Context, p Provider, extID string) (*TerminalOperation, error) {
	return s.find(func(op *TerminalOperation) bool { return op.Provider.Match(p) && op.ExtID == extID })
}

func (s *MemoryStore) find(match func(op *TerminalOperation) bool) (*TerminalOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range s.ops {
		if match(op) {
			cp := *op
			return &cp, nil
		}
	}
	return nil, ErrOperationNotFound
}

var (
	_ Operations = (*Store)(nil)
	_ Operations = (*MemoryStore)(nil)
)

//go:generate reform

//reform:checkout.terminal_operations
type TerminalOperation struct {
	ID        int64     `reform:"id,pk"`
	LineID    string    `reform:"line_id"`
	OrderUID  string    `reform:"order_uid"`
	Provider  Provider  `reform:"provider"`
	ExtID     string    `reform:"ext_id"`
	RawStatus string    `reform:"raw_status"`
	CreatedAt time.Time `reform:"created_at"`
	UpdatedAt time.Time `reform:"updated_at"`
}

func (o *TerminalOperation) BeforeInsert() error {
	o.UpdatedAt = time.Now()
	o.CreatedAt = time.Now()
	return nil
}

func (o *TerminalOperation) BeforeUpdate() error {
	o.UpdatedAt = time.Now()
	return nil
}
