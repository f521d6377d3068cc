package auth

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Strategy priorities; lower is consulted first.
const (
	PriorityLocalList   = 10
	PriorityCache       = 20
	PriorityRemote      = 30
	PriorityCertificate = 40
)

// Strategy is one way of answering an authorization request. A strategy may
// abstain by returning (nil, nil), which passes the request to the next one.
type Strategy interface {
	Name() string
	Priority() int
	CanHandle(req *Request) bool
	Authorize(ctx context.Context, req *Request) (*Result, error)
}

// Chain dispatches requests to registered strategies in ascending priority
// order. It holds no station state beyond the strategies themselves.
type Chain struct {
	strategies []Strategy
	log        *zap.Logger
}

func NewChain(log *zap.Logger, strategies ...Strategy) *Chain {
	c := &Chain{log: log}
	for _, s := range strategies {
		c.Register(s)
	}
	return c
}

// Register inserts a strategy keeping the chain sorted by priority.
func (c *Chain) Register(s Strategy) {
	c.strategies = append(c.strategies, s)
	sort.SliceStable(c.strategies, func(i, j int) bool {
		return c.strategies[i].Priority() < c.strategies[j].Priority()
	})
}

// Authorize walks the chain: the first strategy whose CanHandle returns true
// executes; abstention continues the walk; if every strategy abstains the
// result is UNKNOWN.
func (c *Chain) Authorize(ctx context.Context, req *Request) *Result {
	if !IsValidIdentifier(req.Identifier) {
		return &Result{Status: StatusInvalid, Method: "validation", Timestamp: time.Now()}
	}

	for _, s := range c.strategies {
		if !s.CanHandle(req) {
			continue
		}
		res, err := s.Authorize(ctx, req)
		if err != nil {
			c.log.Warn("authorization strategy failed",
				zap.String("strategy", s.Name()),
				zap.String("idTag", req.Identifier.Value),
				zap.Error(err),
			)
			continue
		}
		if res == nil { // abstain
			continue
		}
		if res.Method == "" {
			res.Method = s.Name()
		}
		if res.Timestamp.IsZero() {
			res.Timestamp = time.Now()
		}
		return res
	}
	return &Result{Status: StatusUnknown, Method: "none", Timestamp: time.Now()}
}
