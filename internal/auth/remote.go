package auth

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RemoteAuthorizer sends the version-appropriate Authorize request to the
// CSMS. The station's OCPP service implements it.
type RemoteAuthorizer interface {
	// Online reports whether the station currently holds an accepted
	// registration on an open socket.
	Online() bool
	// AuthorizeRemote performs the wire round trip and translates the
	// response through the version adapter.
	AuthorizeRemote(ctx context.Context, req *Request) (*Result, error)
}

// RemoteStrategy asks the CSMS. Calls run through a circuit breaker so a
// flapping CSMS does not stall every ATG worker on its 30 s timeout.
type RemoteStrategy struct {
	remote       RemoteAuthorizer
	allowOffline func() bool
	breaker      *gobreaker.CircuitBreaker
	cache        *Cache // successful results are cached when non-nil
	log          *zap.Logger
}

func NewRemoteStrategy(remote RemoteAuthorizer, allowOffline func() bool, cache *Cache, log *zap.Logger) *RemoteStrategy {
	s := &RemoteStrategy{
		remote:       remote,
		allowOffline: allowOffline,
		cache:        cache,
		log:          log,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "remote-authorize",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("remote authorize breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return s
}

func (s *RemoteStrategy) Name() string  { return "remote" }
func (s *RemoteStrategy) Priority() int { return PriorityRemote }

func (s *RemoteStrategy) CanHandle(req *Request) bool {
	if s.remote.Online() {
		return true
	}
	// Offline: handle (and reject) unless offline transactions are allowed,
	// in which case abstain so the chain falls through.
	return s.allowOffline == nil || !s.allowOffline()
}

func (s *RemoteStrategy) Authorize(ctx context.Context, req *Request) (*Result, error) {
	if !s.remote.Online() {
		if s.allowOffline != nil && s.allowOffline() {
			return nil, nil
		}
		return &Result{
			Status:    StatusInvalid,
			IsOffline: true,
			Timestamp: time.Now(),
		}, nil
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.remote.AuthorizeRemote(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	res := out.(*Result)
	if s.cache != nil && res != nil {
		s.cache.Put(req.Identifier.Value, *res)
	}
	return res, nil
}
