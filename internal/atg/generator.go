// Package atg generates charging sessions automatically, simulating users
// plugging in at random intervals.
package atg

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/auth"
	"github.com/voltbench/ocpp-sim/internal/domain"
	"github.com/voltbench/ocpp-sim/internal/ocpp"
	"github.com/voltbench/ocpp-sim/internal/template"
)

// Id-tag distribution modes.
const (
	DistributionRandom            = "random"
	DistributionRoundRobin        = "round-robin"
	DistributionConnectorAffinity = "connector-affinity"
)

var (
	ErrRunning    = errors.New("atg: already running")
	ErrNotRunning = errors.New("atg: not running")
	ErrDisabled   = errors.New("atg: not enabled in template")
)

// Station is the slice of the charge point the generator drives.
type Station interface {
	Name() string
	Version() ocpp.Version
	Online() bool
	ConnectorIDs() []int
	HasTransaction(connectorID int) bool
	Authorize(ctx context.Context, connectorID int, id auth.Identifier) *auth.Result
	StartAuthorizedTransaction(ctx context.Context, connectorID int, id auth.Identifier) error
	StopTransaction(ctx context.Context, connectorID int, reason string) error
}

// connectorState carries the monotonic per-connector counters.
type connectorState struct {
	running   bool
	started   uint64
	stopped   uint64
	skipped   uint64
	rejected  uint64
	accepted  uint64
	startDate time.Time
	stopDate  time.Time
	// chargedFor accumulates in-transaction time for the wall-clock
	// stopAfterHours variant.
	chargedFor time.Duration
}

// Generator runs one worker per connector of a single station.
type Generator struct {
	station Station
	cfg     template.ATGConfig
	idTags  []string
	log     *zap.Logger

	mu         sync.Mutex
	running    bool
	startDate  time.Time
	roundRobin int
	connectors map[int]*connectorState
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// New builds a generator for a station. The template's ATG block must be
// present; Enable is checked on Start.
func New(st Station, tpl *template.Template, log *zap.Logger) *Generator {
	cfg := template.ATGConfig{}
	if tpl.AutomaticTransactionGenerator != nil {
		cfg = *tpl.AutomaticTransactionGenerator
	}
	states := make(map[int]*connectorState)
	for _, id := range st.ConnectorIDs() {
		states[id] = &connectorState{}
	}
	return &Generator{
		station:    st,
		cfg:        cfg,
		idTags:     tpl.IdTags,
		log:        log.With(zap.String("station", st.Name()), zap.String("component", "atg")),
		connectors: states,
	}
}

// Running reports whether the generator loops are active.
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Start launches the per-connector workers. Connector ids restrict the set;
// empty means all.
func (g *Generator) Start(connectorIDs ...int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cfg.Enable {
		return ErrDisabled
	}
	if g.running {
		return ErrRunning
	}
	g.running = true
	g.startDate = time.Now()
	g.stopCh = make(chan struct{})

	ids := connectorIDs
	if len(ids) == 0 {
		ids = g.station.ConnectorIDs()
	}
	for _, id := range ids {
		cs, ok := g.connectors[id]
		if !ok {
			continue
		}
		cs.running = true
		cs.startDate = g.startDate
		cs.chargedFor = 0
		g.wg.Add(1)
		go g.run(id, cs, g.stopCh)
	}
	g.log.Info("transaction generator started", zap.Ints("connectorIds", ids))
	return nil
}

// Stop halts the workers and ends any session the generator left running.
func (g *Generator) Stop(ctx context.Context) error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return ErrNotRunning
	}
	g.running = false
	close(g.stopCh)
	now := time.Now()
	for _, cs := range g.connectors {
		if cs.running {
			cs.running = false
			cs.stopDate = now
		}
	}
	g.mu.Unlock()
	g.wg.Wait()

	for _, id := range g.station.ConnectorIDs() {
		if g.station.HasTransaction(id) {
			if err := g.station.StopTransaction(ctx, id, "Local"); err != nil {
				g.log.Warn("stopping generated transaction failed",
					zap.Int("connectorId", id), zap.Error(err))
			}
		}
	}
	g.log.Info("transaction generator stopped")
	return nil
}

// Status snapshots the per-connector counters.
func (g *Generator) Status() []domain.ATGStatusRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.ATGStatusRecord, 0, len(g.connectors))
	for _, id := range g.station.ConnectorIDs() {
		cs, ok := g.connectors[id]
		if !ok {
			continue
		}
		out = append(out, domain.ATGStatusRecord{
			ConnectorId:               id,
			Start:                     cs.running,
			StartedTransactions:       cs.started,
			StoppedTransactions:       cs.stopped,
			SkippedTransactions:       cs.skipped,
			RejectedAuthorizeRequests: cs.rejected,
			AcceptedAuthorizeRequests: cs.accepted,
			StartDate:                 cs.startDate,
			StopDate:                  cs.stopDate,
		})
	}
	return out
}

func (g *Generator) run(connectorID int, cs *connectorState, stop <-chan struct{}) {
	defer g.wg.Done()
	for {
		delay := secondsBetween(g.cfg.MinDelayBetweenTwoTransactions, g.cfg.MaxDelayBetweenTwoTransactions)
		select {
		case <-stop:
			return
		case <-time.After(delay):
		}
		if g.expired(cs) {
			g.log.Info("generator run time elapsed", zap.Int("connectorId", connectorID))
			g.finishConnector(cs)
			return
		}
		if !g.station.Online() {
			if g.cfg.StopOnConnectionFailure {
				g.log.Info("stopping on connection failure", zap.Int("connectorId", connectorID))
				g.finishConnector(cs)
				return
			}
			g.count(cs, func(c *connectorState) { c.skipped++ })
			continue
		}
		if rand.Float64() >= g.cfg.ProbabilityOfStart {
			g.count(cs, func(c *connectorState) { c.skipped++ })
			continue
		}

		id := g.pickIdentifier(connectorID)
		ctx := context.Background()
		if g.cfg.RequireAuthorize {
			res := g.station.Authorize(ctx, connectorID, id)
			if !res.Accepted() {
				g.log.Debug("authorize rejected",
					zap.Int("connectorId", connectorID), zap.String("idTag", id.Value))
				g.count(cs, func(c *connectorState) { c.rejected++ })
				continue
			}
			g.count(cs, func(c *connectorState) { c.accepted++ })
		}

		if err := g.station.StartAuthorizedTransaction(ctx, connectorID, id); err != nil {
			g.log.Debug("start rejected",
				zap.Int("connectorId", connectorID), zap.Error(err))
			g.count(cs, func(c *connectorState) { c.skipped++ })
			continue
		}
		g.count(cs, func(c *connectorState) { c.started++ })

		duration := secondsBetween(g.cfg.MinDuration, g.cfg.MaxDuration)
		began := time.Now()
		select {
		case <-stop:
			// Stop() ends the leftover transaction.
			g.count(cs, func(c *connectorState) { c.chargedFor += time.Since(began) })
			return
		case <-time.After(duration):
		}
		g.count(cs, func(c *connectorState) { c.chargedFor += time.Since(began) })

		if err := g.station.StopTransaction(ctx, connectorID, "Local"); err != nil {
			g.log.Warn("stop failed", zap.Int("connectorId", connectorID), zap.Error(err))
			continue
		}
		g.count(cs, func(c *connectorState) { c.stopped++ })
	}
}

// expired checks the stopAfterHours budget: absolute compares wall time
// since Start, otherwise only time spent charging counts.
func (g *Generator) expired(cs *connectorState) bool {
	if g.cfg.StopAfterHours <= 0 {
		return false
	}
	budget := time.Duration(g.cfg.StopAfterHours * float64(time.Hour))
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg.StopAbsoluteDuration {
		return time.Since(g.startDate) >= budget
	}
	return cs.chargedFor >= budget
}

func (g *Generator) finishConnector(cs *connectorState) {
	g.mu.Lock()
	cs.running = false
	cs.stopDate = time.Now()
	g.mu.Unlock()
}

func (g *Generator) count(cs *connectorState, fn func(*connectorState)) {
	g.mu.Lock()
	fn(cs)
	g.mu.Unlock()
}

// pickIdentifier draws an id tag per the configured distribution.
func (g *Generator) pickIdentifier(connectorID int) auth.Identifier {
	tag := "00000000"
	if len(g.idTags) > 0 {
		switch strings.ToLower(g.cfg.IdTagDistribution) {
		case DistributionRoundRobin:
			g.mu.Lock()
			tag = g.idTags[g.roundRobin%len(g.idTags)]
			g.roundRobin++
			g.mu.Unlock()
		case DistributionConnectorAffinity:
			tag = g.idTags[(connectorID-1+len(g.idTags))%len(g.idTags)]
		default:
			tag = g.idTags[rand.Intn(len(g.idTags))]
		}
	}
	return auth.Identifier{
		Type:    auth.TypeIdTag,
		Value:   tag,
		Version: g.station.Version(),
	}
}

func secondsBetween(min, max float64) time.Duration {
	if max < min {
		max = min
	}
	sec := min + rand.Float64()*(max-min)
	return time.Duration(sec * float64(time.Second))
}
