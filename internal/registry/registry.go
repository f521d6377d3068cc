// Package registry supervises the station fleet: provisioning from
// templates, fan-out of control-plane procedures and event distribution.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/atg"
	"github.com/voltbench/ocpp-sim/internal/auth"
	"github.com/voltbench/ocpp-sim/internal/cache"
	"github.com/voltbench/ocpp-sim/internal/domain"
	"github.com/voltbench/ocpp-sim/internal/observability/telemetry"
	"github.com/voltbench/ocpp-sim/internal/station"
	"github.com/voltbench/ocpp-sim/internal/template"
)

// Aggregate is the fan-out result of a procedure applied to many stations.
type Aggregate struct {
	Status           string   `json:"status"`
	HashIdsSucceeded []string `json:"hashIdsSucceeded"`
	HashIdsFailed    []string `json:"hashIdsFailed,omitempty"`
	ResponsesFailed  []string `json:"responsesFailed,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// StationSummary is the list view of one supervised station.
type StationSummary struct {
	HashID     string                         `json:"hashId"`
	Name       string                         `json:"stationName"`
	Version    string                         `json:"ocppVersion"`
	State      string                         `json:"state"`
	Online     bool                           `json:"online"`
	Connectors []domain.ConnectorStatusRecord `json:"connectors"`
	ATG        []domain.ATGStatusRecord       `json:"automaticTransactionGenerator,omitempty"`
}

type entry struct {
	station   *station.Station
	generator *atg.Generator
}

// Registry owns the station set keyed by hash id.
type Registry struct {
	log  *zap.Logger
	deps station.Deps

	mu      sync.Mutex
	entries map[string]*entry
	order   []string

	events      chan station.Event
	subMu       sync.Mutex
	subscribers map[chan station.Event]struct{}
	closed      bool
}

// New builds an empty registry. The station dependencies are shared by every
// provisioned station.
func New(log *zap.Logger, deps station.Deps) *Registry {
	r := &Registry{
		log:         log.With(zap.String("component", "registry")),
		deps:        deps,
		entries:     make(map[string]*entry),
		events:      make(chan station.Event, 256),
		subscribers: make(map[chan station.Event]struct{}),
	}
	go r.fanOut()
	return r
}

// Provision instantiates count stations from a template and registers them.
// Templates are cached by content hash, so repeated provisioning of the same
// file reuses the parsed prototype.
func (r *Registry) Provision(tpl *template.Template, count int) ([]string, error) {
	if count <= 0 {
		count = 1
	}
	hash, err := tpl.Hash()
	if err != nil {
		return nil, err
	}
	if cached, ok := cache.Get().GetTemplate(hash); ok {
		tpl = cached
	} else {
		cache.Get().SetTemplate(hash, tpl)
	}

	var ids []string
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i <= count; i++ {
		st, err := station.New(tpl, i, r.deps)
		if err != nil {
			return ids, fmt.Errorf("provision %s index %d: %w", tpl.BaseName, i, err)
		}
		if _, dup := r.entries[st.HashID()]; dup {
			continue
		}
		st.SetEvents(r.events)
		r.entries[st.HashID()] = &entry{
			station:   st,
			generator: atg.New(st, tpl, r.log),
		}
		r.order = append(r.order, st.HashID())
		ids = append(ids, st.HashID())
		telemetry.StationsTotal.Inc()
	}
	r.log.Info("stations provisioned",
		zap.String("template", tpl.BaseName), zap.Int("count", len(ids)))
	return ids, nil
}

// ProvisionFile loads, validates and provisions a template file.
func (r *Registry) ProvisionFile(path string, count int) ([]string, error) {
	tpl, err := template.Load(path)
	if err != nil {
		return nil, err
	}
	return r.Provision(tpl, count)
}

// HashIDs lists the supervised stations in provisioning order.
func (r *Registry) HashIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Station returns one supervised station.
func (r *Registry) Station(hashID string) (*station.Station, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[hashID]
	if !ok {
		return nil, false
	}
	return e.station, true
}

// List snapshots every supervised station for the control plane.
func (r *Registry) List() []StationSummary {
	r.mu.Lock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	entries := make([]*entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, r.entries[id])
	}
	r.mu.Unlock()

	out := make([]StationSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, StationSummary{
			HashID:     e.station.HashID(),
			Name:       e.station.Name(),
			Version:    string(e.station.Version()),
			State:      string(e.station.State()),
			Online:     e.station.Online(),
			Connectors: e.station.Connectors(),
			ATG:        e.generator.Status(),
		})
	}
	return out
}

// apply fans a procedure out over the selected stations. Empty selection
// means every station.
func (r *Registry) apply(hashIDs []string, fn func(e *entry) error) Aggregate {
	targets := hashIDs
	if len(targets) == 0 {
		targets = r.HashIDs()
	}
	agg := Aggregate{Status: StatusSuccess, HashIdsSucceeded: []string{}}
	for _, id := range targets {
		r.mu.Lock()
		e, ok := r.entries[id]
		r.mu.Unlock()
		if !ok {
			agg.HashIdsFailed = append(agg.HashIdsFailed, id)
			agg.ResponsesFailed = append(agg.ResponsesFailed,
				fmt.Sprintf("%s: unknown hash id", id))
			continue
		}
		if err := fn(e); err != nil {
			agg.HashIdsFailed = append(agg.HashIdsFailed, id)
			agg.ResponsesFailed = append(agg.ResponsesFailed,
				fmt.Sprintf("%s: %v", id, err))
			continue
		}
		agg.HashIdsSucceeded = append(agg.HashIdsSucceeded, id)
	}
	sort.Strings(agg.HashIdsSucceeded)
	if len(agg.HashIdsFailed) > 0 {
		agg.Status = StatusFailure
	}
	return agg
}

// StartStations boots the selected stations.
func (r *Registry) StartStations(ctx context.Context, hashIDs []string) Aggregate {
	return r.apply(hashIDs, func(e *entry) error {
		return e.station.Start(ctx)
	})
}

// StopStations parks the selected stations, stopping their generators first.
func (r *Registry) StopStations(ctx context.Context, hashIDs []string) Aggregate {
	return r.apply(hashIDs, func(e *entry) error {
		if e.generator.Running() {
			if err := e.generator.Stop(ctx); err != nil && err != atg.ErrNotRunning {
				r.log.Warn("generator stop failed", zap.Error(err))
			}
		}
		return e.station.Stop(ctx)
	})
}

// OpenConnections re-establishes dropped websockets.
func (r *Registry) OpenConnections(ctx context.Context, hashIDs []string) Aggregate {
	return r.apply(hashIDs, func(e *entry) error {
		return e.station.OpenConnection(ctx)
	})
}

// CloseConnections drops websockets while leaving stations started.
func (r *Registry) CloseConnections(ctx context.Context, hashIDs []string) Aggregate {
	return r.apply(hashIDs, func(e *entry) error {
		return e.station.CloseConnection()
	})
}

// StartTransaction begins a session on one connector of each selected
// station.
func (r *Registry) StartTransaction(ctx context.Context, hashIDs []string, connectorID int, idTag string) Aggregate {
	return r.apply(hashIDs, func(e *entry) error {
		id := auth.Identifier{
			Type:    auth.TypeIdTag,
			Value:   idTag,
			Version: e.station.Version(),
		}
		return e.station.StartTransaction(ctx, connectorID, id)
	})
}

// StopTransaction ends the session carrying the given transaction id on each
// selected station.
func (r *Registry) StopTransaction(ctx context.Context, hashIDs []string, transactionID string) Aggregate {
	return r.apply(hashIDs, func(e *entry) error {
		for _, rec := range e.station.Connectors() {
			if rec.TransactionId == transactionID && rec.TransactionId != "" {
				return e.station.StopTransaction(ctx, rec.ConnectorId, "Remote")
			}
		}
		return fmt.Errorf("no transaction %s", transactionID)
	})
}

// StartGenerators starts the automatic transaction generator on the selected
// stations, optionally restricted to connector ids.
func (r *Registry) StartGenerators(hashIDs []string, connectorIDs ...int) Aggregate {
	return r.apply(hashIDs, func(e *entry) error {
		return e.generator.Start(connectorIDs...)
	})
}

// StopGenerators halts the generators of the selected stations.
func (r *Registry) StopGenerators(ctx context.Context, hashIDs []string) Aggregate {
	return r.apply(hashIDs, func(e *entry) error {
		return e.generator.Stop(ctx)
	})
}

// StatusNotification asks the selected stations to re-send every connector
// status to the CSMS.
func (r *Registry) StatusNotification(ctx context.Context, hashIDs []string) Aggregate {
	return r.apply(hashIDs, func(e *entry) error {
		if e.station.State() != station.StateAccepted {
			return station.ErrNotAccepted
		}
		e.station.SendAllStatusNotifications(ctx)
		return nil
	})
}

// GeneratorStatus reports the ATG counters of one station.
func (r *Registry) GeneratorStatus(hashID string) ([]domain.ATGStatusRecord, error) {
	r.mu.Lock()
	e, ok := r.entries[hashID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown hash id %s", hashID)
	}
	return e.generator.Status(), nil
}

// Subscribe registers a control-plane listener for station events. The
// returned channel is closed on Unsubscribe or registry shutdown.
func (r *Registry) Subscribe() chan station.Event {
	ch := make(chan station.Event, 64)
	r.subMu.Lock()
	r.subscribers[ch] = struct{}{}
	r.subMu.Unlock()
	return ch
}

// Unsubscribe removes a listener.
func (r *Registry) Unsubscribe(ch chan station.Event) {
	r.subMu.Lock()
	if _, ok := r.subscribers[ch]; ok {
		delete(r.subscribers, ch)
		close(ch)
	}
	r.subMu.Unlock()
}

func (r *Registry) fanOut() {
	online := make(map[string]bool)
	for ev := range r.events {
		var want bool
		switch ev.Kind {
		case "started", "connected", "accepted", "pending":
			want = true
		case "disconnected", "stopped":
			want = false
		default:
			want = online[ev.HashID]
		}
		if want != online[ev.HashID] {
			online[ev.HashID] = want
			if want {
				telemetry.StationsOnline.Inc()
			} else {
				telemetry.StationsOnline.Dec()
			}
		}
		r.subMu.Lock()
		for ch := range r.subscribers {
			select {
			case ch <- ev:
			default: // slow listener, drop
			}
		}
		r.subMu.Unlock()
	}
	r.subMu.Lock()
	for ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, ch)
	}
	r.subMu.Unlock()
}

// Shutdown stops every station and closes the event stream.
func (r *Registry) Shutdown(ctx context.Context) {
	r.StopGenerators(ctx, nil)
	r.StopStations(ctx, nil)
	r.subMu.Lock()
	alreadyClosed := r.closed
	r.closed = true
	r.subMu.Unlock()
	if !alreadyClosed {
		close(r.events)
	}
}
