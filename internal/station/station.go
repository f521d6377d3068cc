// Package station runs the charging-station state machine on top of one
// session: registration, heartbeats, connector status, transactions and the
// server command handlers of both protocol versions.
package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/auth"
	"github.com/voltbench/ocpp-sim/internal/cache"
	"github.com/voltbench/ocpp-sim/internal/domain"
	"github.com/voltbench/ocpp-sim/internal/observability/telemetry"
	"github.com/voltbench/ocpp-sim/internal/ocpp"
	"github.com/voltbench/ocpp-sim/internal/ports"
	"github.com/voltbench/ocpp-sim/internal/session"
	"github.com/voltbench/ocpp-sim/internal/template"
	"github.com/voltbench/ocpp-sim/internal/variables"
)

// State is the registration lifecycle of a station.
type State string

const (
	StateStopped     State = "stopped"
	StateStarting    State = "starting"
	StateRegistering State = "registering"
	StateAccepted    State = "accepted"
	StatePending     State = "pending"
	StateRejected    State = "rejected"
)

var (
	ErrAlreadyStarted = errors.New("station: already started")
	ErrNotStarted     = errors.New("station: not started")
	ErrNotAccepted    = errors.New("station: not accepted by csms")
	ErrNoConnector    = errors.New("station: no such connector")
	ErrBusyConnector  = errors.New("station: connector not available")
	ErrNotAuthorized  = errors.New("station: authorization refused")
)

// Deps are the station's external collaborators.
type Deps struct {
	Log       *zap.Logger
	Store     ports.ConfigurationStore
	Validator *ocpp.SchemaValidator
	// CertManager handles certificate installs; nil rejects those commands.
	CertManager ports.CertificateManager
	// RemoteAuth overrides the wire-backed authorizer, used by tests.
	RemoteAuth auth.RemoteAuthorizer
}

type handlerFunc func(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error)

// Station is one simulated charge point.
type Station struct {
	tpl          *template.Template
	index        int
	hashID       string
	name         string
	templateHash string
	version      ocpp.Version

	engine *session.Engine
	keys   *variables.KeyStore
	vars   *variables.Manager
	chain  *auth.Chain
	cache  *auth.Cache

	store     ports.ConfigurationStore
	validator *ocpp.SchemaValidator
	certs     ports.CertificateManager
	log       *zap.Logger

	handlers map[string]handlerFunc

	mu           sync.Mutex
	state        State
	connectors   []*Connector
	powerDivider int
	lastSentAt   time.Time
	heartbeatSec int
	// suppressHeartbeat skips a beat when other traffic covered the interval.
	suppressHeartbeat bool
	txCounter         int
	stopCh            chan struct{}
	// everAccepted records a past Accepted registration; reconnects after
	// that resume the session without a fresh boot.
	everAccepted bool
	hbStop       chan struct{}
	wg           sync.WaitGroup
	samplers     map[int]chan struct{}

	// events receives lifecycle notifications for the control plane.
	events chan<- Event
}

// Event is a station lifecycle notification consumed by the registry.
type Event struct {
	HashID  string
	Name    string
	Kind    string // started, stopped, connected, disconnected, accepted, statusChanged, transactionStarted, transactionStopped
	Payload any
}

// New builds a station from a template instance. The hash id is stable
// across runs of the same template and index.
func New(tpl *template.Template, index int, deps Deps) (*Station, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	hash, err := tpl.Hash()
	if err != nil {
		return nil, err
	}
	s := &Station{
		tpl:          tpl,
		index:        index,
		hashID:       template.HashID(hash, index),
		name:         tpl.StationName(index),
		templateHash: hash,
		version:      tpl.OCPPVersion,
		store:        deps.Store,
		validator:    deps.Validator,
		certs:        deps.CertManager,
		state:        StateStopped,
		samplers:     make(map[int]chan struct{}),
		suppressHeartbeat: true,
	}
	s.log = deps.Log.With(zap.String("station", s.name), zap.String("hashId", s.hashID))
	s.heartbeatSec = tpl.HeartbeatInterval

	s.buildConnectors()
	s.powerDivider = 1
	if tpl.PowerSharedByConnectors {
		s.powerDivider = len(s.connectors)
	}

	if s.version == ocpp.V16 {
		s.keys = variables.NewKeyStore()
		s.seedKeys()
		s.handlers = s.handlers16()
	} else {
		s.vars = variables.NewManager(s.log)
		s.seedVariables()
		s.handlers = s.handlers201()
	}

	// The template may declare command support; unsupported commands answer
	// NotImplemented like any unknown action.
	for action, enabled := range tpl.Commands {
		if !enabled {
			delete(s.handlers, action)
		}
	}

	s.buildAuthChain(deps.RemoteAuth)
	s.restore()
	return s, nil
}

func (s *Station) buildConnectors() {
	if s.version == ocpp.V201 {
		evseIDs := make([]int, 0, len(s.tpl.Evses))
		for id := range s.tpl.Evses {
			evseIDs = append(evseIDs, id)
		}
		sort.Ints(evseIDs)
		for _, evseID := range evseIDs {
			connIDs := make([]int, 0)
			for id := range s.tpl.Evses[evseID].Connectors {
				connIDs = append(connIDs, id)
			}
			sort.Ints(connIDs)
			for _, connID := range connIDs {
				s.connectors = append(s.connectors, &Connector{
					ID: connID, EvseID: evseID,
					Status: StatusAvailable, Operational: true,
				})
			}
		}
		return
	}
	ids := make([]int, 0, len(s.tpl.Connectors))
	for id := range s.tpl.Connectors {
		if id > 0 { // connector 0 is the station itself in 1.6
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	for _, id := range ids {
		s.connectors = append(s.connectors, &Connector{
			ID: id, EvseID: id,
			Status: StatusAvailable, Operational: true,
		})
	}
}

func (s *Station) seedKeys() {
	hb := strconv.Itoa(s.tpl.HeartbeatInterval)
	s.keys.Add(variables.KeyHeartbeatInterval, hb)
	s.keys.Add(variables.KeyMeterValueSampleInterval, "60")
	s.keys.Add(variables.KeyMeterValuesSampledData, "Energy.Active.Import.Register")
	s.keys.Add(variables.KeyNumberOfConnectors,
		strconv.Itoa(len(s.connectors)), variables.Readonly())
	s.keys.Add(variables.KeyAuthorizeRemoteTxRequests,
		strconv.FormatBool(s.tpl.AuthorizeRemoteTxRequests))
	s.keys.Add(variables.KeyLocalAuthListEnabled,
		strconv.FormatBool(s.tpl.LocalAuthListEnabled))
	s.keys.Add(variables.KeyAuthCacheEnabled,
		strconv.FormatBool(s.tpl.AuthCacheEnabled))
	s.keys.Add(variables.KeyWebSocketPingInterval, "30")
	s.keys.Add(variables.KeyConnectionTimeOut, "60")
	s.keys.Add(variables.KeySupportedFeatureProfiles,
		"Core,FirmwareManagement,LocalAuthListManagement,RemoteTrigger,Reservation",
		variables.Readonly())
}

func (s *Station) seedVariables() {
	s.vars.Seed(variables.ComponentLocalAuthListCtrlr, variables.VarLocalAuthListEnabled,
		strconv.FormatBool(s.tpl.LocalAuthListEnabled))
	s.vars.Seed(variables.ComponentAuthCacheCtrlr, variables.VarAuthCacheEnabled,
		strconv.FormatBool(s.tpl.AuthCacheEnabled))
	s.vars.SetOnChange(func(component, variable, instance, value string) {
		if component == variables.ComponentChargingStation && variable == variables.VarHeartbeatInterval {
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				s.mu.Lock()
				s.heartbeatSec = n
				s.mu.Unlock()
			}
		}
	})
}

func (s *Station) buildAuthChain(remote auth.RemoteAuthorizer) {
	s.cache = auth.NewCache(0)
	local := auth.NewLocalListStrategy(func() bool { return s.localAuthListEnabled() })
	for _, tag := range s.tpl.IdTags {
		local.Put(tag, auth.ListEntry{Status: auth.StatusAccepted})
	}
	if remote == nil {
		remote = &wireAuthorizer{s: s}
	}
	// The certificate strategy engages only when the configured certificate
	// manager can validate contract certificates.
	certProvider, _ := s.certs.(auth.CertificateAuthProvider)
	s.chain = auth.NewChain(s.log,
		local,
		auth.NewCacheStrategy(func() bool { return s.authCacheEnabled() }, s.cache),
		auth.NewRemoteStrategy(remote, func() bool { return s.tpl.AllowOffline }, s.cache, s.log),
		auth.NewCertificateStrategy(certProvider),
	)
}

func (s *Station) localAuthListEnabled() bool {
	if s.version == ocpp.V16 {
		if k, ok := s.keys.Get(variables.KeyLocalAuthListEnabled); ok {
			return k.Value == "true"
		}
		return s.tpl.LocalAuthListEnabled
	}
	return s.vars.BoolValue(variables.ComponentLocalAuthListCtrlr,
		variables.VarLocalAuthListEnabled, s.tpl.LocalAuthListEnabled)
}

func (s *Station) authCacheEnabled() bool {
	if s.version == ocpp.V16 {
		if k, ok := s.keys.Get(variables.KeyAuthCacheEnabled); ok {
			return k.Value == "true"
		}
		return s.tpl.AuthCacheEnabled
	}
	return s.vars.BoolValue(variables.ComponentAuthCacheCtrlr,
		variables.VarAuthCacheEnabled, s.tpl.AuthCacheEnabled)
}

// restore loads persisted configuration for this hash id, if any. The
// process-wide cache is consulted first; a durable-store hit backfills it.
func (s *Station) restore() {
	cfg, ok := cache.Get().GetConfiguration(s.hashID)
	if !ok {
		if s.store == nil {
			return
		}
		loaded, err := s.store.Load(s.hashID)
		if err != nil || loaded == nil {
			return
		}
		cfg = loaded
		cache.Get().SetConfiguration(s.hashID, cfg)
	}
	if s.version == ocpp.V16 && len(cfg.ConfigurationKeys) > 0 {
		s.keys.Load(cfg.ConfigurationKeys)
		if k, ok := s.keys.Get(variables.KeyHeartbeatInterval); ok {
			if n, err := strconv.Atoi(k.Value); err == nil && n > 0 {
				s.heartbeatSec = n
			}
		}
	}
	if s.version == ocpp.V201 && len(cfg.VariableAttributes) > 0 {
		s.vars.Import(cfg.VariableAttributes)
		if n := s.vars.IntValue(variables.ComponentChargingStation,
			variables.VarHeartbeatInterval, 0); n > 0 {
			s.heartbeatSec = n
		}
	}
}

// persist saves the station configuration snapshot, keeping the cached copy
// in step with the durable one.
func (s *Station) persist() {
	cfg := s.Snapshot()
	cache.Get().SetConfiguration(s.hashID, cfg)
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.hashID, cfg); err != nil {
		s.log.Warn("persist configuration failed", zap.Error(err))
	}
}

// HashID returns the stable station identity.
func (s *Station) HashID() string { return s.hashID }

// Name returns the station display name.
func (s *Station) Name() string { return s.name }

// Version returns the negotiated protocol version.
func (s *Station) Version() ocpp.Version { return s.version }

// Template returns the immutable prototype.
func (s *Station) Template() *template.Template { return s.tpl }

// State returns the current lifecycle state.
func (s *Station) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Online reports whether the websocket is up.
func (s *Station) Online() bool {
	return s.engine != nil && s.engine.Online()
}

// SetEvents wires the lifecycle event sink. Must be called before Start.
func (s *Station) SetEvents(ch chan<- Event) { s.events = ch }

func (s *Station) emit(kind string, payload any) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- Event{HashID: s.hashID, Name: s.name, Kind: kind, Payload: payload}:
	default: // the control plane lags, drop rather than block the station
	}
}

// Start connects to the CSMS and runs the registration flow.
func (s *Station) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.engine = s.newEngine()
	if err := s.engine.Connect(ctx); err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return err
	}
	s.emit("started", nil)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.register(context.Background())
	}()
	return nil
}

func (s *Station) newEngine() *session.Engine {
	cfg := session.Config{
		URL:                s.tpl.SupervisionURLs[s.index%len(s.tpl.SupervisionURLs)],
		StationName:        s.name,
		Username:           s.tpl.SupervisionUser,
		Password:           s.tpl.SupervisionPassword,
		Version:            s.version,
		CallTimeout:        time.Duration(s.tpl.MessageTimeout * float64(time.Second)),
		PingInterval:       s.pingInterval(),
		MaxRetries:         s.tpl.AutoReconnectMaxRetries,
		ExponentialBackoff: s.tpl.ReconnectExponentialDelay,
		AllowOffline:       s.tpl.AllowOffline,
	}
	e := session.NewEngine(cfg, s.log)
	e.SetHandler(s.handleCall)
	e.SetHooks(s.onReconnected, s.onDisconnected, s.onQueueDrained)
	e.SetQueueResultHook(s.onQueuedCallResult)
	return e
}

// CloseConnection drops the websocket while the station stays started.
func (s *Station) CloseConnection() error {
	s.mu.Lock()
	stopped := s.state == StateStopped
	s.mu.Unlock()
	if stopped || s.engine == nil {
		return ErrNotStarted
	}
	s.engine.Close()
	s.emit("disconnected", nil)
	return nil
}

// OpenConnection re-establishes a dropped websocket and re-registers. A
// closed session is terminal, so a fresh one is built.
func (s *Station) OpenConnection(ctx context.Context) error {
	s.mu.Lock()
	stopped := s.state == StateStopped
	s.mu.Unlock()
	if stopped {
		return ErrNotStarted
	}
	if s.Online() {
		return nil
	}
	s.engine = s.newEngine()
	if err := s.engine.Connect(ctx); err != nil {
		return err
	}
	s.emit("connected", nil)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.register(context.Background())
	}()
	return nil
}

func (s *Station) pingInterval() time.Duration {
	sec := 30
	if s.version == ocpp.V16 {
		if k, ok := s.keys.Get(variables.KeyWebSocketPingInterval); ok {
			if n, err := strconv.Atoi(k.Value); err == nil {
				sec = n
			}
		}
	} else {
		sec = s.vars.IntValue(variables.ComponentChargingStation,
			variables.VarWebSocketPingInterval, 30)
	}
	return time.Duration(sec) * time.Second
}

// Stop ends running transactions, closes the session and parks the station.
func (s *Station) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	stopCh := s.stopCh
	s.mu.Unlock()

	s.stopAllTransactions(ctx, stopReasonLocal)
	close(stopCh)
	s.engine.Close()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.wg.Wait()
	s.persist()
	// The cache tracks running stations; the durable snapshot remains.
	cache.Get().DeleteConfiguration(s.hashID)
	s.emit("stopped", nil)
	return nil
}

// register runs BootNotification until the CSMS accepts or the station stops.
func (s *Station) register(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.state == StateStopped {
			s.mu.Unlock()
			return
		}
		s.state = StateRegistering
		stopCh := s.stopCh
		s.mu.Unlock()

		status, interval, err := s.sendBootNotification(ctx)
		if err != nil {
			s.log.Warn("boot notification failed", zap.Error(err))
			select {
			case <-stopCh:
				return
			case <-time.After(5 * time.Second):
				continue
			}
		}
		if interval > 0 {
			s.applyHeartbeatInterval(interval)
		}

		switch status {
		case "Accepted":
			s.mu.Lock()
			s.state = StateAccepted
			s.everAccepted = true
			s.mu.Unlock()
			s.emit("accepted", nil)
			s.SendAllStatusNotifications(ctx)
			s.persist()
			s.startHeartbeat(stopCh)
			return
		case "Pending":
			// The CSMS drives configuration now; it re-triggers boot when done.
			s.mu.Lock()
			s.state = StatePending
			s.mu.Unlock()
			s.emit("pending", nil)
			return
		default: // Rejected
			s.mu.Lock()
			s.state = StateRejected
			s.mu.Unlock()
			wait := time.Duration(interval) * time.Second
			if wait <= 0 {
				wait = time.Duration(s.currentHeartbeatSec()) * time.Second
			}
			s.log.Info("boot rejected, backing off", zap.Duration("retryIn", wait))
			select {
			case <-stopCh:
				return
			case <-time.After(wait):
			}
		}
	}
}

func (s *Station) applyHeartbeatInterval(sec int) {
	s.mu.Lock()
	s.heartbeatSec = sec
	s.mu.Unlock()
	if s.version == ocpp.V16 {
		s.keys.SetValue(variables.KeyHeartbeatInterval, strconv.Itoa(sec))
	}
}

func (s *Station) currentHeartbeatSec() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.heartbeatSec <= 0 {
		return 60
	}
	return s.heartbeatSec
}

// startHeartbeat replaces the running heartbeat loop, if any, with a fresh
// one. Registration can repeat (reset, re-triggered boot) and must not leave
// a second loop behind.
func (s *Station) startHeartbeat(stopCh chan struct{}) {
	s.mu.Lock()
	if s.hbStop != nil {
		close(s.hbStop)
	}
	hbStop := make(chan struct{})
	s.hbStop = hbStop
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.heartbeatLoop(stopCh, hbStop)
	}()
}

// heartbeatLoop sends heartbeats, skipping beats that other traffic already
// covered within the interval.
func (s *Station) heartbeatLoop(stopCh, hbStop chan struct{}) {
	for {
		interval := time.Duration(s.currentHeartbeatSec()) * time.Second
		s.mu.Lock()
		last := s.lastSentAt
		suppress := s.suppressHeartbeat
		s.mu.Unlock()

		next := last.Add(interval)
		if !suppress {
			next = time.Now().Add(interval)
		}
		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		select {
		case <-stopCh:
			return
		case <-hbStop:
			return
		case <-time.After(wait):
		}

		s.mu.Lock()
		covered := suppress && time.Since(s.lastSentAt) < interval
		s.mu.Unlock()
		if covered {
			continue
		}
		if err := s.sendHeartbeat(context.Background()); err != nil &&
			!errors.Is(err, session.ErrQueued) && !errors.Is(err, session.ErrOffline) {
			s.log.Warn("heartbeat failed", zap.Error(err))
		}
	}
}

// strictValidation reports whether payloads are checked against the
// registered schemas. The template opts each station in.
func (s *Station) strictValidation() bool {
	return s.validator != nil && s.tpl.OCPPStrictCompliance
}

// call wraps engine calls with schema validation and traffic accounting.
func (s *Station) call(ctx context.Context, action string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", action, err)
	}
	if s.strictValidation() {
		if verr := s.validator.Validate(s.version, action, ocpp.Request, body); verr != nil {
			return nil, verr
		}
	}

	start := time.Now()
	resp, err := s.engine.Call(ctx, action, json.RawMessage(body))
	telemetry.OCPPMessagesTotal.WithLabelValues(action, "outbound").Inc()
	if err == nil {
		telemetry.CallLatency.Observe(time.Since(start).Seconds())
	}
	var oe *ocpp.Error
	if errors.As(err, &oe) {
		telemetry.OCPPCallErrors.WithLabelValues(string(oe.Code)).Inc()
	}
	if err == nil || errors.Is(err, session.ErrQueued) {
		s.mu.Lock()
		s.lastSentAt = time.Now()
		s.mu.Unlock()
	}
	telemetry.OfflineQueueDepth.Set(float64(s.engine.QueueLen()))
	if err == nil && s.strictValidation() {
		if verr := s.validator.Validate(s.version, action, ocpp.Response, resp); verr != nil {
			return nil, verr
		}
	}
	return resp, err
}

// handleCall dispatches inbound server commands.
func (s *Station) handleCall(ctx context.Context, action string, payload json.RawMessage) (any, *ocpp.Error) {
	telemetry.OCPPMessagesTotal.WithLabelValues(action, "inbound").Inc()
	if s.strictValidation() {
		if err := s.validator.Validate(s.version, action, ocpp.Request, payload); err != nil {
			return nil, ocpp.AsError(err)
		}
	}
	h, ok := s.handlers[action]
	if !ok {
		return nil, ocpp.NewError(ocpp.ErrorNotImplemented, action)
	}
	return h(ctx, payload)
}

// onQueuedCallResult receives the responses of replayed offline calls; the
// version-specific reconcilers pick out the ones that change local state.
func (s *Station) onQueuedCallResult(action string, request, response json.RawMessage, err error) {
	if err != nil {
		s.log.Warn("replayed offline call failed",
			zap.String("action", action), zap.Error(err))
		return
	}
	if s.version == ocpp.V16 {
		s.reconcileQueued16(action, request, response)
		return
	}
	s.reconcileQueued201(action, request, response)
}

func (s *Station) onReconnected() {
	telemetry.Reconnects.Inc()
	s.emit("connected", nil)
	s.mu.Lock()
	accepted := s.everAccepted
	s.mu.Unlock()
	if accepted {
		// An accepted registration survives the reconnect; the session
		// resumes and the offline buffer drains.
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.register(context.Background())
	}()
}

func (s *Station) onDisconnected(err error) {
	s.emit("disconnected", err)
}

func (s *Station) onQueueDrained() {
	s.log.Info("offline buffer drained")
}

func (s *Station) connector(id int) *Connector {
	for _, c := range s.connectors {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Station) connectorByEvse(evseID int) *Connector {
	for _, c := range s.connectors {
		if c.EvseID == evseID {
			return c
		}
	}
	return nil
}

// Connectors returns a snapshot of all connector states.
func (s *Station) Connectors() []domain.ConnectorStatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ConnectorStatusRecord, 0, len(s.connectors))
	for _, c := range s.connectors {
		availability := "Operative"
		if !c.Operational {
			availability = "Inoperative"
		}
		rec := domain.ConnectorStatusRecord{
			ConnectorId:  c.ID,
			EvseId:       c.EvseID,
			Availability: availability,
			Status:       string(c.Status),
			EnergyWh:     c.MeterWh,
		}
		if c.Transaction != nil {
			rec.TransactionId = c.Transaction.ID
			rec.IdTag = c.Transaction.Identifier.Value
		}
		if c.Reservation != nil {
			id := c.Reservation.ID
			rec.ReservationId = &id
		}
		out = append(out, rec)
	}
	return out
}

// Snapshot assembles the persistable station configuration.
func (s *Station) Snapshot() *domain.StationConfiguration {
	cfg := &domain.StationConfiguration{
		StationInfo: domain.StationInfo{
			HashId:          s.hashID,
			Name:            s.name,
			Model:           s.tpl.ChargePointModel,
			Vendor:          s.tpl.ChargePointVendor,
			SupervisionURLs: s.tpl.SupervisionURLs,
			OCPPVersion:     string(s.version),
			MaximumPower:    s.tpl.MaximumPower,
			PowerDivider:    s.powerDivider,
			VoltageOut:      s.tpl.VoltageOut,
			NumberOfPhases:  s.tpl.NumberOfPhases,
			TemplateHash:    s.templateHash,
			TemplateIndex:   s.index,
		},
		ConnectorsStatus: s.Connectors(),
	}
	if s.version == ocpp.V16 {
		cfg.ConfigurationKeys = s.keys.Keys()
	} else {
		cfg.VariableAttributes = s.vars.Export()
	}
	return cfg
}

// stopAllTransactions ends every running transaction with the given reason.
func (s *Station) stopAllTransactions(ctx context.Context, reason string) {
	s.mu.Lock()
	ids := make([]int, 0)
	for _, c := range s.connectors {
		if c.Transaction != nil {
			ids = append(ids, c.ID)
		}
	}
	s.mu.Unlock()
	for _, id := range ids {
		if err := s.StopTransaction(ctx, id, reason); err != nil {
			s.log.Warn("stop transaction on shutdown failed",
				zap.Int("connectorId", id), zap.Error(err))
		}
	}
}

// Authorize runs the authorization pipeline for an identifier without
// touching any connector state.
func (s *Station) Authorize(ctx context.Context, connectorID int, id auth.Identifier) *auth.Result {
	s.mu.Lock()
	evseID := 0
	if c := s.connector(connectorID); c != nil {
		evseID = c.EvseID
	}
	s.mu.Unlock()
	return s.chain.Authorize(ctx, &auth.Request{
		Identifier:  id,
		ConnectorId: connectorID,
		EvseId:      evseID,
	})
}

// prepareStart claims a connector for a new session and moves it to
// Preparing. The caller must roll back with releasePreparing on failure.
func (s *Station) prepareStart(ctx context.Context, connectorID int, idTag string) (*Connector, error) {
	if s.State() != StateAccepted && s.Online() {
		return nil, ErrNotAccepted
	}
	s.mu.Lock()
	c := s.connector(connectorID)
	if c == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrNoConnector, connectorID)
	}
	if !c.Operational || c.Transaction != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrBusyConnector, connectorID)
	}
	if c.reservedFor(idTag, "") {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d reserved", ErrBusyConnector, connectorID)
	}
	c.Status = StatusPreparing
	s.mu.Unlock()
	s.notifyStatus(ctx, c)
	return c, nil
}

func (s *Station) releasePreparing(ctx context.Context, c *Connector) {
	s.mu.Lock()
	c.Status = StatusAvailable
	s.mu.Unlock()
	s.notifyStatus(ctx, c)
}

// StartTransaction begins a charging session on a connector: the plug-in
// flow of a local user, authorization included.
func (s *Station) StartTransaction(ctx context.Context, connectorID int, id auth.Identifier) error {
	c, err := s.prepareStart(ctx, connectorID, id.Value)
	if err != nil {
		return err
	}

	result := s.chain.Authorize(ctx, &auth.Request{
		Identifier:  id,
		ConnectorId: connectorID,
		EvseId:      c.EvseID,
	})
	if !result.Accepted() {
		s.log.Info("authorization refused",
			zap.String("idTag", id.Value), zap.String("status", string(result.Status)))
		s.releasePreparing(ctx, c)
		return fmt.Errorf("%w: %s", ErrNotAuthorized, result.Status)
	}

	if s.version == ocpp.V16 {
		return s.startTransaction16(ctx, c, id, false, nil)
	}
	return s.startTransaction201(ctx, c, id, false, nil)
}

// StartAuthorizedTransaction begins a session for an identifier whose
// authorization was already settled by the caller, or is left to the
// central system's StartTransaction response.
func (s *Station) StartAuthorizedTransaction(ctx context.Context, connectorID int, id auth.Identifier) error {
	c, err := s.prepareStart(ctx, connectorID, id.Value)
	if err != nil {
		return err
	}
	if s.version == ocpp.V16 {
		return s.startTransaction16(ctx, c, id, false, nil)
	}
	return s.startTransaction201(ctx, c, id, false, nil)
}

// StopTransaction ends the session on a connector with a version-neutral
// reason ("Local", "Remote", "HardReset", ...).
func (s *Station) StopTransaction(ctx context.Context, connectorID int, reason string) error {
	s.mu.Lock()
	c := s.connector(connectorID)
	if c == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoConnector, connectorID)
	}
	tx := c.Transaction
	if tx == nil {
		s.mu.Unlock()
		return fmt.Errorf("station: no transaction on connector %d", connectorID)
	}
	s.mu.Unlock()

	s.stopSampler(connectorID)

	var err error
	if s.version == ocpp.V16 {
		err = s.stopTransaction16(ctx, c, tx, reason)
	} else {
		err = s.stopTransaction201(ctx, c, tx, reason)
	}

	s.mu.Lock()
	c.Transaction = nil
	c.SoC = 0
	if c.pendingInoperative {
		c.pendingInoperative = false
		c.Operational = false
		c.Status = StatusUnavailable
	} else {
		c.Status = StatusAvailable
	}
	s.mu.Unlock()
	s.notifyStatus(ctx, c)
	telemetry.ActiveTransactions.Dec()
	s.emit("transactionStopped", map[string]any{
		"connectorId": connectorID, "transactionId": tx.ID, "reason": reason,
	})
	return err
}

// HasTransaction reports whether a connector is in a session.
func (s *Station) HasTransaction(connectorID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.connector(connectorID)
	return c != nil && c.Transaction != nil
}

// ConnectorIDs lists connector ids in stable order.
func (s *Station) ConnectorIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.connectors))
	for _, c := range s.connectors {
		out = append(out, c.ID)
	}
	return out
}

const (
	stopReasonLocal  = "Local"
	stopReasonRemote = "Remote"
)
