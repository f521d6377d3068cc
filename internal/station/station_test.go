package station

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/auth"
	"github.com/voltbench/ocpp-sim/internal/cache"
	"github.com/voltbench/ocpp-sim/internal/domain"
	"github.com/voltbench/ocpp-sim/internal/ocpp"
	"github.com/voltbench/ocpp-sim/internal/ocpp/schemas"
	v16 "github.com/voltbench/ocpp-sim/internal/ocpp/v16"
	v201 "github.com/voltbench/ocpp-sim/internal/ocpp/v201"
	"github.com/voltbench/ocpp-sim/internal/template"
)

// csmsHarness accepts one station and records its calls, answering with
// canned per-action responses.
type csmsHarness struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	accepted int
	calls    []recorded
	handlers map[string]func(payload json.RawMessage) any
}

type recorded struct {
	Action  string
	Payload json.RawMessage
}

func newCSMS(t *testing.T) *csmsHarness {
	h := &csmsHarness{t: t, handlers: make(map[string]func(json.RawMessage) any)}
	up := websocket.Upgrader{Subprotocols: []string{"ocpp1.6", "ocpp2.0.1"}}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.mu.Lock()
		h.conn = conn
		h.accepted++
		h.mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := ocpp.Unmarshal(data)
			if err != nil || frame.Type != ocpp.Call {
				continue
			}
			h.mu.Lock()
			h.calls = append(h.calls, recorded{Action: frame.Action, Payload: frame.Payload})
			fn := h.handlers[frame.Action]
			h.mu.Unlock()

			var body any = map[string]any{}
			if fn != nil {
				body = fn(frame.Payload)
			}
			out, _ := ocpp.MarshalResult(frame.ID, body)
			h.mu.Lock()
			conn.WriteMessage(websocket.TextMessage, out)
			h.mu.Unlock()
		}
	}))
	t.Cleanup(h.server.Close)
	return h
}

func (h *csmsHarness) url() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http")
}

func (h *csmsHarness) connCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accepted
}

// drop severs the current station connection server-side.
func (h *csmsHarness) drop() {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (h *csmsHarness) on(action string, fn func(json.RawMessage) any) {
	h.mu.Lock()
	h.handlers[action] = fn
	h.mu.Unlock()
}

func (h *csmsHarness) recorded(action string) []recorded {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []recorded
	for _, c := range h.calls {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

func (h *csmsHarness) command(t *testing.T, action string, payload any) {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		t.Fatal("no station connected")
	}
	data, err := ocpp.MarshalCall("cmd-1", action, payload)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	h.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	h.mu.Unlock()
	if err != nil {
		t.Fatalf("write command: %v", err)
	}
}

func await(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func tpl16() *template.Template {
	return &template.Template{
		BaseName:          "cs-test",
		SupervisionURLs:   []string{"ws://placeholder"},
		OCPPVersion:       ocpp.V16,
		ChargePointModel:  "SimOne",
		ChargePointVendor: "VoltBench",
		MaximumPower:      22000,
		VoltageOut:        230,
		NumberOfPhases:    3,
		MessageTimeout:    5,
		HeartbeatInterval: 60,
		Connectors: map[int]template.ConnectorTemplate{
			0: {}, 1: {}, 2: {},
		},
		IdTags:                  []string{"TAG-001", "TAG-002"},
		LocalAuthListEnabled:    true,
		AutoReconnectMaxRetries: 3,
	}
}

func tpl201() *template.Template {
	t := tpl16()
	t.OCPPVersion = ocpp.V201
	t.Connectors = nil
	t.Evses = map[int]template.EvseTemplate{
		1: {Connectors: map[int]template.ConnectorTemplate{1: {}}},
		2: {Connectors: map[int]template.ConnectorTemplate{1: {}}},
	}
	return t
}

func startStation(t *testing.T, tpl *template.Template, h *csmsHarness) *Station {
	return startStationDeps(t, tpl, h, Deps{Log: zap.NewNop()})
}

func startStationDeps(t *testing.T, tpl *template.Template, h *csmsHarness, deps Deps) *Station {
	t.Helper()
	tpl.SupervisionURLs = []string{h.url()}
	s, err := New(tpl, 1, deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		if s.State() != StateStopped {
			s.Stop(context.Background())
		}
	})
	return s
}

func TestStation_IdentityIsStable(t *testing.T) {
	tpl := tpl16()
	a, err := New(tpl, 7, Deps{Log: zap.NewNop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b, err := New(tpl, 7, Deps{Log: zap.NewNop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.HashID() != b.HashID() {
		t.Errorf("hash ids differ for same template+index: %s vs %s", a.HashID(), b.HashID())
	}
	if a.Name() != "cs-test-000007" {
		t.Errorf("unexpected name %s", a.Name())
	}
	c, _ := New(tpl, 8, Deps{Log: zap.NewNop()})
	if a.HashID() == c.HashID() {
		t.Error("different indices must yield different hash ids")
	}
}

func TestStation_BootAcceptedFlow(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{
			Status: v16.RegistrationAccepted, Interval: 300,
			CurrentTime: time.Now().UTC().Format(time.RFC3339),
		}
	})
	s := startStation(t, tpl16(), h)

	await(t, "accepted state", func() bool { return s.State() == StateAccepted })
	if got := s.currentHeartbeatSec(); got != 300 {
		t.Errorf("heartbeat interval not applied from boot response: %d", got)
	}
	// One status notification per chargeable connector (0 excluded).
	await(t, "status notifications", func() bool {
		return len(h.recorded(v16.ActionStatusNotification)) == 2
	})
	for _, rec := range h.recorded(v16.ActionStatusNotification) {
		var req v16.StatusNotificationRequest
		json.Unmarshal(rec.Payload, &req)
		if req.Status != v16.StatusAvailable {
			t.Errorf("connector %d: expected Available, got %s", req.ConnectorId, req.Status)
		}
	}
}

func TestStation_BootRejectedRetries(t *testing.T) {
	h := newCSMS(t)
	var mu sync.Mutex
	boots := 0
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		mu.Lock()
		boots++
		n := boots
		mu.Unlock()
		if n == 1 {
			return v16.BootNotificationResponse{Status: v16.RegistrationRejected, Interval: 1}
		}
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 60}
	})
	s := startStation(t, tpl16(), h)

	await(t, "acceptance after rejected boot", func() bool { return s.State() == StateAccepted })
	mu.Lock()
	defer mu.Unlock()
	if boots < 2 {
		t.Errorf("expected boot retry after rejection, got %d attempts", boots)
	}
}

func TestStation_LocalTransactionLifecycle16(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	h.on(v16.ActionStartTransaction, func(json.RawMessage) any {
		return v16.StartTransactionResponse{
			IdTagInfo:     v16.IdTagInfo{Status: v16.AuthorizationAccepted},
			TransactionId: 42,
		}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	id := auth.Identifier{Type: auth.TypeIdTag, Value: "TAG-001", Version: ocpp.V16}
	if err := s.StartTransaction(context.Background(), 1, id); err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}
	if !s.HasTransaction(1) {
		t.Fatal("connector 1 has no transaction after start")
	}
	// TAG-001 is in the local list, so no wire Authorize is needed.
	if n := len(h.recorded(v16.ActionAuthorize)); n != 0 {
		t.Errorf("expected local-list authorization, saw %d Authorize calls", n)
	}
	starts := h.recorded(v16.ActionStartTransaction)
	if len(starts) != 1 {
		t.Fatalf("expected 1 StartTransaction, got %d", len(starts))
	}
	var startReq v16.StartTransactionRequest
	json.Unmarshal(starts[0].Payload, &startReq)
	if startReq.ConnectorId != 1 || startReq.IdTag != "TAG-001" {
		t.Errorf("unexpected StartTransaction payload: %+v", startReq)
	}

	if err := s.StopTransaction(context.Background(), 1, "Local"); err != nil {
		t.Fatalf("StopTransaction failed: %v", err)
	}
	if s.HasTransaction(1) {
		t.Error("transaction still present after stop")
	}
	stops := h.recorded(v16.ActionStopTransaction)
	if len(stops) != 1 {
		t.Fatalf("expected 1 StopTransaction, got %d", len(stops))
	}
	var stopReq v16.StopTransactionRequest
	json.Unmarshal(stops[0].Payload, &stopReq)
	if stopReq.TransactionId != 42 || stopReq.Reason != v16.ReasonLocal {
		t.Errorf("unexpected StopTransaction payload: %+v", stopReq)
	}
}

func TestStation_UnknownTagAuthorizesOverWire(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	h.on(v16.ActionAuthorize, func(json.RawMessage) any {
		return v16.AuthorizeResponse{IdTagInfo: v16.IdTagInfo{Status: v16.AuthorizationBlocked}}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	id := auth.Identifier{Type: auth.TypeIdTag, Value: "STRANGER", Version: ocpp.V16}
	err := s.StartTransaction(context.Background(), 1, id)
	if err == nil {
		t.Fatal("expected blocked authorization to fail the start")
	}
	if len(h.recorded(v16.ActionAuthorize)) != 1 {
		t.Errorf("expected exactly one wire Authorize")
	}
	if len(h.recorded(v16.ActionStartTransaction)) != 0 {
		t.Errorf("StartTransaction must not be sent after refusal")
	}
	if s.HasTransaction(1) {
		t.Error("no transaction should exist")
	}
}

func TestStation_TransactionEvents201(t *testing.T) {
	h := newCSMS(t)
	h.on(v201.ActionBootNotification, func(json.RawMessage) any {
		return v201.BootNotificationResponse{Status: v201.RegistrationAccepted, Interval: 300,
			CurrentTime: time.Now().UTC().Format(time.RFC3339)}
	})
	h.on(v201.ActionTransactionEvent, func(json.RawMessage) any {
		return v201.TransactionEventResponse{
			IdTokenInfo: &v201.IdTokenInfo{Status: v201.AuthorizationAccepted},
		}
	})
	s := startStation(t, tpl201(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	id := auth.Identifier{Type: auth.TypeISO14443, Value: "CARD-77", Version: ocpp.V201}
	if err := s.StartTransaction(context.Background(), 1, id); err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}
	if err := s.StopTransaction(context.Background(), 1, "Local"); err != nil {
		t.Fatalf("StopTransaction failed: %v", err)
	}

	events := h.recorded(v201.ActionTransactionEvent)
	if len(events) < 2 {
		t.Fatalf("expected Started and Ended events, got %d", len(events))
	}
	var started, ended v201.TransactionEventRequest
	json.Unmarshal(events[0].Payload, &started)
	json.Unmarshal(events[len(events)-1].Payload, &ended)

	if started.EventType != v201.EventStarted || started.SeqNo != 0 {
		t.Errorf("first event must be Started with seqNo 0, got %s/%d", started.EventType, started.SeqNo)
	}
	if started.Evse == nil || started.Evse.Id != 1 || started.IdToken == nil || started.IdToken.IdToken != "CARD-77" {
		t.Errorf("Started event must carry evse and idToken: %+v", started)
	}
	if started.IdToken != nil && started.IdToken.Type != v201.IdTokenISO14443 {
		t.Errorf("idToken type not mapped: %s", started.IdToken.Type)
	}

	if ended.EventType != v201.EventEnded {
		t.Fatalf("last event must be Ended, got %s", ended.EventType)
	}
	if ended.Evse != nil || ended.IdToken != nil {
		t.Error("evse and idToken ride only on the Started event")
	}
	if ended.TransactionInfo.StoppedReason != v201.StopReasonLocal {
		t.Errorf("expected stoppedReason Local, got %s", ended.TransactionInfo.StoppedReason)
	}
	// seqNo values are the contiguous emission index.
	for i, rec := range events {
		var ev v201.TransactionEventRequest
		json.Unmarshal(rec.Payload, &ev)
		if ev.SeqNo != i {
			t.Errorf("event %d: expected seqNo %d, got %d", i, i, ev.SeqNo)
		}
		if ev.TransactionInfo.TransactionId != started.TransactionInfo.TransactionId {
			t.Errorf("event %d: transaction id changed", i)
		}
	}
}

func TestStation_RemoteStart16(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	h.on(v16.ActionStartTransaction, func(json.RawMessage) any {
		return v16.StartTransactionResponse{
			IdTagInfo:     v16.IdTagInfo{Status: v16.AuthorizationAccepted},
			TransactionId: 7,
		}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	connID := 2
	h.command(t, v16.ActionRemoteStartTransaction, v16.RemoteStartTransactionRequest{
		ConnectorId: &connID, IdTag: "TAG-002",
	})

	await(t, "remote-started transaction", func() bool { return s.HasTransaction(2) })
	starts := h.recorded(v16.ActionStartTransaction)
	if len(starts) != 1 {
		t.Fatalf("expected 1 StartTransaction, got %d", len(starts))
	}
	var req v16.StartTransactionRequest
	json.Unmarshal(starts[0].Payload, &req)
	if req.ConnectorId != 2 || req.IdTag != "TAG-002" {
		t.Errorf("unexpected StartTransaction payload: %+v", req)
	}
}

func TestStation_GetConfiguration16(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	resp, ocppErr := s.handleGetConfiguration16(context.Background(),
		json.RawMessage(`{"key":["HeartbeatInterval","NoSuchKey"]}`))
	if ocppErr != nil {
		t.Fatalf("GetConfiguration failed: %v", ocppErr)
	}
	conf := resp.(v16.GetConfigurationResponse)
	if len(conf.ConfigurationKey) != 1 || conf.ConfigurationKey[0].Key != "HeartbeatInterval" {
		t.Errorf("unexpected configurationKey: %+v", conf.ConfigurationKey)
	}
	if len(conf.UnknownKey) != 1 || conf.UnknownKey[0] != "NoSuchKey" {
		t.Errorf("unexpected unknownKey: %+v", conf.UnknownKey)
	}
}

func TestStation_ChangeConfigurationReadonlyRejected(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	resp, _ := s.handleChangeConfiguration16(context.Background(),
		json.RawMessage(`{"key":"NumberOfConnectors","value":"99"}`))
	if resp.(v16.ChangeConfigurationResponse).Status != v16.ConfigurationRejected {
		t.Errorf("readonly key must reject writes, got %+v", resp)
	}

	resp, _ = s.handleChangeConfiguration16(context.Background(),
		json.RawMessage(`{"key":"HeartbeatInterval","value":"120"}`))
	if resp.(v16.ChangeConfigurationResponse).Status != v16.ConfigurationAccepted {
		t.Errorf("expected Accepted, got %+v", resp)
	}
	if s.currentHeartbeatSec() != 120 {
		t.Errorf("heartbeat interval not applied: %d", s.currentHeartbeatSec())
	}

	resp, _ = s.handleChangeConfiguration16(context.Background(),
		json.RawMessage(`{"key":"Unknown","value":"1"}`))
	if resp.(v16.ChangeConfigurationResponse).Status != v16.ConfigurationNotSupported {
		t.Errorf("unknown key must report NotSupported, got %+v", resp)
	}
}

func TestStation_ChangeAvailabilityScheduledDuringTransaction(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	h.on(v16.ActionStartTransaction, func(json.RawMessage) any {
		return v16.StartTransactionResponse{
			IdTagInfo: v16.IdTagInfo{Status: v16.AuthorizationAccepted}, TransactionId: 9,
		}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	id := auth.Identifier{Type: auth.TypeIdTag, Value: "TAG-001", Version: ocpp.V16}
	if err := s.StartTransaction(context.Background(), 1, id); err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}

	resp, _ := s.handleChangeAvailability16(context.Background(),
		json.RawMessage(`{"connectorId":1,"type":"Inoperative"}`))
	if resp.(v16.ChangeAvailabilityResponse).Status != v16.AvailabilityScheduled {
		t.Fatalf("expected Scheduled during transaction, got %+v", resp)
	}

	if err := s.StopTransaction(context.Background(), 1, "Local"); err != nil {
		t.Fatalf("StopTransaction failed: %v", err)
	}
	recs := s.Connectors()
	for _, rec := range recs {
		if rec.ConnectorId == 1 {
			if rec.Availability != "Inoperative" || rec.Status != string(StatusUnavailable) {
				t.Errorf("deferred availability change not applied: %+v", rec)
			}
		}
	}
}

func TestStation_ResetRespondsAcceptedAndStopsTransactions(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	h.on(v16.ActionStartTransaction, func(json.RawMessage) any {
		return v16.StartTransactionResponse{
			IdTagInfo: v16.IdTagInfo{Status: v16.AuthorizationAccepted}, TransactionId: 11,
		}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	id := auth.Identifier{Type: auth.TypeIdTag, Value: "TAG-001", Version: ocpp.V16}
	if err := s.StartTransaction(context.Background(), 1, id); err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}

	resp, ocppErr := s.handleReset16(context.Background(), json.RawMessage(`{"type":"Hard"}`))
	if ocppErr != nil {
		t.Fatalf("Reset failed: %v", ocppErr)
	}
	if resp.(v16.ResetResponse).Status != v16.ResetAccepted {
		t.Fatalf("expected Accepted, got %+v", resp)
	}
	await(t, "transaction stopped by reset", func() bool { return !s.HasTransaction(1) })
	await(t, "stop transaction sent", func() bool {
		stops := h.recorded(v16.ActionStopTransaction)
		if len(stops) == 0 {
			return false
		}
		var req v16.StopTransactionRequest
		json.Unmarshal(stops[0].Payload, &req)
		return req.Reason == v16.ReasonHardReset
	})
}

func TestStation_DataTransferUnknownVendor(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	resp, _ := s.handleDataTransfer16(context.Background(),
		json.RawMessage(`{"vendorId":"com.example"}`))
	if resp.(v16.DataTransferResponse).Status != v16.DataTransferUnknownVendorID {
		t.Errorf("expected UnknownVendorId, got %+v", resp)
	}
}

func TestStation_UnimplementedActionGetsNotImplemented(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	_, ocppErr := s.handleCall(context.Background(), "GetDiagnostics", json.RawMessage(`{}`))
	if ocppErr == nil || ocppErr.Code != ocpp.ErrorNotImplemented {
		t.Errorf("expected NotImplemented, got %+v", ocppErr)
	}
}

func TestStation_ReconnectAfterAcceptanceSkipsBoot(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	h.drop()
	await(t, "reconnect", func() bool { return h.connCount() >= 2 && s.Online() })
	// Give a spurious re-registration time to show up before counting.
	time.Sleep(300 * time.Millisecond)

	if n := len(h.recorded(v16.ActionBootNotification)); n != 1 {
		t.Errorf("accepted registration must survive a reconnect, saw %d boots", n)
	}
	if s.State() != StateAccepted {
		t.Errorf("expected state Accepted after reconnect, got %s", s.State())
	}
}

func TestStation_OfflineStartReconciledWithServerId(t *testing.T) {
	tpl := tpl16()
	s, err := New(tpl, 1, Deps{Log: zap.NewNop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c := s.connector(1)
	c.Transaction = &Transaction{
		ID:             "-1",
		ConnectorID:    1,
		Identifier:     auth.Identifier{Type: auth.TypeIdTag, Value: "TAG-001", Version: ocpp.V16},
		StartedAt:      time.Now(),
		StartedOffline: true,
	}

	s.reconcileOfflineStart16(
		v16.StartTransactionRequest{ConnectorId: 1, IdTag: "TAG-001"},
		v16.StartTransactionResponse{
			IdTagInfo:     v16.IdTagInfo{Status: v16.AuthorizationAccepted},
			TransactionId: 42,
		})

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Transaction.ID != "42" {
		t.Errorf("expected server-assigned id 42, got %s", c.Transaction.ID)
	}
	if c.Transaction.StartedOffline {
		t.Error("transaction still flagged as offline after reconciliation")
	}
}

func TestStation_RestoreFromCachedSnapshot(t *testing.T) {
	cache.Teardown()
	t.Cleanup(cache.Teardown)

	tpl := tpl16()
	hash, err := tpl.Hash()
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	hashID := template.HashID(hash, 1)
	cache.Get().SetConfiguration(hashID, &domain.StationConfiguration{
		ConfigurationKeys: []domain.ConfigurationKey{
			{Key: "HeartbeatInterval", Value: "120", Visible: true},
		},
	})

	// No store configured: the snapshot can only come from the cache.
	s, err := New(tpl, 1, Deps{Log: zap.NewNop()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := s.currentHeartbeatSec(); got != 120 {
		t.Errorf("cached heartbeat interval not restored: %d", got)
	}

	s.persist()
	if _, ok := cache.Get().GetConfiguration(hashID); !ok {
		t.Error("persist must refresh the cached snapshot")
	}
}

func TestStation_Reset201AcceptedWithActiveTransaction(t *testing.T) {
	h := newCSMS(t)
	h.on(v201.ActionBootNotification, func(json.RawMessage) any {
		return v201.BootNotificationResponse{Status: v201.RegistrationAccepted, Interval: 300,
			CurrentTime: time.Now().UTC().Format(time.RFC3339)}
	})
	h.on(v201.ActionTransactionEvent, func(json.RawMessage) any {
		return v201.TransactionEventResponse{
			IdTokenInfo: &v201.IdTokenInfo{Status: v201.AuthorizationAccepted},
		}
	})
	s := startStation(t, tpl201(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	id := auth.Identifier{Type: auth.TypeISO14443, Value: "CARD-77", Version: ocpp.V201}
	if err := s.StartTransaction(context.Background(), 1, id); err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}

	resp, ocppErr := s.handleReset201(context.Background(), json.RawMessage(`{"type":"Immediate"}`))
	if ocppErr != nil {
		t.Fatalf("Reset failed: %v", ocppErr)
	}
	reset := resp.(v201.ResetResponse)
	if reset.Status != v201.ResetAccepted {
		t.Fatalf("expected Accepted, got %+v", reset)
	}
	if reset.StatusInfo == nil || reset.StatusInfo.ReasonCode != v201.ReasonCodeNoError {
		t.Errorf("expected statusInfo reasonCode NoError, got %+v", reset.StatusInfo)
	}

	await(t, "transaction stopped by reset", func() bool { return !s.HasTransaction(1) })
	await(t, "Ended event with Remote stop reason", func() bool {
		for _, rec := range h.recorded(v201.ActionTransactionEvent) {
			var ev v201.TransactionEventRequest
			json.Unmarshal(rec.Payload, &ev)
			if ev.EventType == v201.EventEnded && ev.TransactionInfo.StoppedReason == v201.StopReasonRemote {
				return true
			}
		}
		return false
	})
}

func TestStation_DisabledCommandAnswersNotImplemented(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	tpl := tpl16()
	tpl.Commands = map[string]bool{
		v16.ActionDataTransfer: false,
		v16.ActionReset:        true,
	}
	s := startStation(t, tpl, h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	_, ocppErr := s.handleCall(context.Background(), v16.ActionDataTransfer,
		json.RawMessage(`{"vendorId":"com.example"}`))
	if ocppErr == nil || ocppErr.Code != ocpp.ErrorNotImplemented {
		t.Errorf("disabled command must answer NotImplemented, got %+v", ocppErr)
	}

	// Commands left out of the map stay enabled.
	resp, ocppErr := s.handleCall(context.Background(), v16.ActionUnlockConnector,
		json.RawMessage(`{"connectorId":1}`))
	if ocppErr != nil {
		t.Fatalf("unlisted command must stay available: %v", ocppErr)
	}
	if resp.(v16.UnlockConnectorResponse).Status != v16.UnlockUnlocked {
		t.Errorf("unexpected unlock response: %+v", resp)
	}
}

func TestStation_StrictPayloadValidation(t *testing.T) {
	validator := ocpp.NewSchemaValidator(true)
	if err := schemas.Register(validator); err != nil {
		t.Fatalf("schema registration failed: %v", err)
	}

	tpl := tpl16()
	tpl.OCPPStrictCompliance = true
	s, err := New(tpl, 1, Deps{Log: zap.NewNop(), Validator: validator})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, ocppErr := s.handleCall(context.Background(), v16.ActionDataTransfer, json.RawMessage(`{}`))
	if ocppErr == nil || ocppErr.Code != ocpp.ErrorOccurrenceConstraintViolation {
		t.Errorf("missing required property must violate occurrence constraint, got %+v", ocppErr)
	}

	_, ocppErr = s.handleCall(context.Background(), v16.ActionDataTransfer, json.RawMessage(`{"vendorId":123}`))
	if ocppErr == nil || ocppErr.Code != ocpp.ErrorTypeConstraintViolation {
		t.Errorf("wrong property type must violate type constraint, got %+v", ocppErr)
	}

	resp, ocppErr := s.handleCall(context.Background(), v16.ActionDataTransfer,
		json.RawMessage(`{"vendorId":"com.example"}`))
	if ocppErr != nil {
		t.Fatalf("valid payload rejected: %v", ocppErr)
	}
	if resp.(v16.DataTransferResponse).Status != v16.DataTransferUnknownVendorID {
		t.Errorf("unexpected response: %+v", resp)
	}

	// Without the template opt-in the same payloads pass straight through.
	lax, err := New(tpl16(), 1, Deps{Log: zap.NewNop(), Validator: validator})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ocppErr := lax.handleCall(context.Background(), v16.ActionDataTransfer,
		json.RawMessage(`{"vendorId":"com.example"}`)); ocppErr != nil {
		t.Errorf("lax station must not validate: %v", ocppErr)
	}
}

type fakeCertManager struct {
	mu        sync.Mutex
	installed []string
}

func (f *fakeCertManager) GenerateCSR(ctx context.Context, stationName string) (string, error) {
	return "-----BEGIN CERTIFICATE REQUEST-----", nil
}

func (f *fakeCertManager) InstallChain(ctx context.Context, certificateType, chain string) error {
	f.mu.Lock()
	f.installed = append(f.installed, certificateType)
	f.mu.Unlock()
	return nil
}

func (f *fakeCertManager) Install(ctx context.Context, certificateType, certificate string) error {
	return nil
}

func (f *fakeCertManager) Delete(ctx context.Context, hash domain.CertificateHash) (bool, error) {
	return false, nil
}

func (f *fakeCertManager) installs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.installed))
	copy(out, f.installed)
	return out
}

func TestStation_CertificateSignedRotatesConnection(t *testing.T) {
	h := newCSMS(t)
	h.on(v201.ActionBootNotification, func(json.RawMessage) any {
		return v201.BootNotificationResponse{Status: v201.RegistrationAccepted, Interval: 300,
			CurrentTime: time.Now().UTC().Format(time.RFC3339)}
	})
	certs := &fakeCertManager{}
	s := startStationDeps(t, tpl201(), h, Deps{Log: zap.NewNop(), CertManager: certs})
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	h.command(t, v201.ActionCertificateSigned, v201.CertificateSignedRequest{
		CertificateChain: "-----BEGIN CERTIFICATE-----",
		CertificateType:  v201.CertificateUseChargingStation,
	})

	await(t, "chain install", func() bool {
		ins := certs.installs()
		return len(ins) == 1 && ins[0] == string(v201.CertificateUseChargingStation)
	})
	// The station cycles the websocket so the next handshake presents the
	// fresh identity.
	await(t, "connection rotation", func() bool { return h.connCount() >= 2 && s.Online() })
}

func TestStation_ReserveNow16(t *testing.T) {
	h := newCSMS(t)
	h.on(v16.ActionBootNotification, func(json.RawMessage) any {
		return v16.BootNotificationResponse{Status: v16.RegistrationAccepted, Interval: 300}
	})
	s := startStation(t, tpl16(), h)
	await(t, "accepted state", func() bool { return s.State() == StateAccepted })

	expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	payload, _ := json.Marshal(v16.ReserveNowRequest{
		ConnectorId: 1, ExpiryDate: expiry, IdTag: "TAG-001", ReservationId: 5,
	})
	resp, _ := s.handleReserveNow16(context.Background(), payload)
	if resp.(v16.ReserveNowResponse).Status != v16.ReservationAccepted {
		t.Fatalf("expected Accepted, got %+v", resp)
	}

	// A different tag cannot start on the reserved connector.
	err := s.StartTransaction(context.Background(), 1,
		auth.Identifier{Type: auth.TypeIdTag, Value: "TAG-002", Version: ocpp.V16})
	if err == nil {
		t.Fatal("expected reservation to block a foreign tag")
	}

	cancel, _ := json.Marshal(v16.CancelReservationRequest{ReservationId: 5})
	resp, _ = s.handleCancelReservation16(context.Background(), cancel)
	if resp.(v16.CancelReservationResponse).Status != v16.CancelReservationAccepted {
		t.Errorf("expected cancel Accepted, got %+v", resp)
	}
}
