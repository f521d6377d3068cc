package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/auth"
	"github.com/voltbench/ocpp-sim/internal/observability/telemetry"
	"github.com/voltbench/ocpp-sim/internal/ocpp"
	v16 "github.com/voltbench/ocpp-sim/internal/ocpp/v16"
	"github.com/voltbench/ocpp-sim/internal/session"
	"github.com/voltbench/ocpp-sim/internal/variables"
)

// --- outbound 1.6 ---

func (s *Station) boot16(ctx context.Context) (string, int, error) {
	req := v16.BootNotificationRequest{
		ChargePointModel:  s.tpl.ChargePointModel,
		ChargePointVendor: s.tpl.ChargePointVendor,
		FirmwareVersion:   s.tpl.FirmwareVersion,
	}
	if s.tpl.ChargePointSerialNumberPrefix != "" {
		req.ChargePointSerialNumber = fmt.Sprintf("%s%06d", s.tpl.ChargePointSerialNumberPrefix, s.index)
	}
	raw, err := s.call(ctx, v16.ActionBootNotification, req)
	if err != nil {
		return "", 0, err
	}
	var resp v16.BootNotificationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", 0, fmt.Errorf("boot notification response: %w", err)
	}
	return string(resp.Status), resp.Interval, nil
}

func (s *Station) heartbeat16(ctx context.Context) error {
	_, err := s.call(ctx, v16.ActionHeartbeat, v16.HeartbeatRequest{})
	return err
}

func (s *Station) statusNotification16(ctx context.Context, connectorID int, status ConnectorStatus) error {
	errorCode := v16.ErrorCodeNoError
	if status == StatusFaulted {
		errorCode = v16.ErrorCodeOtherError
	}
	_, err := s.call(ctx, v16.ActionStatusNotification, v16.StatusNotificationRequest{
		ConnectorId: connectorID,
		ErrorCode:   errorCode,
		Status:      status.To16(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	if errors.Is(err, session.ErrQueued) {
		return nil
	}
	return err
}

func (s *Station) authorize16(ctx context.Context, id auth.Identifier) (*auth.Result, error) {
	raw, err := s.call(ctx, v16.ActionAuthorize, v16.AuthorizeRequest{IdTag: id.Value})
	if err != nil {
		return nil, err
	}
	var resp v16.AuthorizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("authorize response: %w", err)
	}
	return auth.FromIdTagInfo16(resp.IdTagInfo), nil
}

func (s *Station) startTransaction16(ctx context.Context, c *Connector, id auth.Identifier, remote bool, _ *int) error {
	s.mu.Lock()
	meterStart := c.MeterWh
	var reservationID *int
	if c.Reservation != nil && c.Reservation.IdTag == id.Value {
		rid := c.Reservation.ID
		reservationID = &rid
		c.Reservation = nil
	}
	s.mu.Unlock()

	req := v16.StartTransactionRequest{
		ConnectorId:   c.ID,
		IdTag:         id.Value,
		MeterStart:    int(meterStart),
		ReservationId: reservationID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	tx := &Transaction{
		ConnectorID:   c.ID,
		EvseID:        c.EvseID,
		Identifier:    id,
		StartedAt:     time.Now(),
		MeterStartWh:  meterStart,
		RemoteStarted: remote,
	}

	raw, err := s.call(ctx, v16.ActionStartTransaction, req)
	switch {
	case err == nil:
		var resp v16.StartTransactionResponse
		if uerr := json.Unmarshal(raw, &resp); uerr != nil {
			return fmt.Errorf("start transaction response: %w", uerr)
		}
		if resp.IdTagInfo.Status != v16.AuthorizationAccepted {
			s.log.Info("start transaction de-authorized",
				zap.String("idTag", id.Value), zap.String("status", string(resp.IdTagInfo.Status)))
			s.mu.Lock()
			c.Status = StatusAvailable
			s.mu.Unlock()
			s.notifyStatus(ctx, c)
			return fmt.Errorf("station: start de-authorized (%s)", resp.IdTagInfo.Status)
		}
		tx.ID = strconv.Itoa(resp.TransactionId)
	case errors.Is(err, session.ErrQueued):
		// Offline start: a local id stands in until the queue drains.
		s.mu.Lock()
		s.txCounter++
		tx.ID = strconv.Itoa(-s.txCounter)
		tx.StartedOffline = true
		s.mu.Unlock()
	default:
		s.mu.Lock()
		c.Status = StatusAvailable
		s.mu.Unlock()
		s.notifyStatus(ctx, c)
		return err
	}

	s.mu.Lock()
	c.Transaction = tx
	c.Status = StatusCharging
	s.mu.Unlock()
	s.notifyStatus(ctx, c)
	s.startSampler(c.ID)
	s.emitTransactionStarted(c, tx)
	return nil
}

func (s *Station) stopTransaction16(ctx context.Context, c *Connector, tx *Transaction, reason string) error {
	s.mu.Lock()
	meterStop := c.MeterWh
	c.Status = StatusFinishing
	s.mu.Unlock()
	s.notifyStatus(ctx, c)

	txID, _ := strconv.Atoi(tx.ID)
	req := v16.StopTransactionRequest{
		IdTag:         tx.Identifier.Value,
		MeterStop:     int(meterStop),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TransactionId: txID,
		Reason:        v16.Reason(reason),
	}
	_, err := s.call(ctx, v16.ActionStopTransaction, req)
	if errors.Is(err, session.ErrQueued) {
		return nil
	}
	return err
}

func (s *Station) emitMeterValues16(ctx context.Context, c *Connector, sample meterSample) {
	s.mu.Lock()
	var txID *int
	if c.Transaction != nil {
		if id, err := strconv.Atoi(c.Transaction.ID); err == nil {
			txID = &id
		}
	}
	s.mu.Unlock()

	ts := time.Now().UTC().Format(time.RFC3339)
	values := buildSampledValues16(sample, s.allowedMeasurands(c))

	_, err := s.call(ctx, v16.ActionMeterValues, v16.MeterValuesRequest{
		ConnectorId:   c.ID,
		TransactionId: txID,
		MeterValue:    []v16.MeterValue{{Timestamp: ts, SampledValue: values}},
	})
	if err != nil && !errors.Is(err, session.ErrQueued) {
		s.log.Debug("meter values not delivered", zap.Int("connectorId", c.ID), zap.Error(err))
	}
}

// --- inbound 1.6 ---

func (s *Station) handlers16() map[string]handlerFunc {
	return map[string]handlerFunc{
		v16.ActionReset:                  s.handleReset16,
		v16.ActionChangeAvailability:     s.handleChangeAvailability16,
		v16.ActionChangeConfiguration:    s.handleChangeConfiguration16,
		v16.ActionGetConfiguration:       s.handleGetConfiguration16,
		v16.ActionRemoteStartTransaction: s.handleRemoteStart16,
		v16.ActionRemoteStopTransaction:  s.handleRemoteStop16,
		v16.ActionUnlockConnector:        s.handleUnlockConnector16,
		v16.ActionTriggerMessage:         s.handleTriggerMessage16,
		v16.ActionReserveNow:             s.handleReserveNow16,
		v16.ActionCancelReservation:      s.handleCancelReservation16,
		v16.ActionDataTransfer:           s.handleDataTransfer16,
	}
}

func (s *Station) handleReset16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.ResetRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	reason := v16.ReasonSoftReset
	if req.Type == v16.ResetHard {
		reason = v16.ReasonHardReset
	}
	go s.performReset(string(reason))
	return v16.ResetResponse{Status: v16.ResetAccepted}, nil
}

// performReset ends transactions and re-registers, approximating a reboot
// without dropping the process.
func (s *Station) performReset(reason string) {
	ctx := context.Background()
	s.stopAllTransactions(ctx, reason)
	if s.version == ocpp.V201 {
		s.vars.ResetRuntimeOverrides()
	}
	s.persist()
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.register(ctx)
	}()
}

func (s *Station) handleChangeAvailability16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.ChangeAvailabilityRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	operative := req.Type == v16.AvailabilityOperative

	s.mu.Lock()
	targets := make([]*Connector, 0)
	if req.ConnectorId == 0 {
		targets = append(targets, s.connectors...)
	} else if c := s.connector(req.ConnectorId); c != nil {
		targets = append(targets, c)
	} else {
		s.mu.Unlock()
		return v16.ChangeAvailabilityResponse{Status: v16.AvailabilityRejected}, nil
	}

	scheduled := false
	changed := make([]*Connector, 0, len(targets))
	for _, c := range targets {
		if !operative && c.Transaction != nil {
			c.pendingInoperative = true
			scheduled = true
			continue
		}
		c.Operational = operative
		if operative {
			c.Status = StatusAvailable
		} else {
			c.Status = StatusUnavailable
		}
		changed = append(changed, c)
	}
	s.mu.Unlock()

	for _, c := range changed {
		s.notifyStatus(ctx, c)
	}
	if scheduled {
		return v16.ChangeAvailabilityResponse{Status: v16.AvailabilityScheduled}, nil
	}
	return v16.ChangeAvailabilityResponse{Status: v16.AvailabilityAccepted}, nil
}

func (s *Station) handleChangeConfiguration16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.ChangeConfigurationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	key, ok := s.keys.Get(req.Key)
	if !ok {
		return v16.ChangeConfigurationResponse{Status: v16.ConfigurationNotSupported}, nil
	}
	if key.Readonly {
		return v16.ChangeConfigurationResponse{Status: v16.ConfigurationRejected}, nil
	}
	s.keys.SetValue(req.Key, req.Value)

	switch req.Key {
	case variables.KeyHeartbeatInterval, variables.KeyHeartBeatInterval:
		if n, err := strconv.Atoi(req.Value); err == nil && n > 0 {
			s.mu.Lock()
			s.heartbeatSec = n
			s.mu.Unlock()
		}
	}
	s.persist()
	if key.Reboot {
		return v16.ChangeConfigurationResponse{Status: v16.ConfigurationRebootRequired}, nil
	}
	return v16.ChangeConfigurationResponse{Status: v16.ConfigurationAccepted}, nil
}

func (s *Station) handleGetConfiguration16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.GetConfigurationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}

	resp := v16.GetConfigurationResponse{}
	if len(req.Key) == 0 {
		for _, k := range s.keys.Keys() {
			if !k.Visible {
				continue
			}
			v := k.Value
			resp.ConfigurationKey = append(resp.ConfigurationKey, v16.KeyValue{
				Key: k.Key, Readonly: k.Readonly, Value: &v,
			})
		}
		return resp, nil
	}
	for _, name := range req.Key {
		k, ok := s.keys.Get(name)
		if !ok || !k.Visible {
			resp.UnknownKey = append(resp.UnknownKey, name)
			continue
		}
		v := k.Value
		resp.ConfigurationKey = append(resp.ConfigurationKey, v16.KeyValue{
			Key: k.Key, Readonly: k.Readonly, Value: &v,
		})
	}
	return resp, nil
}

func (s *Station) handleRemoteStart16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.RemoteStartTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}

	s.mu.Lock()
	var c *Connector
	if req.ConnectorId != nil {
		c = s.connector(*req.ConnectorId)
	} else {
		for _, cand := range s.connectors {
			if cand.available() {
				c = cand
				break
			}
		}
	}
	ok := c != nil && c.available() && !c.reservedFor(req.IdTag, "")
	s.mu.Unlock()
	if !ok {
		return v16.RemoteStartTransactionResponse{Status: v16.RemoteStartStopRejected}, nil
	}

	authorizeFirst := s.tpl.AuthorizeRemoteTxRequests
	if k, found := s.keys.Get(variables.KeyAuthorizeRemoteTxRequests); found {
		authorizeFirst = k.Value == "true"
	}

	go func() {
		bg := context.Background()
		id := auth.Identifier{Type: auth.TypeIdTag, Value: req.IdTag, Version: s.version}
		s.mu.Lock()
		c.Status = StatusPreparing
		s.mu.Unlock()
		s.notifyStatus(bg, c)

		if authorizeFirst {
			result := s.chain.Authorize(bg, &auth.Request{
				Identifier: id, ConnectorId: c.ID, EvseId: c.EvseID,
			})
			if !result.Accepted() {
				s.log.Info("remote start refused by authorization",
					zap.String("idTag", req.IdTag), zap.String("status", string(result.Status)))
				s.mu.Lock()
				c.Status = StatusAvailable
				s.mu.Unlock()
				s.notifyStatus(bg, c)
				return
			}
		}
		if err := s.startTransaction16(bg, c, id, true, nil); err != nil {
			s.log.Warn("remote start failed", zap.Error(err))
		}
	}()
	return v16.RemoteStartTransactionResponse{Status: v16.RemoteStartStopAccepted}, nil
}

func (s *Station) handleRemoteStop16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.RemoteStopTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	want := strconv.Itoa(req.TransactionId)

	s.mu.Lock()
	var connectorID int
	found := false
	for _, c := range s.connectors {
		if c.Transaction != nil && c.Transaction.ID == want {
			connectorID = c.ID
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return v16.RemoteStopTransactionResponse{Status: v16.RemoteStartStopRejected}, nil
	}

	go func() {
		if err := s.StopTransaction(context.Background(), connectorID, stopReasonRemote); err != nil {
			s.log.Warn("remote stop failed", zap.Error(err))
		}
	}()
	return v16.RemoteStopTransactionResponse{Status: v16.RemoteStartStopAccepted}, nil
}

func (s *Station) handleUnlockConnector16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.UnlockConnectorRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	s.mu.Lock()
	c := s.connector(req.ConnectorId)
	hasTx := c != nil && c.Transaction != nil
	s.mu.Unlock()
	if c == nil {
		return v16.UnlockConnectorResponse{Status: v16.UnlockNotSupported}, nil
	}
	if hasTx {
		// Unlocking mid-session ends the transaction first.
		if err := s.StopTransaction(ctx, req.ConnectorId, string(v16.ReasonUnlockCommand)); err != nil {
			return v16.UnlockConnectorResponse{Status: v16.UnlockFailed}, nil
		}
	}
	return v16.UnlockConnectorResponse{Status: v16.UnlockUnlocked}, nil
}

func (s *Station) handleTriggerMessage16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.TriggerMessageRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}

	switch req.RequestedMessage {
	case v16.ActionBootNotification:
		go func() {
			if _, _, err := s.sendBootNotification(context.Background()); err != nil {
				s.log.Warn("triggered boot notification failed", zap.Error(err))
			}
		}()
	case v16.ActionHeartbeat:
		go s.sendHeartbeat(context.Background())
	case v16.ActionStatusNotification:
		go func() {
			bg := context.Background()
			if req.ConnectorId != nil {
				if c := s.connector(*req.ConnectorId); c != nil {
					s.notifyStatus(bg, c)
				}
				return
			}
			s.SendAllStatusNotifications(bg)
		}()
	case v16.ActionMeterValues:
		go func() {
			bg := context.Background()
			s.mu.Lock()
			conns := make([]*Connector, len(s.connectors))
			copy(conns, s.connectors)
			s.mu.Unlock()
			for _, c := range conns {
				if req.ConnectorId != nil && c.ID != *req.ConnectorId {
					continue
				}
				if c.Transaction != nil {
					if sample, err := s.sampleLocked(c, 0); err == nil {
						s.emitMeterValues16(bg, c, sample)
					}
				}
			}
		}()
	default:
		return v16.TriggerMessageResponse{Status: v16.TriggerMessageNotImplemented}, nil
	}
	return v16.TriggerMessageResponse{Status: v16.TriggerMessageAccepted}, nil
}

func (s *Station) handleReserveNow16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.ReserveNowRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	expiry, err := time.Parse(time.RFC3339, req.ExpiryDate)
	if err != nil {
		return nil, ocpp.NewError(ocpp.ErrorPropertyConstraintViolation, "expiryDate is not RFC3339")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.connector(req.ConnectorId)
	if c == nil {
		return v16.ReserveNowResponse{Status: v16.ReservationRejected}, nil
	}
	switch {
	case c.Status == StatusFaulted:
		return v16.ReserveNowResponse{Status: v16.ReservationFaulted}, nil
	case !c.Operational:
		return v16.ReserveNowResponse{Status: v16.ReservationUnavailable}, nil
	case c.Transaction != nil:
		return v16.ReserveNowResponse{Status: v16.ReservationOccupied}, nil
	case c.Reservation != nil && c.Reservation.ID != req.ReservationId && time.Now().Before(c.Reservation.ExpiresAt):
		return v16.ReserveNowResponse{Status: v16.ReservationOccupied}, nil
	}
	c.Reservation = &Reservation{
		ID:          req.ReservationId,
		IdTag:       req.IdTag,
		ParentIdTag: req.ParentIdTag,
		ExpiresAt:   expiry,
	}
	c.Status = StatusReserved
	go s.notifyStatus(context.Background(), c)
	return v16.ReserveNowResponse{Status: v16.ReservationAccepted}, nil
}

func (s *Station) handleCancelReservation16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.CancelReservationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.connectors {
		if c.Reservation != nil && c.Reservation.ID == req.ReservationId {
			c.Reservation = nil
			if c.Status == StatusReserved {
				c.Status = StatusAvailable
				go s.notifyStatus(context.Background(), c)
			}
			return v16.CancelReservationResponse{Status: v16.CancelReservationAccepted}, nil
		}
	}
	return v16.CancelReservationResponse{Status: v16.CancelReservationRejected}, nil
}

func (s *Station) handleDataTransfer16(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v16.DataTransferRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	// No vendor extensions are implemented.
	return v16.DataTransferResponse{Status: v16.DataTransferUnknownVendorID}, nil
}

// reconcileQueued16 folds the responses of replayed offline calls back into
// local state. The one that matters is StartTransaction: its stand-in
// transaction id becomes the server-assigned one.
func (s *Station) reconcileQueued16(action string, request, response json.RawMessage) {
	if action != v16.ActionStartTransaction {
		return
	}
	var req v16.StartTransactionRequest
	var resp v16.StartTransactionResponse
	if json.Unmarshal(request, &req) != nil || json.Unmarshal(response, &resp) != nil {
		return
	}
	s.reconcileOfflineStart16(req, resp)
}

func (s *Station) reconcileOfflineStart16(req v16.StartTransactionRequest, resp v16.StartTransactionResponse) {
	s.mu.Lock()
	var c *Connector
	var tx *Transaction
	for _, cand := range s.connectors {
		t := cand.Transaction
		if t != nil && t.StartedOffline && t.ConnectorID == req.ConnectorId && t.Identifier.Value == req.IdTag {
			c, tx = cand, t
			break
		}
	}
	if tx == nil {
		s.mu.Unlock()
		return
	}
	old := tx.ID
	tx.ID = strconv.Itoa(resp.TransactionId)
	tx.StartedOffline = false
	if resp.IdTagInfo.Status == v16.AuthorizationAccepted {
		s.mu.Unlock()
		s.log.Info("offline transaction reconciled",
			zap.String("provisionalId", old), zap.Int("transactionId", resp.TransactionId))
		return
	}
	connectorID := c.ID
	s.mu.Unlock()
	s.log.Info("offline transaction de-authorized on replay",
		zap.String("idTag", req.IdTag), zap.String("status", string(resp.IdTagInfo.Status)))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.StopTransaction(context.Background(), connectorID, string(v16.ReasonDeAuthorized)); err != nil {
			s.log.Warn("stop after de-authorization failed", zap.Error(err))
		}
	}()
}

func (s *Station) emitTransactionStarted(c *Connector, tx *Transaction) {
	telemetry.ActiveTransactions.Inc()
	s.emit("transactionStarted", map[string]any{
		"connectorId": c.ID, "evseId": c.EvseID,
		"transactionId": tx.ID, "idTag": tx.Identifier.Value,
	})
}
