package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/auth"
	"github.com/voltbench/ocpp-sim/internal/domain"
	"github.com/voltbench/ocpp-sim/internal/ocpp"
	v201 "github.com/voltbench/ocpp-sim/internal/ocpp/v201"
	"github.com/voltbench/ocpp-sim/internal/session"
	"github.com/voltbench/ocpp-sim/internal/variables"
)

// --- outbound 2.0.1 ---

func (s *Station) boot201(ctx context.Context) (string, int, error) {
	req := v201.BootNotificationRequest{
		ChargingStation: v201.ChargingStationType{
			Model:           s.tpl.ChargePointModel,
			VendorName:      s.tpl.ChargePointVendor,
			FirmwareVersion: s.tpl.FirmwareVersion,
		},
		Reason: v201.BootReasonPowerUp,
	}
	if s.tpl.ChargePointSerialNumberPrefix != "" {
		req.ChargingStation.SerialNumber = fmt.Sprintf("%s%06d", s.tpl.ChargePointSerialNumberPrefix, s.index)
	}
	raw, err := s.call(ctx, v201.ActionBootNotification, req)
	if err != nil {
		return "", 0, err
	}
	var resp v201.BootNotificationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", 0, fmt.Errorf("boot notification response: %w", err)
	}
	return string(resp.Status), resp.Interval, nil
}

func (s *Station) heartbeat201(ctx context.Context) error {
	_, err := s.call(ctx, v201.ActionHeartbeat, v201.HeartbeatRequest{})
	return err
}

func (s *Station) statusNotification201(ctx context.Context, evseID, connectorID int, status ConnectorStatus) error {
	_, err := s.call(ctx, v201.ActionStatusNotification, v201.StatusNotificationRequest{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		ConnectorStatus: status.To201(),
		EvseId:          evseID,
		ConnectorId:     connectorID,
	})
	if errors.Is(err, session.ErrQueued) {
		return nil
	}
	return err
}

func (s *Station) authorize201(ctx context.Context, id auth.Identifier) (*auth.Result, error) {
	raw, err := s.call(ctx, v201.ActionAuthorize, v201.AuthorizeRequest{
		IdToken: auth.ToIdToken201(id),
	})
	if err != nil {
		return nil, err
	}
	var resp v201.AuthorizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("authorize response: %w", err)
	}
	return auth.FromIdTokenInfo201(resp.IdTokenInfo), nil
}

// sendTransactionEvent emits one event for tx, assigning the next seqNo.
// Evse and idToken ride only on the Started event.
func (s *Station) sendTransactionEvent(ctx context.Context, c *Connector, tx *Transaction,
	eventType v201.TransactionEventType, trigger v201.TriggerReason,
	stopReason v201.StopReason, meterValues []v201.MeterValue) (*v201.TransactionEventResponse, error) {

	s.mu.Lock()
	req := v201.TransactionEventRequest{
		EventType:     eventType,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TriggerReason: trigger,
		SeqNo:         tx.NextSeqNo(),
		TransactionInfo: v201.TransactionInfo{
			TransactionId: tx.ID,
			ChargingState: tx.ChargingState,
			RemoteStartId: tx.RemoteStartID,
		},
		Offline:    !s.engine.Online(),
		MeterValue: meterValues,
	}
	if eventType == v201.EventStarted {
		evse := v201.EVSE{Id: c.EvseID, ConnectorId: c.ID}
		req.Evse = &evse
		token := auth.ToIdToken201(tx.Identifier)
		req.IdToken = &token
	}
	if eventType == v201.EventEnded {
		req.TransactionInfo.StoppedReason = stopReason
		spent := int(time.Since(tx.StartedAt).Seconds())
		req.TransactionInfo.TimeSpentCharging = &spent
	}
	s.mu.Unlock()

	raw, err := s.call(ctx, v201.ActionTransactionEvent, req)
	if err != nil {
		if errors.Is(err, session.ErrQueued) {
			return nil, nil
		}
		return nil, err
	}
	var resp v201.TransactionEventResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("transaction event response: %w", err)
	}
	return &resp, nil
}

func (s *Station) startTransaction201(ctx context.Context, c *Connector, id auth.Identifier, remote bool, remoteStartID *int) error {
	s.mu.Lock()
	tx := &Transaction{
		ID:             uuid.NewString(),
		ConnectorID:    c.ID,
		EvseID:         c.EvseID,
		Identifier:     id,
		StartedAt:      time.Now(),
		MeterStartWh:   c.MeterWh,
		ChargingState:  v201.ChargingStateCharging,
		RemoteStarted:  remote,
		RemoteStartID:  remoteStartID,
		StartedOffline: !s.engine.Online(),
	}
	if c.Reservation != nil && c.Reservation.IdTag == id.Value {
		c.Reservation = nil
	}
	c.Transaction = tx
	c.Status = StatusCharging
	s.mu.Unlock()

	trigger := v201.TriggerAuthorized
	if remote {
		trigger = v201.TriggerRemoteStart
	}
	resp, err := s.sendTransactionEvent(ctx, c, tx, v201.EventStarted, trigger, "", nil)
	if err != nil {
		s.mu.Lock()
		c.Transaction = nil
		c.Status = StatusAvailable
		s.mu.Unlock()
		s.notifyStatus(ctx, c)
		return err
	}
	// The CSMS may overrule the authorization in the event response.
	if resp != nil && resp.IdTokenInfo != nil && resp.IdTokenInfo.Status != v201.AuthorizationAccepted {
		s.log.Info("transaction de-authorized by event response",
			zap.String("status", string(resp.IdTokenInfo.Status)))
		tx.ChargingState = v201.ChargingStateSuspendedEVSE
		s.sendTransactionEvent(ctx, c, tx, v201.EventUpdated, v201.TriggerDeauthorized, "", nil)
		s.mu.Lock()
		c.Transaction = nil
		c.Status = StatusAvailable
		s.mu.Unlock()
		s.notifyStatus(ctx, c)
		return fmt.Errorf("station: transaction de-authorized (%s)", resp.IdTokenInfo.Status)
	}

	s.notifyStatus(ctx, c)
	s.startSampler(c.ID)
	s.emitTransactionStarted(c, tx)
	return nil
}

func (s *Station) stopTransaction201(ctx context.Context, c *Connector, tx *Transaction, reason string) error {
	s.mu.Lock()
	tx.ChargingState = v201.ChargingStateIdle
	c.Status = StatusFinishing
	meterWh := c.MeterWh
	s.mu.Unlock()
	s.notifyStatus(ctx, c)

	trigger := v201.TriggerStopAuthorized
	if reason == stopReasonRemote {
		trigger = v201.TriggerRemoteStop
	}
	final := []v201.MeterValue{{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		SampledValue: []v201.SampledValue{{
			Value:         meterWh,
			Measurand:     "Energy.Active.Import.Register",
			Context:       "Transaction.End",
			UnitOfMeasure: &v201.UnitOfMeasure{Unit: "Wh"},
		}},
	}}
	_, err := s.sendTransactionEvent(ctx, c, tx, v201.EventEnded, trigger, v201.StopReason(reason), final)
	return err
}

func (s *Station) emitTransactionEventUpdate(ctx context.Context, c *Connector, sample meterSample) {
	s.mu.Lock()
	tx := c.Transaction
	s.mu.Unlock()
	if tx == nil {
		return
	}
	mv := []v201.MeterValue{{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		SampledValue: sample.to201(s.allowedMeasurands(c)),
	}}
	if _, err := s.sendTransactionEvent(ctx, c, tx, v201.EventUpdated,
		v201.TriggerMeterValuePeriodic, "", mv); err != nil {
		s.log.Debug("transaction update not delivered",
			zap.Int("evseId", c.EvseID), zap.Error(err))
	}
}

// --- inbound 2.0.1 ---

func (s *Station) handlers201() map[string]handlerFunc {
	return map[string]handlerFunc{
		v201.ActionReset:                   s.handleReset201,
		v201.ActionRequestStartTransaction: s.handleRequestStart201,
		v201.ActionRequestStopTransaction:  s.handleRequestStop201,
		v201.ActionUnlockConnector:         s.handleUnlockConnector201,
		v201.ActionChangeAvailability:      s.handleChangeAvailability201,
		v201.ActionGetVariables:            s.handleGetVariables201,
		v201.ActionSetVariables:            s.handleSetVariables201,
		v201.ActionTriggerMessage:          s.handleTriggerMessage201,
		v201.ActionCertificateSigned:       s.handleCertificateSigned201,
		v201.ActionInstallCertificate:      s.handleInstallCertificate201,
		v201.ActionDeleteCertificate:       s.handleDeleteCertificate201,
	}
}

func (s *Station) handleReset201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.ResetRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}

	if req.EvseId != nil && s.connectorByEvse(*req.EvseId) == nil {
		return v201.ResetResponse{
			Status:     v201.ResetRejected,
			StatusInfo: &v201.StatusInfo{ReasonCode: v201.ReasonCodeUnknownEvse},
		}, nil
	}

	busy := false
	s.mu.Lock()
	for _, c := range s.connectors {
		if c.Transaction != nil && (req.EvseId == nil || c.EvseID == *req.EvseId) {
			busy = true
			break
		}
	}
	s.mu.Unlock()

	if req.Type == v201.ResetOnIdle && busy {
		// The reset runs when the last transaction in scope ends.
		go s.resetWhenIdle(req.EvseId)
		return v201.ResetResponse{
			Status:     v201.ResetScheduled,
			StatusInfo: &v201.StatusInfo{ReasonCode: v201.ReasonCodeNoError},
		}, nil
	}
	go s.performReset(string(v201.StopReasonRemote))
	return v201.ResetResponse{
		Status:     v201.ResetAccepted,
		StatusInfo: &v201.StatusInfo{ReasonCode: v201.ReasonCodeNoError},
	}, nil
}

func (s *Station) resetWhenIdle(evseID *int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		stopCh := s.stopCh
		busy := false
		for _, c := range s.connectors {
			if c.Transaction != nil && (evseID == nil || c.EvseID == *evseID) {
				busy = true
				break
			}
		}
		s.mu.Unlock()
		if !busy {
			s.performReset(string(v201.StopReasonRemote))
			return
		}
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (s *Station) handleRequestStart201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.RequestStartTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}

	s.mu.Lock()
	var c *Connector
	if req.EvseId != nil {
		c = s.connectorByEvse(*req.EvseId)
	} else {
		for _, cand := range s.connectors {
			if cand.available() {
				c = cand
				break
			}
		}
	}
	ok := c != nil && c.available()
	s.mu.Unlock()
	if !ok {
		return v201.RequestStartTransactionResponse{Status: v201.RequestStartStopRejected}, nil
	}

	remoteStartID := req.RemoteStartId
	go func() {
		bg := context.Background()
		id := auth.FromIdToken201(req.IdToken)
		s.mu.Lock()
		c.Status = StatusPreparing
		s.mu.Unlock()
		s.notifyStatus(bg, c)

		authorizeFirst := s.vars.BoolValue(variables.ComponentAuthCtrlr,
			variables.VarAuthorizeRemoteStart, true)
		if authorizeFirst {
			result := s.chain.Authorize(bg, &auth.Request{
				Identifier: id, ConnectorId: c.ID, EvseId: c.EvseID,
			})
			if !result.Accepted() {
				s.log.Info("remote start refused by authorization",
					zap.String("idToken", id.Value), zap.String("status", string(result.Status)))
				s.mu.Lock()
				c.Status = StatusAvailable
				s.mu.Unlock()
				s.notifyStatus(bg, c)
				return
			}
		}
		if err := s.startTransaction201(bg, c, id, true, &remoteStartID); err != nil {
			s.log.Warn("remote start failed", zap.Error(err))
		}
	}()
	return v201.RequestStartTransactionResponse{Status: v201.RequestStartStopAccepted}, nil
}

func (s *Station) handleRequestStop201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.RequestStopTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}

	s.mu.Lock()
	var connectorID int
	found := false
	for _, c := range s.connectors {
		if c.Transaction != nil && c.Transaction.ID == req.TransactionId {
			connectorID = c.ID
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return v201.RequestStopTransactionResponse{Status: v201.RequestStartStopRejected}, nil
	}

	go func() {
		if err := s.StopTransaction(context.Background(), connectorID, stopReasonRemote); err != nil {
			s.log.Warn("remote stop failed", zap.Error(err))
		}
	}()
	return v201.RequestStopTransactionResponse{Status: v201.RequestStartStopAccepted}, nil
}

func (s *Station) handleUnlockConnector201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.UnlockConnectorRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	s.mu.Lock()
	c := s.connectorByEvse(req.EvseId)
	hasTx := c != nil && c.Transaction != nil
	s.mu.Unlock()
	if c == nil || c.ID != req.ConnectorId {
		return v201.UnlockConnectorResponse{Status: v201.UnlockUnknownConnector}, nil
	}
	if hasTx {
		// An authorized session blocks the unlock; the CSMS stops it first.
		return v201.UnlockConnectorResponse{Status: v201.UnlockOngoingAuthorizedTransaction}, nil
	}
	return v201.UnlockConnectorResponse{Status: v201.UnlockUnlocked}, nil
}

func (s *Station) handleChangeAvailability201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.ChangeAvailabilityRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	operative := req.OperationalStatus == v201.OperationalOperative

	s.mu.Lock()
	targets := make([]*Connector, 0)
	if req.Evse == nil {
		targets = append(targets, s.connectors...)
	} else if c := s.connectorByEvse(req.Evse.Id); c != nil {
		targets = append(targets, c)
	} else {
		s.mu.Unlock()
		return v201.ChangeAvailabilityResponse{
			Status:     v201.ChangeAvailabilityRejected,
			StatusInfo: &v201.StatusInfo{ReasonCode: v201.ReasonCodeUnknownEvse},
		}, nil
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
		return v201.ChangeAvailabilityResponse{Status: v201.ChangeAvailabilityScheduled}, nil
	}
	return v201.ChangeAvailabilityResponse{Status: v201.ChangeAvailabilityAccepted}, nil
}

func (s *Station) handleGetVariables201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.GetVariablesRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	if len(req.GetVariableData) == 0 {
		return nil, ocpp.NewError(ocpp.ErrorOccurrenceConstraintViolation, "getVariableData is empty")
	}
	return s.vars.GetVariables(&req, len(payload)), nil
}

func (s *Station) handleSetVariables201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.SetVariablesRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	if len(req.SetVariableData) == 0 {
		return nil, ocpp.NewError(ocpp.ErrorOccurrenceConstraintViolation, "setVariableData is empty")
	}
	resp := s.vars.SetVariables(&req, len(payload))
	s.persist()
	return resp, nil
}

func (s *Station) handleTriggerMessage201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.TriggerMessageRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}

	switch req.RequestedMessage {
	case v201.ActionBootNotification:
		go func() {
			if _, _, err := s.sendBootNotification(context.Background()); err != nil {
				s.log.Warn("triggered boot notification failed", zap.Error(err))
			}
		}()
	case v201.ActionHeartbeat:
		go s.sendHeartbeat(context.Background())
	case v201.ActionStatusNotification:
		go func() {
			bg := context.Background()
			if req.Evse != nil {
				if c := s.connectorByEvse(req.Evse.Id); c != nil {
					s.notifyStatus(bg, c)
				}
				return
			}
			s.SendAllStatusNotifications(bg)
		}()
	case v201.ActionMeterValues, v201.ActionTransactionEvent:
		go func() {
			bg := context.Background()
			s.mu.Lock()
			conns := make([]*Connector, len(s.connectors))
			copy(conns, s.connectors)
			s.mu.Unlock()
			for _, c := range conns {
				if req.Evse != nil && c.EvseID != req.Evse.Id {
					continue
				}
				if c.Transaction != nil {
					if sample, err := s.sampleLocked(c, 0); err == nil {
						s.emitTransactionEventUpdate(bg, c, sample)
					}
				}
			}
		}()
	case v201.ActionSignCertificate:
		go s.sendSignCertificate(context.Background())
	default:
		return v201.TriggerMessageResponse{Status: v201.TriggerMessageNotImplemented}, nil
	}
	return v201.TriggerMessageResponse{Status: v201.TriggerMessageAccepted}, nil
}

func (s *Station) sendSignCertificate(ctx context.Context) {
	if s.certs == nil {
		s.log.Warn("sign certificate triggered without a certificate manager")
		return
	}
	csr, err := s.certs.GenerateCSR(ctx, s.name)
	if err != nil {
		s.log.Warn("csr generation failed", zap.Error(err))
		return
	}
	if _, err := s.call(ctx, v201.ActionSignCertificate, v201.SignCertificateRequest{
		CSR:             csr,
		CertificateType: v201.CertificateUseChargingStation,
	}); err != nil && !errors.Is(err, session.ErrQueued) {
		s.log.Warn("sign certificate failed", zap.Error(err))
	}
}

func (s *Station) handleCertificateSigned201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.CertificateSignedRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	if s.certs == nil {
		return v201.CertificateSignedResponse{Status: v201.CertificateSignedRejected}, nil
	}
	certType := string(req.CertificateType)
	if certType == "" {
		certType = string(v201.CertificateUseChargingStation)
	}
	if err := s.certs.InstallChain(ctx, certType, req.CertificateChain); err != nil {
		s.log.Warn("certificate chain install failed", zap.Error(err))
		return v201.CertificateSignedResponse{Status: v201.CertificateSignedRejected}, nil
	}
	if certType == string(v201.CertificateUseChargingStation) {
		// The TLS identity changed. Cycle the connection so the next
		// handshake presents the new certificate; the short delay lets the
		// Accepted response flush first.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			time.Sleep(200 * time.Millisecond)
			s.engine.Reconnect()
		}()
	}
	return v201.CertificateSignedResponse{Status: v201.CertificateSignedAccepted}, nil
}

// reconcileQueued201 inspects the responses of replayed offline calls. A
// TransactionEvent replay can de-authorize a transaction that started while
// the station was offline.
func (s *Station) reconcileQueued201(action string, request, response json.RawMessage) {
	if action != v201.ActionTransactionEvent {
		return
	}
	var req v201.TransactionEventRequest
	var resp v201.TransactionEventResponse
	if json.Unmarshal(request, &req) != nil || json.Unmarshal(response, &resp) != nil {
		return
	}
	if resp.IdTokenInfo == nil || resp.IdTokenInfo.Status == v201.AuthorizationAccepted {
		return
	}

	s.mu.Lock()
	var connectorID int
	found := false
	for _, c := range s.connectors {
		tx := c.Transaction
		if tx != nil && tx.StartedOffline && tx.ID == req.TransactionInfo.TransactionId {
			tx.StartedOffline = false
			connectorID = c.ID
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return
	}
	s.log.Info("offline transaction de-authorized on replay",
		zap.String("transactionId", req.TransactionInfo.TransactionId),
		zap.String("status", string(resp.IdTokenInfo.Status)))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.StopTransaction(context.Background(), connectorID, string(v201.StopReasonDeAuthorized)); err != nil {
			s.log.Warn("stop after de-authorization failed", zap.Error(err))
		}
	}()
}

func (s *Station) handleInstallCertificate201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.InstallCertificateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	if s.certs == nil {
		return v201.InstallCertificateResponse{Status: v201.InstallCertificateRejected}, nil
	}
	if err := s.certs.Install(ctx, req.CertificateType, req.Certificate); err != nil {
		s.log.Warn("certificate install failed", zap.Error(err))
		return v201.InstallCertificateResponse{Status: v201.InstallCertificateFailed}, nil
	}
	return v201.InstallCertificateResponse{Status: v201.InstallCertificateAccepted}, nil
}

func (s *Station) handleDeleteCertificate201(ctx context.Context, payload json.RawMessage) (any, *ocpp.Error) {
	var req v201.DeleteCertificateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, ocpp.NewError(ocpp.FormatErrorCode(s.version), err.Error())
	}
	if s.certs == nil {
		return v201.DeleteCertificateResponse{Status: v201.DeleteCertificateFailed}, nil
	}
	found, err := s.certs.Delete(ctx, domain.CertificateHash{
		HashAlgorithm:  req.CertificateHashData.HashAlgorithm,
		IssuerNameHash: req.CertificateHashData.IssuerNameHash,
		IssuerKeyHash:  req.CertificateHashData.IssuerKeyHash,
		SerialNumber:   req.CertificateHashData.SerialNumber,
	})
	switch {
	case err != nil:
		return v201.DeleteCertificateResponse{Status: v201.DeleteCertificateFailed}, nil
	case !found:
		return v201.DeleteCertificateResponse{Status: v201.DeleteCertificateNotFound}, nil
	default:
		return v201.DeleteCertificateResponse{Status: v201.DeleteCertificateAccepted}, nil
	}
}
