package station

import (
	"context"

	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/auth"
	"github.com/voltbench/ocpp-sim/internal/ocpp"
)

// Version-neutral outbound operations; each dispatches to the wire shape of
// the station's protocol version.

func (s *Station) sendBootNotification(ctx context.Context) (status string, interval int, err error) {
	if s.version == ocpp.V16 {
		return s.boot16(ctx)
	}
	return s.boot201(ctx)
}

func (s *Station) sendHeartbeat(ctx context.Context) error {
	if s.version == ocpp.V16 {
		return s.heartbeat16(ctx)
	}
	return s.heartbeat201(ctx)
}

func (s *Station) notifyStatus(ctx context.Context, c *Connector) {
	s.mu.Lock()
	status := c.Status
	s.mu.Unlock()
	var err error
	if s.version == ocpp.V16 {
		err = s.statusNotification16(ctx, c.ID, status)
	} else {
		err = s.statusNotification201(ctx, c.EvseID, c.ID, status)
	}
	if err != nil {
		s.log.Debug("status notification not delivered",
			zap.Int("connectorId", c.ID), zap.Error(err))
	}
	s.emit("statusChanged", map[string]any{
		"connectorId": c.ID, "evseId": c.EvseID, "status": string(status),
	})
}

// SendAllStatusNotifications re-announces every connector status, used by
// boot acceptance and the control plane.
func (s *Station) SendAllStatusNotifications(ctx context.Context) {
	s.mu.Lock()
	conns := make([]*Connector, len(s.connectors))
	copy(conns, s.connectors)
	s.mu.Unlock()
	for _, c := range conns {
		s.notifyStatus(ctx, c)
	}
}

// wireAuthorizer is the auth chain's remote backend: the Authorize call of
// the station's own session.
type wireAuthorizer struct {
	s *Station
}

func (w *wireAuthorizer) Online() bool { return w.s.Online() }

func (w *wireAuthorizer) AuthorizeRemote(ctx context.Context, req *auth.Request) (*auth.Result, error) {
	if w.s.version == ocpp.V16 {
		return w.s.authorize16(ctx, req.Identifier)
	}
	return w.s.authorize201(ctx, req.Identifier)
}
