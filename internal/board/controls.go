package board

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/mbd888/guardlens/internal/metrics"
	"github.com/mbd888/guardlens/internal/monitor"
	"github.com/mbd888/guardlens/internal/panels"
	"github.com/mbd888/guardlens/internal/traces"
)

// ErrUnsupportedAction is returned for an action the panel does not offer.
var ErrUnsupportedAction = errors.New("board: unsupported action")

// Control actions.
const (
	ActionSetThreshold   = "set_threshold"
	ActionSetAdaptive    = "set_adaptive"
	ActionSetSensitivity = "set_sensitivity"
	ActionToggleControl  = "toggle_control"
	ActionSetEnabled     = "set_enabled"
	ActionGenerate       = "generate"
	ActionSetPeriod      = "set_period"
	ActionSetTimeRange   = "set_time_range"
	ActionStart          = "start"
	ActionPause          = "pause"
	ActionStop           = "stop"
	ActionReset          = "reset"
)

// ControlRequest is a user interaction with a panel. Which fields are
// required depends on Action.
type ControlRequest struct {
	Action  string   `json:"action" binding:"required"`
	Name    string   `json:"name,omitempty"`
	Value   *float64 `json:"value,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
}

// Control applies req to a mounted panel and returns the panel's snapshot
// afterwards. The new state is published right away rather than on the
// next tick.
func (b *Board) Control(ctx context.Context, slug, id string, req ControlRequest) (any, error) {
	ctx, span := traces.StartSpan(ctx, "board.Control", traces.Page(slug), traces.Panel(id), traces.Action(req.Action))
	defer span.End()

	m, p, err := b.mountedPanel(slug, id)
	if err != nil {
		traces.RecordError(span, err)
		return nil, err
	}

	switch t := p.(type) {
	case *monitor.Session:
		_, err = b.transition(ctx, m, t, req.Action)
	case *panels.AnomalyThreshold:
		err = controlThreshold(t, req)
	case *panels.PrivacyDashboard:
		err = controlPrivacy(t, req)
	case *panels.FederatedLearning:
		err = controlFederated(t, req)
	case *panels.Reporting:
		err = controlReporting(t, req)
	case *panels.FraudAnalytics:
		err = controlFraud(t, req)
	default:
		err = unsupported(id, req.Action)
	}
	if err != nil {
		traces.RecordError(span, err)
		return nil, err
	}
	return b.publish(m, p), nil
}

// Monitor runs a toggle transition on the mounted dashboard's session.
func (b *Board) Monitor(ctx context.Context, action string) (monitor.State, error) {
	ctx, span := traces.StartSpan(ctx, "board.Monitor", traces.Action(action))
	defer span.End()

	m, s, err := b.monitoring()
	if err != nil {
		traces.RecordError(span, err)
		return monitor.State{}, err
	}
	st, err := b.transition(ctx, m, s, action)
	if err != nil {
		traces.RecordError(span, err)
		return monitor.State{}, err
	}
	b.publish(m, s)
	return st, nil
}

func (b *Board) transition(ctx context.Context, m *mount, s *monitor.Session, action string) (monitor.State, error) {
	var st monitor.State
	switch action {
	case ActionStart:
		st = s.Start(ctx)
	case ActionPause:
		st = s.Pause(ctx)
	case ActionStop:
		st = s.Stop(ctx)
	case ActionReset:
		st = s.Reset(ctx)
	default:
		return monitor.State{}, unsupported(monitor.PanelID, action)
	}
	if st.SessionID != "" {
		trace.SpanFromContext(ctx).SetAttributes(traces.SessionID(st.SessionID))
	}
	m.live(func() { b.emitter.PublishMonitoring(st) })
	b.logger.Info("monitoring transition", "action", action, "status", string(st.Status), "session", st.SessionID)
	return st, nil
}

func controlThreshold(p *panels.AnomalyThreshold, req ControlRequest) error {
	switch req.Action {
	case ActionSetThreshold:
		if req.Name == "" || req.Value == nil {
			return fmt.Errorf("%w: name and value are required", panels.ErrInvalidValue)
		}
		return p.SetThreshold(req.Name, *req.Value)
	case ActionSetAdaptive:
		if req.Enabled == nil {
			return fmt.Errorf("%w: enabled is required", panels.ErrInvalidValue)
		}
		p.SetAdaptive(*req.Enabled)
		return nil
	case ActionSetSensitivity:
		if req.Value == nil {
			return fmt.Errorf("%w: value is required", panels.ErrInvalidValue)
		}
		return p.SetGlobalSensitivity(int(*req.Value))
	}
	return unsupported(p.ID(), req.Action)
}

func controlPrivacy(p *panels.PrivacyDashboard, req ControlRequest) error {
	if req.Action != ActionToggleControl {
		return unsupported(p.ID(), req.Action)
	}
	_, err := p.ToggleControl(req.Name)
	return err
}

func controlFederated(p *panels.FederatedLearning, req ControlRequest) error {
	if req.Action != ActionSetEnabled {
		return unsupported(p.ID(), req.Action)
	}
	if req.Enabled == nil {
		return fmt.Errorf("%w: enabled is required", panels.ErrInvalidValue)
	}
	p.SetEnabled(*req.Enabled)
	return nil
}

func controlReporting(p *panels.Reporting, req ControlRequest) error {
	switch req.Action {
	case ActionGenerate:
		err := p.Generate(req.Name)
		switch {
		case err == nil:
			metrics.ReportsGeneratedTotal.WithLabelValues("started").Inc()
		case errors.Is(err, panels.ErrBusy):
			metrics.ReportsGeneratedTotal.WithLabelValues("busy").Inc()
		default:
			metrics.ReportsGeneratedTotal.WithLabelValues("rejected").Inc()
		}
		return err
	case ActionSetPeriod:
		return p.SetPeriod(req.Name)
	}
	return unsupported(p.ID(), req.Action)
}

func controlFraud(p *panels.FraudAnalytics, req ControlRequest) error {
	if req.Action != ActionSetTimeRange {
		return unsupported(p.ID(), req.Action)
	}
	return p.SetTimeRange(req.Name)
}

func unsupported(panel, action string) error {
	return fmt.Errorf("%w: %q on %q", ErrUnsupportedAction, action, panel)
}
