package station

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/observability/telemetry"
	"github.com/voltbench/ocpp-sim/internal/ocpp"
	v16 "github.com/voltbench/ocpp-sim/internal/ocpp/v16"
	v201 "github.com/voltbench/ocpp-sim/internal/ocpp/v201"
	"github.com/voltbench/ocpp-sim/internal/template"
	"github.com/voltbench/ocpp-sim/internal/variables"
)

// errNoPowerDivider marks a sample taken while the station has no connectors
// to share power across. Such samples carry no usable reading and are not
// reported.
var errNoPowerDivider = errors.New("station: power divider is not positive")

// meterSample is one synthesized reading of a charging connector.
type meterSample struct {
	energyWh     float64
	powerW       float64
	phases       []string  // wire phase labels, one per phase
	voltages     []float64 // one per phase
	currents     []float64 // one per phase
	currentTotal float64
	soc          float64
}

// phaseLabel names phase i of a phases-wire hookup. Below 250 V the reading
// is line-to-neutral; above, line-to-line.
func phaseLabel(i, phases int, lineToLine bool) string {
	if !lineToLine || phases < 2 {
		return fmt.Sprintf("L%d-N", i+1)
	}
	next := (i+1)%phases + 1
	return fmt.Sprintf("L%d-L%d", i+1, next)
}

func (m meterSample) to201(allowed func(string) bool) []v201.SampledValue {
	var out []v201.SampledValue
	if allowed("Energy.Active.Import.Register") {
		out = append(out, v201.SampledValue{
			Value:         m.energyWh,
			Measurand:     "Energy.Active.Import.Register",
			Context:       "Sample.Periodic",
			UnitOfMeasure: &v201.UnitOfMeasure{Unit: "Wh"},
		})
	}
	if allowed("Power.Active.Import") {
		out = append(out, v201.SampledValue{
			Value:         m.powerW,
			Measurand:     "Power.Active.Import",
			UnitOfMeasure: &v201.UnitOfMeasure{Unit: "W"},
		})
	}
	if allowed("Voltage") {
		for phase, v := range m.voltages {
			out = append(out, v201.SampledValue{
				Value:         v,
				Measurand:     "Voltage",
				Phase:         m.phases[phase],
				UnitOfMeasure: &v201.UnitOfMeasure{Unit: "V"},
			})
		}
	}
	if allowed("Current.Import") {
		for phase, a := range m.currents {
			out = append(out, v201.SampledValue{
				Value:         a,
				Measurand:     "Current.Import",
				Phase:         m.phases[phase],
				UnitOfMeasure: &v201.UnitOfMeasure{Unit: "A"},
			})
		}
		out = append(out, v201.SampledValue{
			Value:         m.currentTotal,
			Measurand:     "Current.Import",
			UnitOfMeasure: &v201.UnitOfMeasure{Unit: "A"},
		})
	}
	if m.soc > 0 && allowed("SoC") {
		out = append(out, v201.SampledValue{Value: m.soc, Measurand: "SoC"})
	}
	return out
}

// buildSampledValues16 renders a sample in 1.6 MeterValues form, restricted
// to the measurands the connector template declares.
func buildSampledValues16(m meterSample, allowed func(string) bool) []v16.SampledValue {
	var out []v16.SampledValue
	if allowed("Energy.Active.Import.Register") {
		out = append(out, v16.SampledValue{
			Value:     strconv.Itoa(int(m.energyWh)),
			Measurand: "Energy.Active.Import.Register",
			Unit:      "Wh",
		})
	}
	if allowed("Power.Active.Import") {
		out = append(out, v16.SampledValue{
			Value:     strconv.FormatFloat(m.powerW, 'f', 1, 64),
			Measurand: "Power.Active.Import",
			Unit:      "W",
		})
	}
	if allowed("Voltage") {
		for phase, v := range m.voltages {
			out = append(out, v16.SampledValue{
				Value:     strconv.FormatFloat(v, 'f', 1, 64),
				Measurand: "Voltage",
				Phase:     m.phases[phase],
				Unit:      "V",
			})
		}
	}
	if allowed("Current.Import") {
		for phase, a := range m.currents {
			out = append(out, v16.SampledValue{
				Value:     strconv.FormatFloat(a, 'f', 1, 64),
				Measurand: "Current.Import",
				Phase:     m.phases[phase],
				Unit:      "A",
			})
		}
		out = append(out, v16.SampledValue{
			Value:     strconv.FormatFloat(m.currentTotal, 'f', 1, 64),
			Measurand: "Current.Import",
			Unit:      "A",
		})
	}
	if m.soc > 0 && allowed("SoC") {
		out = append(out, v16.SampledValue{
			Value:     strconv.Itoa(int(m.soc)),
			Measurand: "SoC",
			Unit:      "Percent",
		})
	}
	return out
}

// allowedMeasurands returns the measurand filter of a connector. An empty
// meterValues list in the template admits every measurand.
func (s *Station) allowedMeasurands(c *Connector) func(string) bool {
	var ct []template.SampledValueTemplate
	if s.version == ocpp.V201 {
		if evse, ok := s.tpl.Evses[c.EvseID]; ok {
			ct = evse.Connectors[c.ID].MeterValues
		}
	} else {
		ct = s.tpl.Connectors[c.ID].MeterValues
	}
	if len(ct) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]struct{}, len(ct))
	for _, mv := range ct {
		set[mv.Measurand] = struct{}{}
	}
	return func(measurand string) bool {
		_, ok := set[measurand]
		return ok
	}
}

// sampleInterval returns the configured sampling period.
func (s *Station) sampleInterval() time.Duration {
	sec := 60
	if s.version == ocpp.V16 {
		if k, ok := s.keys.Get(variables.KeyMeterValueSampleInterval); ok {
			if n, err := strconv.Atoi(k.Value); err == nil && n > 0 {
				sec = n
			}
		}
	} else {
		if n := s.vars.IntValue(variables.ComponentTxCtrlr, variables.VarTxUpdatedInterval, 0); n > 0 {
			sec = n
		}
	}
	return time.Duration(sec) * time.Second
}

// sampleLocked advances the connector meter by elapsed time and returns the
// reading. A zero elapsed produces a reading without accumulation. The error
// return signals a reading that must not be reported.
func (s *Station) sampleLocked(c *Connector, elapsed time.Duration) (meterSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.powerDivider <= 0 {
		s.log.Error("power divider is not positive, no meter reading",
			zap.Int("powerDivider", s.powerDivider))
		return meterSample{}, errNoPowerDivider
	}

	if elapsed > 0 {
		// Wh gained = W shared across connectors, scaled by elapsed hours.
		gained := s.tpl.MaximumPower / float64(s.powerDivider) * elapsed.Hours()
		c.MeterWh += gained
		telemetry.EnergyDeliveredWh.Add(gained)
		if c.SoC < 100 {
			// Rough SoC ramp: a percent per sample, capped at full.
			c.SoC++
			if c.SoC > 100 {
				c.SoC = 100
			}
		}
	}

	phases := s.tpl.NumberOfPhases
	if phases <= 0 {
		phases = 3
	}
	lineToLine := s.tpl.VoltageOut > 250
	powerW := s.tpl.MaximumPower / float64(s.powerDivider)
	perPhaseW := powerW / float64(phases)

	sample := meterSample{
		energyWh: c.MeterWh,
		powerW:   powerW,
		soc:      c.SoC,
	}
	for i := 0; i < phases; i++ {
		// Nominal voltage with up to ±10% fluctuation.
		v := s.tpl.VoltageOut * (0.9 + rand.Float64()*0.2)
		sample.phases = append(sample.phases, phaseLabel(i, phases, lineToLine))
		sample.voltages = append(sample.voltages, v)
		sample.currents = append(sample.currents, perPhaseW/v)
		sample.currentTotal += perPhaseW / v
	}
	return sample, nil
}

// startSampler launches the periodic meter loop of a connector.
func (s *Station) startSampler(connectorID int) {
	s.mu.Lock()
	if _, running := s.samplers[connectorID]; running {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.samplers[connectorID] = stop
	c := s.connector(connectorID)
	s.mu.Unlock()
	if c == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		last := time.Now()
		for {
			interval := s.sampleInterval()
			select {
			case <-stop:
				// Final accumulation so the stop meter reflects the tail.
				s.sampleLocked(c, time.Since(last))
				return
			case <-time.After(interval):
			}
			now := time.Now()
			sample, err := s.sampleLocked(c, now.Sub(last))
			last = now
			if err != nil {
				continue
			}

			ctx := context.Background()
			if s.version == ocpp.V16 {
				s.emitMeterValues16(ctx, c, sample)
			} else {
				s.emitTransactionEventUpdate(ctx, c, sample)
			}
		}
	}()
}

// stopSampler halts the meter loop of a connector.
func (s *Station) stopSampler(connectorID int) {
	s.mu.Lock()
	stop, ok := s.samplers[connectorID]
	if ok {
		delete(s.samplers, connectorID)
	}
	s.mu.Unlock()
	if ok {
		close(stop)
	}
}
