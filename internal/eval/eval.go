// Package eval implements the three-variant evaluation harness. It
// consumes only internal/core and internal/algo's exported Mapf entry
// point, staying outside the core/algo boundary.
package eval

import (
	"time"

	"go.uber.org/multierr"

	"github.com/elektrokombinacija/mapf-core/internal/algo"
	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// RunReport holds one planner run's metrics: makespan, flowtime,
// service time, and wall-clock planning time.
type RunReport struct {
	Variant     string // "directed", "undirected", "dynamic"
	Makespan    int
	Flowtime    int
	ServiceTime float64
	WallTime    time.Duration
	Err         error
}

// Report is the three-run evaluation result produced by Evaluate.
type Report struct {
	Directed   RunReport
	Undirected RunReport
	Dynamic    RunReport
}

// Evaluate runs the planner named by params.Algorithm three times over
// scenario — once on the map as given (directed), once after
// Undirect()-ing a clone of the map (undirected-by-copy), and once
// with DirectionChangeFrequency forced on (dynamic).
// Each variant's RunReport.Err carries that variant's own failure; the
// returned error aggregates them (via go.uber.org/multierr) only when
// every variant failed, so a caller can always inspect the partial
// Report for whichever variants did succeed.
func Evaluate(scenario *core.Scenario, params core.Params) (*Report, error) {
	report := &Report{
		Directed:   runVariant("directed", scenario, params, scenario.Map),
		Undirected: runVariant("undirected", scenario, params, undirectedCopy(scenario.Map)),
		Dynamic:    runDynamic(scenario, params),
	}

	if report.Directed.Err != nil && report.Undirected.Err != nil && report.Dynamic.Err != nil {
		var err error
		err = multierr.Append(err, report.Directed.Err)
		err = multierr.Append(err, report.Undirected.Err)
		err = multierr.Append(err, report.Dynamic.Err)
		return report, err
	}
	return report, nil
}

func runVariant(label string, scenario *core.Scenario, params core.Params, m *core.Map) RunReport {
	variant := *scenario
	variant.Map = m

	start := time.Now()
	cp, err := algo.Mapf(&variant, params, core.NoDeadline())
	elapsed := time.Since(start)

	report := RunReport{Variant: label, WallTime: elapsed, Err: err}
	if err != nil {
		return report
	}
	fillMetrics(&report, &variant, cp)
	return report
}

func runDynamic(scenario *core.Scenario, params core.Params) RunReport {
	dynamicParams := params
	if dynamicParams.DirectionChangeFrequency <= 0 {
		dynamicParams.DirectionChangeFrequency = 2
	}
	return runVariant("dynamic", scenario, dynamicParams, scenario.Map)
}

func fillMetrics(report *RunReport, scenario *core.Scenario, cp *core.CommonPlan) {
	report.Makespan = cp.Makespan()
	report.Flowtime = cp.SumOfCosts()

	if scenario.IsMAPD() {
		var total float64
		n := 0
		for _, t := range scenario.Tasks {
			if st := t.ServiceTime(); st >= 0 {
				total += float64(st)
				n++
			}
		}
		if n > 0 {
			report.ServiceTime = total / float64(n)
		}
		return
	}

	if len(cp.Plans) > 0 {
		sum := 0
		for _, p := range cp.Plans {
			sum += p.Len()
		}
		report.ServiceTime = float64(sum) / float64(len(cp.Plans))
	}
}

// undirectedCopy returns a copy of m's edges, obstacles, and parking
// cells in fresh maps with Undirect() applied,
// leaving m itself untouched.
func undirectedCopy(m *core.Map) *core.Map {
	clone := core.NewMap(m.Width, m.Height)
	for _, e := range m.Edges() {
		clone.AddEdge(e.From, e.To)
	}
	for p := range m.Obstacles {
		clone.Obstacles[p] = true
	}
	for p := range m.Parking {
		clone.Parking[p] = true
	}
	clone.Undirect()
	return clone
}
