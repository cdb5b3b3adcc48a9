// Package patch defines the fixed patch-unit sequence and the sequencer
// that reapplies it on top of a reset baseline.
package patch

import "fmt"

// Risk classifies how likely a unit is to conflict during reapply.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Unit is one entry in the ordered patch sequence. Ordinals start at 1 and
// the order is significant: later units assume earlier ones already landed.
type Unit struct {
	Ordinal int
	Name    string
	Purpose string
	Risk    Risk
	// Targets are the repository-relative paths the unit is expected to
	// touch. Used for the conflict-marker scan and the resolution watcher.
	Targets []string
}

// FileName returns the patch file name for this unit, e.g. "01-gh200-package.patch".
func (u Unit) FileName() string {
	return fmt.Sprintf("%02d-%s.patch", u.Ordinal, u.Name)
}

// LogName returns the per-unit apply log file name, e.g. "01-gh200-package.log".
func (u Unit) LogName() string {
	return fmt.Sprintf("%02d-%s.log", u.Ordinal, u.Name)
}

// Label returns the ordinal-qualified unit name for display and logging.
func (u Unit) Label() string {
	return fmt.Sprintf("%02d-%s", u.Ordinal, u.Name)
}

// Units returns the fixed patch sequence in apply order. The slice is
// freshly allocated; callers may not rely on mutating shared state.
func Units() []Unit {
	return []Unit{
		{
			Ordinal: 1,
			Name:    "gh200-package",
			Purpose: "Adds the simpletuner/gh200 support package",
			Risk:    RiskMedium,
			Targets: []string{
				"simpletuner/gh200/__init__.py",
				"simpletuner/gh200/uvm.py",
				"simpletuner/gh200/memory.py",
			},
		},
		{
			Ordinal: 2,
			Name:    "uvm-env-wiring",
			Purpose: "Wires UVM allocator environment plumbing into the train launcher",
			Risk:    RiskHigh,
			Targets: []string{
				"train.py",
				"helpers/training/env.py",
			},
		},
		{
			Ordinal: 3,
			Name:    "attention-restore",
			Purpose: "Adds restore hooks to the attention backend controller",
			Risk:    RiskHigh,
			Targets: []string{
				"helpers/training/attention_backend.py",
			},
		},
		{
			Ordinal: 4,
			Name:    "in-memory-backend",
			Purpose: "Adds the in-memory data backend builder",
			Risk:    RiskMedium,
			Targets: []string{
				"helpers/data_backend/builders/in_memory.py",
			},
		},
		{
			Ordinal: 5,
			Name:    "backend-factory",
			Purpose: "Registers the in-memory builder with the data backend factory",
			Risk:    RiskHigh,
			Targets: []string{
				"helpers/data_backend/factory.py",
			},
		},
		{
			Ordinal: 6,
			Name:    "diagnostic-script",
			Purpose: "Adds the GH200 diagnostic entry point and verification scripts",
			Risk:    RiskLow,
			Targets: []string{
				"gh200_diagnostic.py",
				"tests/gh200/verify_upstream.py",
				"tests/gh200/verify_gh200.py",
				"tests/gh200/verify_combined.py",
			},
		},
		{
			Ordinal: 7,
			Name:    "docs-and-launchers",
			Purpose: "Adds GH200 documentation and launch scripts",
			Risk:    RiskLow,
			Targets: []string{
				"documentation/GH200.md",
				"launch-gh200.sh",
			},
		},
	}
}
