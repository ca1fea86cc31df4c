//go:build js && wasm

// Command wasm exposes the rail simulator to the browser via WebAssembly.
// After loading, it registers a global JavaScript function:
//
//	runSimulation(scenarioYAML, ticks) -> jsonString
//
// The scenario is the same YAML (or JSON) document the CLI reads; an empty
// string selects the built-in station preset. The result is the
// SimulationLog JSON.
package main

import (
	"context"
	"syscall/js"

	"github.com/cxd309/tms-rail/internal/engine"
	"github.com/cxd309/tms-rail/internal/scenario"
)

const defaultTicks = 600

func main() {
	js.Global().Set("runSimulation", js.FuncOf(runSimulation))
	select {} // keep the WASM module alive until the page is closed
}

func runSimulation(_ js.Value, args []js.Value) any {
	input := ""
	if len(args) > 0 {
		input = args[0].String()
	}
	ticks := defaultTicks
	if len(args) > 1 && args[1].Type() == js.TypeNumber {
		ticks = args[1].Int()
	}

	if input == "" {
		sc, err := scenario.Default()
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		result, err := engine.RunScenario(context.Background(), sc, ticks, engine.Options{})
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		return result
	}

	result, err := engine.RunYAML(input, ticks)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}
