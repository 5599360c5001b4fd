// Package harness runs YAML scenarios against a simulated vehicle.
//
// A scenario seeds a sim.World (vehicle, terrain, parameters and an optional
// inline CUE profile), starts the add-on on the world's host, then walks a
// list of steps. Each step applies changes and advances virtual time. The
// recorded trace is checked against the scenario's assertions and,
// optionally, a golden file.
//
// # Scenario Format
//
//	name: fence_deny_then_clear
//	description: "Polygon fence enabled before any points are loaded"
//	params:
//	  FENCE_ENABLE: 1
//	  FENCE_TYPE: 4
//	vehicle:
//	  category: copter
//	  mode: loiter
//	steps:
//	  - advance: 30s
//	  - vehicle: { fence_vertices: 5 }
//	    advance: 500ms
//	assertions:
//	  - type: denied
//	    text: "Fence enabled but no fence present"
//	    count: 1
//	  - type: auth_state
//	    state: granted
//
// # Assertion Types
//
//   - notified: a notification matching severity/text/contains was sent
//   - not_notified: no notification matches
//   - denied: a deny matching text/contains was written
//   - granted: grants were written (count optional)
//   - auth_state: final authorization slot state and reason
//   - param: final live (default) or durable parameter value
//   - event_count: exact number of trace events of one kind
//
// # Deterministic Testing
//
// Virtual time starts at zero and only moves when a step advances it, so a
// scenario's trace is identical on every run. The session token defaults to
// "scenario-<name>".
package harness
