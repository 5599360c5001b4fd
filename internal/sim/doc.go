// Package sim is an in-process stand-in for the autopilot host.
//
// A World bundles a virtual clock, a discrete-event Host that runs
// cooperative tasks in due-time order, a Vehicle implementing the arming,
// state, follow, fence and motor capabilities, a two-layer ParamTable, a
// Terrain model, and a Recorder that captures everything the add-on says
// and does. Everything runs on the caller's goroutine.
package sim
