// Package vehicle defines the contract between armguard and the autopilot
// it rides on.
//
// Everything the add-on reads or writes on the vehicle goes through the
// interfaces in this package: parameters, the arming authorization slot,
// the notification sink, mode/category/position state, the follow target,
// terrain heights, the fence, the motor emergency stop, and time.
//
// The host guarantees non-reentrancy: at most one armguard tick runs at a
// time, so implementations are called from a single goroutine and none of the
// interfaces here require internal locking.
//
// Parameter writes through Params are live only. There is deliberately no
// save operation in the interface; corrections computed by the add-on must
// never reach durable storage.
package vehicle
