// Package rules holds the arming validation rules and the registry that
// owns them.
//
// A rule is a typed predicate, the value it must produce, a severity, and a
// message. Rules are registered once during initialization; the registry is
// then sealed and iterated in declaration order on every sweep.
//
// Severity is closed: Hard failures deny arming, Soft failures only warn.
package rules
