package vehicle

import (
	"fmt"
	"strings"
)

// Severity is a notification severity. Values match the MAVLink
// MAV_SEVERITY numbering so a transport can forward them unchanged.
type Severity int

const (
	SeverityEmergency Severity = iota
	SeverityAlert
	SeverityCritical
	SeverityError
	SeverityWarning
	SeverityNotice
	SeverityInfo
	SeverityDebug
)

var severityNames = [...]string{
	SeverityEmergency: "emergency",
	SeverityAlert:     "alert",
	SeverityCritical:  "critical",
	SeverityError:     "error",
	SeverityWarning:   "warning",
	SeverityNotice:    "notice",
	SeverityInfo:      "info",
	SeverityDebug:     "debug",
}

func (s Severity) String() string {
	if s >= 0 && int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity parses a severity name such as "warning".
func ParseSeverity(name string) (Severity, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// Mode is the autopilot flight mode.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeManual
	ModeStabilize
	ModeAltHold
	ModeLoiter
	ModeAuto
	ModeTakeoff
	ModeGuided
	ModeRTL
	ModeLand
	ModeFollow
)

var modeNames = [...]string{
	ModeUnknown:   "unknown",
	ModeManual:    "manual",
	ModeStabilize: "stabilize",
	ModeAltHold:   "althold",
	ModeLoiter:    "loiter",
	ModeAuto:      "auto",
	ModeTakeoff:   "takeoff",
	ModeGuided:    "guided",
	ModeRTL:       "rtl",
	ModeLand:      "land",
	ModeFollow:    "follow",
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses a mode name such as "auto". Matching is case-insensitive.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range modeNames {
		if i == int(ModeUnknown) {
			continue
		}
		if n == name {
			return Mode(i), nil
		}
	}
	return ModeUnknown, fmt.Errorf("unknown mode %q", name)
}

// Category is the airframe class of the vehicle.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryCopter
	CategoryFixedWing
	CategoryRover
	CategorySub
)

var categoryNames = [...]string{
	CategoryUnknown:   "unknown",
	CategoryCopter:    "copter",
	CategoryFixedWing: "plane",
	CategoryRover:     "rover",
	CategorySub:       "sub",
}

func (c Category) String() string {
	if c >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory parses a category name. "plane" and "fixed-wing" both map to
// CategoryFixedWing.
func ParseCategory(name string) (Category, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "fixed-wing" || name == "fixedwing" {
		return CategoryFixedWing, nil
	}
	for i, n := range categoryNames {
		if i == int(CategoryUnknown) {
			continue
		}
		if n == name {
			return Category(i), nil
		}
	}
	return CategoryUnknown, fmt.Errorf("unknown category %q", name)
}
