package rules

import (
	"fmt"
	"math"

	"github.com/roach88/armguard/internal/vehicle"
)

// Built-in rule IDs.
const (
	IDFencePresent = "fence_present"
	IDAutoFence    = "auto_fence"
	IDMotorStop    = "motor_estop"
	IDRTLAltitude  = "rtl_altitude"
	IDRTLClimb     = "rtl_climb"
)

// Fence type bits, as used by the FENCE_TYPE bitmask.
const (
	fenceMaxAlt  = 0x1
	fenceCircle  = 0x2
	fencePolygon = 0x4
	fenceMinAlt  = 0x8

	// fenceSelfContained covers the fence types that need no loaded points.
	fenceSelfContained = fenceMaxAlt | fenceCircle | fenceMinAlt
)

// FencePresent reports whether the fence described by typeMask is usable.
// Altitude and circle fences need nothing else; a polygon fence needs at
// least one loaded vertex.
func FencePresent(typeMask uint32, vertices int) bool {
	if typeMask&fenceSelfContained != 0 {
		return true
	}
	return typeMask&fencePolygon != 0 && vertices > 0
}

// FenceParams names the parameters the perimeter rules read.
type FenceParams struct {
	Enable string
	Type   string
}

// fenceTypeMask reads the fence type parameter as a bitmask. Absent reads as
// zero; a value that is not a non-negative integer is an error.
func fenceTypeMask(p vehicle.Params, name string) (uint32, error) {
	v, ok := p.Get(name)
	if !ok {
		return 0, nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) || v > math.MaxUint32 {
		return 0, fmt.Errorf("%s=%v is not a valid fence type bitmask", name, v)
	}
	return uint32(v), nil
}

func fencePresent(p vehicle.Params, f vehicle.Fence, names FenceParams) (bool, error) {
	mask, err := fenceTypeMask(p, names.Type)
	if err != nil {
		return false, err
	}
	return FencePresent(mask, f.VertexCount()), nil
}

// Perimeter fails when the fence is enabled but no usable fence is loaded.
func Perimeter(p vehicle.Params, f vehicle.Fence, names FenceParams, sev Severity) Descriptor {
	return Define(IDFencePresent, sev, "Fence enabled but no fence present",
		func() (bool, error) {
			enable, ok := p.Get(names.Enable)
			if !ok || enable != 1 {
				return true, nil
			}
			return fencePresent(p, f, names)
		}, true)
}

// AutoPerimeter fails when a fixed-wing vehicle is in Auto or Takeoff without
// a usable fence. Every other category and mode passes.
func AutoPerimeter(p vehicle.Params, f vehicle.Fence, st vehicle.State, names FenceParams, sev Severity) Descriptor {
	return Define(IDAutoFence, sev, "Fence required for auto missions",
		func() (bool, error) {
			if st.Category() != vehicle.CategoryFixedWing {
				return true, nil
			}
			switch st.Mode() {
			case vehicle.ModeAuto, vehicle.ModeTakeoff:
			default:
				return true, nil
			}
			return fencePresent(p, f, names)
		}, true)
}

// MotorStop passes while the motor emergency stop is released.
func MotorStop(m vehicle.Motors, sev Severity) Descriptor {
	return Define(IDMotorStop, sev, "Motor emergency stop engaged",
		func() (bool, error) {
			return m.EmergencyStopped(), nil
		}, false)
}

// ReturnLimit passes when param is absent or at most limit (inclusive).
// NaN fails.
func ReturnLimit(id, param string, limit float64, p vehicle.Params, sev Severity, message string) Descriptor {
	return Define(id, sev, message,
		func() (bool, error) {
			v, ok := p.Get(param)
			if !ok {
				return true, nil
			}
			return v <= limit, nil
		}, true)
}
