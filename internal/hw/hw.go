package hw

// Precision is the numeric format used to load model weights.
type Precision string

const (
	PrecisionBF16 Precision = "bf16"
	PrecisionF16  Precision = "f16"
	PrecisionF32  Precision = "f32"
)

// Device is the compute device weights are placed on.
type Device string

const (
	DeviceCUDA Device = "cuda"
	DeviceCPU  Device = "cpu"
)

// Capabilities are the hardware flags probed once at startup.
type Capabilities struct {
	// AcceleratorAvailable reports a usable CUDA device.
	AcceleratorAvailable bool
	// LowPrecisionSupported reports hardware bf16 support on that device.
	LowPrecisionSupported bool
}

// Plan is the precision/device pair used to load the model. Immutable once
// computed.
type Plan struct {
	Precision Precision
	Device    Device
}

// Select maps capabilities to a load plan. Priority: bf16 on CUDA, then f16
// on CUDA, then f32 on CPU. The table is closed: new tiers must be appended
// without changing the outcome of existing branches.
func Select(caps Capabilities) Plan {
	if caps.AcceleratorAvailable && caps.LowPrecisionSupported {
		return Plan{Precision: PrecisionBF16, Device: DeviceCUDA}
	}
	if caps.AcceleratorAvailable {
		return Plan{Precision: PrecisionF16, Device: DeviceCUDA}
	}
	return Plan{Precision: PrecisionF32, Device: DeviceCPU}
}
