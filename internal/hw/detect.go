package hw

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// bf16 needs compute capability 8.0 (Ampere) or newer.
const minBF16ComputeCap = 8.0

const probeTimeout = 5 * time.Second

// Detect probes the local machine for an accelerator by querying nvidia-smi.
// Any probe failure (binary missing, driver broken, timeout) degrades to
// "no accelerator"; Detect never returns an error.
func Detect(ctx context.Context) Capabilities {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=compute_cap", "--format=csv,noheader").Output()
	if err != nil {
		return Capabilities{}
	}
	return capsFromComputeCaps(string(out))
}

// capsFromComputeCaps parses nvidia-smi compute_cap output, one value per
// GPU line (e.g. "8.6"). The first parseable line decides, matching the
// single-device load path.
func capsFromComputeCaps(out string) Capabilities {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cc, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		return Capabilities{
			AcceleratorAvailable:  true,
			LowPrecisionSupported: cc >= minBF16ComputeCap,
		}
	}
	return Capabilities{}
}
