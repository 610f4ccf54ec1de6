package agg

import (
	"strings"

	"github.com/huangsam/perfscope/core/algo"
)

// CPUSignals are the correlated measurements used to estimate CPU load.
// A zero value means the signal was not recorded.
type CPUSignals struct {
	Fps        float64
	MemoryMB   float64
	LoadTimeMs float64
	DeviceType string
	Platform   string
}

// Inference weights.
const (
	cpuWeightFps    = 0.4
	cpuWeightMemory = 0.3
	cpuWeightLoad   = 0.2
	cpuWeightDevice = 0.1
)

// InferCPU estimates CPU utilization (percent) from fps, memory and load time.
//
// This is an approximation, not a measurement. It blends the fps deficit against
// 60 fps, a memory pressure bucket, a load-time bucket and a device multiplier,
// then clamps the result to [DeviceMinimumCPU, 100]. Only use it when a session has
// no cpu_usage samples.
func InferCPU(sig CPUSignals) float64 {
	var fpsDeficit float64
	if sig.Fps > 0 {
		fpsDeficit = algo.Clamp(1-sig.Fps/algo.TargetFps, 0, 1)
	}
	composite := cpuWeightFps*fpsDeficit +
		cpuWeightMemory*memoryPressure(sig.MemoryMB) +
		cpuWeightLoad*loadPressure(sig.LoadTimeMs) +
		cpuWeightDevice*DeviceMultiplier(sig.DeviceType)
	return algo.Clamp(composite*100, DeviceMinimumCPU(sig.DeviceType, sig.Platform), 100)
}

func memoryPressure(mb float64) float64 {
	switch {
	case mb > 600:
		return 0.8
	case mb > 400:
		return 0.6
	case mb > 200:
		return 0.4
	case mb > 100:
		return 0.2
	default:
		return 0
	}
}

func loadPressure(ms float64) float64 {
	switch {
	case ms > 3000:
		return 0.7
	case ms > 2000:
		return 0.5
	case ms > 1000:
		return 0.3
	case ms > 500:
		return 0.1
	default:
		return 0
	}
}

// DeviceMultiplier scales the estimate for the device class.
func DeviceMultiplier(deviceType string) float64 {
	switch {
	case isSimulator(deviceType):
		return 1.2
	case isAppleHandset(deviceType):
		return 0.8
	default:
		return 1.0
	}
}

// DeviceMinimumCPU is the floor an estimate never drops below for the platform.
func DeviceMinimumCPU(deviceType, platform string) float64 {
	switch {
	case isSimulator(deviceType):
		return 15
	case isIOS(deviceType, platform):
		return 5
	case isAndroid(deviceType, platform):
		return 8
	default:
		return 10
	}
}

func isSimulator(deviceType string) bool {
	d := strings.ToLower(deviceType)
	return strings.Contains(d, "simulator") || strings.Contains(d, "emulator")
}

func isAppleHandset(deviceType string) bool {
	d := strings.ToLower(deviceType)
	return strings.Contains(d, "iphone") || strings.Contains(d, "ipad")
}

func isIOS(deviceType, platform string) bool {
	return strings.EqualFold(platform, "ios") || isAppleHandset(deviceType)
}

func isAndroid(deviceType, platform string) bool {
	return strings.EqualFold(platform, "android") || strings.Contains(strings.ToLower(deviceType), "android")
}

// PlatformOf returns the platform, inferring it from the device type when unset.
func PlatformOf(deviceType, platform string) string {
	switch {
	case platform != "":
		return strings.ToLower(platform)
	case isIOS(deviceType, ""):
		return "ios"
	case isAndroid(deviceType, ""):
		return "android"
	default:
		return "unknown"
	}
}
