package config

import (
	"strings"
	"time"
)

const (
	DeviceClassLow      = "low"
	DeviceClassStandard = "standard"
	DeviceClassHigh     = "high"
)

func canonicalizeDeviceClass(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	switch s {
	case DeviceClassLow, DeviceClassStandard, DeviceClassHigh:
		return s
	case "":
		return DeviceClassStandard
	default:
		return s
	}
}

// ApplyDeviceClass clamps the LOD tuning to the device class. Low-end devices
// mount fewer widgets, enter dot-heavy mode earlier and sample the camera less
// often; high-end devices get a larger widget budget. Standard leaves the
// configured values alone.
func (c *Config) ApplyDeviceClass() {
	c.DeviceClass = canonicalizeDeviceClass(c.DeviceClass)
	l := &c.LOD

	switch c.DeviceClass {
	case DeviceClassLow:
		l.MaxFull = min(l.MaxFull, 12)
		l.DotHeavyMaxFull = min(l.DotHeavyMaxFull, l.MaxFull)
		l.CountEnter = min(l.CountEnter, 120)
		l.CountExit = min(l.CountExit, 100)
		l.ThrottleInterval = max(l.ThrottleInterval, 150*time.Millisecond)
		l.FrameInterval = max(l.FrameInterval, 33*time.Millisecond)
		l.TransitionDuration = min(l.TransitionDuration, 150*time.Millisecond)
	case DeviceClassHigh:
		l.MaxFull = max(l.MaxFull, 40)
		l.CountEnter = max(l.CountEnter, 260)
		l.CountExit = max(l.CountExit, 220)
	}
}
