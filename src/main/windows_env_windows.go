//go:build windows

package main

import (
	"syscall"

	"github.com/rs/zerolog/log"
)

// enableDPIAwareness makes capture coordinates physical pixels on scaled
// displays, so window bounds and screenshots line up.
func enableDPIAwareness() {
	logger := log.With().Str("component", "dpi").Logger()

	shcore := syscall.NewLazyDLL("Shcore.dll")
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		if ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware)); ret != 0 {
			logger.Debug().Uint64("code", uint64(ret)).Msg("per-monitor DPI awareness not set")
		}
		return
	}

	user32 := syscall.NewLazyDLL("user32.dll")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		logger.Debug().Msg("no DPI awareness API available")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret == 0 {
		logger.Debug().Msg("system DPI awareness not set")
	}
}
