package systemd

import (
	"fmt"
	"net"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// MetricsSocketName is the FileDescriptorName= of the metrics socket in
// screencheck.socket.
const MetricsSocketName = "metrics"

// MetricsListener returns the socket-activated metrics listener, or nil when
// the process was not started with one.
func MetricsListener() (net.Listener, error) {
	// Check if systemd socket activation is available
	fds := activation.Files(false) // false = don't unset env vars
	if len(fds) == 0 {
		return nil, nil
	}

	// Try to get listeners by name (requires systemd 227+)
	listenersMap, err := activation.ListenersWithNames()
	if err != nil {
		return nil, fmt.Errorf("failed to get systemd listeners: %w", err)
	}

	if lns, ok := listenersMap[MetricsSocketName]; ok && len(lns) > 0 {
		return lns[0], nil
	}
	return nil, nil
}

// NotifyReady sends READY=1 notification to systemd
// This tells systemd that the service has finished starting up
func NotifyReady() error {
	return notify(daemon.SdNotifyReady)
}

// NotifyStopping sends STOPPING=1 notification to systemd
// This tells systemd that the service is shutting down
func NotifyStopping() error {
	return notify(daemon.SdNotifyStopping)
}

// NotifyReloading sends RELOADING=1 notification to systemd
func NotifyReloading() error {
	return notify(daemon.SdNotifyReloading)
}

// NotifyWatchdog sends WATCHDOG=1 notification to systemd
// This should be called periodically to prevent watchdog timeout
func NotifyWatchdog() error {
	return notify(daemon.SdNotifyWatchdog)
}

// NotifyStatus sets the free-form STATUS= line shown by systemctl status.
func NotifyStatus(status string) error {
	return notify("STATUS=" + status)
}

// WatchdogInterval returns the configured watchdog timeout, or zero when the
// watchdog is not enabled for this process.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}

func notify(state string) error {
	// sent is false when not running under systemd; that is not an error
	_, err := daemon.SdNotify(false, state)
	if err != nil {
		return fmt.Errorf("failed to send sd_notify %q: %w", state, err)
	}
	return nil
}
