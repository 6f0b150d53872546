package systemd

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestGetListenersWithoutActivation(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	l, err := GetListeners()
	if err != nil {
		t.Fatalf("GetListeners: %v", err)
	}
	if l.Activated || l.HTTP != nil || l.Metrics != nil {
		t.Errorf("expected no activated listeners, got %+v", l)
	}
}

func TestNotifyWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	if IsSystemdService() {
		t.Error("expected not to be a systemd service")
	}
	for _, fn := range []func() error{NotifyReady, NotifyStopping, NotifyReloading} {
		if err := fn(); err != nil {
			t.Errorf("notify without socket returned error: %v", err)
		}
	}

	t.Setenv("WATCHDOG_USEC", "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	RunWatchdog(ctx, zerolog.Nop())
}
