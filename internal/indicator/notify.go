package indicator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ItsAbhinavM/Bob/internal/hypr"
	"github.com/godbus/dbus/v5"
)

// Level selects icon, color and urgency of a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelActive
	LevelError
)

// Notice is one indicator message.
type Notice struct {
	Level     Level
	Text      string
	TimeoutMS int
}

// Notifier is a notification surface.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
	Dismiss(ctx context.Context) error
}

// NewNotifier picks the backend named by cfg.Backend: "desktop" for
// freedesktop notifications over the session bus, anything else for Hyprland.
func NewNotifier(backend string, appName string) Notifier {
	if strings.EqualFold(strings.TrimSpace(backend), "desktop") {
		return NewDesktopNotifier(appName)
	}
	return HyprNotifier{}
}

// HyprNotifier shows notices in the Hyprland overlay.
type HyprNotifier struct{}

func (HyprNotifier) Notify(ctx context.Context, notice Notice) error {
	icon, color := hypr.IconInfo, "rgb(89b4fa)"
	switch notice.Level {
	case LevelActive:
		color = "rgb(cba6f7)"
	case LevelError:
		icon, color = hypr.IconError, "rgb(f38ba8)"
	}
	return hypr.Notify(ctx, hypr.Notification{Icon: icon, TimeoutMS: notice.TimeoutMS, Color: color, Text: notice.Text})
}

func (HyprNotifier) Dismiss(ctx context.Context) error {
	return hypr.DismissNotify(ctx)
}

const (
	notificationsName  = "org.freedesktop.Notifications"
	notificationsPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod       = notificationsName + ".Notify"
	closeNotifyMethod  = notificationsName + ".CloseNotification"
	urgencyCritical    = byte(2)
	defaultDesktopName = "bob"
)

type busCaller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DesktopNotifier keeps one replaceable freedesktop notification. The bus
// connection is opened on first use.
type DesktopNotifier struct {
	appName string
	connect func() (busCaller, error)

	mu     sync.Mutex
	obj    busCaller
	lastID uint32
}

// NewDesktopNotifier talks to the notification daemon on the session bus.
func NewDesktopNotifier(appName string) *DesktopNotifier {
	if strings.TrimSpace(appName) == "" {
		appName = defaultDesktopName
	}
	return &DesktopNotifier{
		appName: appName,
		connect: func() (busCaller, error) {
			conn, err := dbus.ConnectSessionBus()
			if err != nil {
				return nil, fmt.Errorf("connect session bus: %w", err)
			}
			return conn.Object(notificationsName, notificationsPath), nil
		},
	}
}

func (d *DesktopNotifier) Notify(ctx context.Context, notice Notice) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, err := d.objectLocked()
	if err != nil {
		return err
	}

	hints := map[string]dbus.Variant{}
	if notice.Level == LevelError {
		hints["urgency"] = dbus.MakeVariant(urgencyCritical)
	}
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		d.appName, d.lastID, "", notice.Text, "", []string{}, hints, int32(notice.TimeoutMS))
	if call.Err != nil {
		return fmt.Errorf("desktop notify failed: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("desktop notify invalid response: %w", err)
	}
	d.lastID = id
	return nil
}

// Dismiss closes the last notification if one is showing.
func (d *DesktopNotifier) Dismiss(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastID == 0 {
		return nil
	}
	obj, err := d.objectLocked()
	if err != nil {
		return err
	}
	id := d.lastID
	d.lastID = 0
	if call := obj.CallWithContext(ctx, closeNotifyMethod, 0, id); call.Err != nil {
		return fmt.Errorf("desktop dismiss failed: %w", call.Err)
	}
	return nil
}

func (d *DesktopNotifier) objectLocked() (busCaller, error) {
	if d.obj != nil {
		return d.obj, nil
	}
	obj, err := d.connect()
	if err != nil {
		return nil, err
	}
	d.obj = obj
	return obj, nil
}
