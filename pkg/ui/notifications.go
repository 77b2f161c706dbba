package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender uses notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=tcgsync", title, message).Run()
}

// MacOSNotificationSender uses osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier announces the end of long runs on the console and, where the
// platform supports it, as a desktop notification.
type Notifier struct {
	out    io.Writer
	sender NotificationSender
}

// NewNotifier picks a sender for the current platform. Desktop delivery is
// skipped when enabled is false.
func NewNotifier(out io.Writer, enabled bool) *Notifier {
	n := &Notifier{out: out}
	if !enabled {
		return n
	}
	switch runtime.GOOS {
	case "linux":
		n.sender = &LinuxNotificationSender{}
	case "darwin":
		n.sender = &MacOSNotificationSender{}
	}
	return n
}

// NewNotifierWithSender is used by tests
func NewNotifierWithSender(out io.Writer, sender NotificationSender) *Notifier {
	return &Notifier{out: out, sender: sender}
}

func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

func (n *Notifier) send(title, message string) {
	if n.sender == nil {
		return
	}
	// Notification failures never affect the run
	_ = n.sender.Send(title, message)
}
