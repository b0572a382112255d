// Package desktop mirrors feed entries as operating-system notifications.
package desktop

import (
	"github.com/gen2brain/beeep"
	"github.com/sirupsen/logrus"

	"animind/internal/events"
	"animind/internal/notification"
)

// maxMessageLen is the longest toast body, in runes.
const maxMessageLen = 240

// Notifier shows a desktop notification for every published feed entry.
type Notifier struct {
	title  string
	notify func(title, message string) error
	log    logrus.FieldLogger
}

func NewNotifier(title string, logger logrus.FieldLogger) *Notifier {
	return &Notifier{
		title:  title,
		notify: showToast,
		log:    logger.WithField("component", "desktop_notifier"),
	}
}

// Attach subscribes n to bus and returns the unsubscribe function.
func (n *Notifier) Attach(bus *events.Bus[notification.Event]) func() {
	return bus.Subscribe(n.handle)
}

func (n *Notifier) handle(e notification.Event) {
	msg := e.Entry.Text
	if r := []rune(msg); len(r) > maxMessageLen {
		msg = string(r[:maxMessageLen]) + "..."
	}
	if err := n.notify(n.title, msg); err != nil {
		n.log.WithError(err).WithField("notification_id", e.Entry.ID).Warn("Failed to show desktop notification")
	}
}

func showToast(title, message string) error {
	return beeep.Notify(title, message, "")
}
