// Package notify raises desktop notifications for detector events.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"
	"github.com/rpggio/studytrack/internal/domain/session"
)

// SendFunc delivers one notification.
type SendFunc func(title, message string) error

// Desktop implements session.Observer with beeep.
type Desktop struct {
	send   SendFunc
	logger *slog.Logger
}

// NewDesktop returns an observer that posts to the desktop notification
// service under appName.
func NewDesktop(appName string, logger *slog.Logger) *Desktop {
	if appName != "" {
		beeep.AppName = appName
	}
	return NewWithSender(func(title, message string) error {
		return beeep.Notify(title, message, "")
	}, logger)
}

// NewWithSender returns an observer using send.
func NewWithSender(send SendFunc, logger *slog.Logger) *Desktop {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Desktop{send: send, logger: logger}
}

func (d *Desktop) OnAutoBreak(sess *session.Session) {
	d.post(sess, "Break started", "No activity for a while, the session is paused.")
}

func (d *Desktop) OnAutoEnd(sess *session.Session) {
	minutes := 0
	if sess != nil && sess.EndTime != nil {
		minutes = session.DurationMinutes(sess, *sess.EndTime)
	}
	d.post(sess, "Session ended", fmt.Sprintf("Study session ended after %d minutes of tracking.", minutes))
}

func (d *Desktop) post(sess *session.Session, title, message string) {
	if err := d.send(title, message); err != nil {
		id := ""
		if sess != nil {
			id = sess.ID
		}
		d.logger.Warn("notification failed", "session_id", id, "error", err)
	}
}
