package services

import (
	"marketplace/internal/utils"
)

// NotificationSender is the outbound mail collaborator. Deliveries are
// best-effort: callers log failures and move on.
type NotificationSender interface {
	NotifyUser(email, subject, body string) error
	NotifyAdmins(subject, body string) error
}

// LogNotifier is the default sender used until a mail provider is wired in.
// It only writes log lines, which keeps the archival and distribution flows
// testable without SMTP.
type LogNotifier struct {
	RequestID string
}

func (n LogNotifier) NotifyUser(email, subject, body string) error {
	utils.LogEvent(n.RequestID, "notify", "user", "to="+email+" subject="+subject)
	return nil
}

func (n LogNotifier) NotifyAdmins(subject, body string) error {
	utils.LogEvent(n.RequestID, "notify", "admins", "subject="+subject)
	return nil
}
