package model

// NotificationKind distinguishes the two notifications an event can trigger
type NotificationKind string

const (
	NotificationDue      NotificationKind = "due"
	NotificationReminder NotificationKind = "reminder"
)

// Notification is a composed email for a single event, discarded once sent
type Notification struct {
	Kind     NotificationKind
	Event    Event
	Subject  string
	HTMLBody string
	TextBody string
}
