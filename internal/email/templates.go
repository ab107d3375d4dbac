package email

import (
	"fmt"
	"html"
)

const footerHTML = `<p><i>This is a system generated email. Please do not respond to this.</i></p>`

// BuildMessage returns the HTML body for an event notification. isDue selects
// the "happening today" variant; otherwise the reminder variant quotes leadDays.
func BuildMessage(label string, isDue bool, leadDays int) string {
	name := html.EscapeString(label)
	if isDue {
		return fmt.Sprintf(`<p>Hello,</p>

<p>The scheduled screening %s is happening today.</p>

%s
`, name, footerHTML)
	}
	return fmt.Sprintf(`<p>Hello,</p>

<p>This is a reminder that the scheduled screening %s is %d days away.</p>

%s
`, name, leadDays, footerHTML)
}

// BuildText returns the plain-text counterpart of BuildMessage.
func BuildText(label string, isDue bool, leadDays int) string {
	if isDue {
		return fmt.Sprintf("Hello,\n\nThe scheduled screening %s is happening today.\n\n"+
			"This is a system generated email. Please do not respond to this.\n", label)
	}
	return fmt.Sprintf("Hello,\n\nThis is a reminder that the scheduled screening %s is %d days away.\n\n"+
		"This is a system generated email. Please do not respond to this.\n", label, leadDays)
}

// DueSubject is the subject of a due-today notification
func DueSubject(label string) string {
	return fmt.Sprintf("%s SCREENING IS TODAY", label)
}

// ReminderSubject is the subject of a reminder notification
func ReminderSubject(label string, leadDays int) string {
	return fmt.Sprintf("%s SCREENING IS %d DAYS AWAY", label, leadDays)
}
