package service

import "studiobook/internal/entities"

// Notifier is the boundary to the external notification service: the
// core hands over recipient, template name and payload and never
// renders or delivers messages itself.
type Notifier interface {
	Notify(n entities.Notification)
}
