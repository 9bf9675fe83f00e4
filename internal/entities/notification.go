package entities

// Notification template names understood by the sender.
const (
	TemplateBookingConfirmed = "booking_confirmed"
	TemplateBookingCancelled = "booking_cancelled"
	TemplateWaitlistOffer    = "waitlist_offer"
)

// Notification is the payload handed to the notification sink: who to
// reach, which template to render, and the template context. The core
// never renders or delivers messages itself.
type Notification struct {
	Recipient     string
	RecipientName string
	Phone         string
	Template      string
	Data          map[string]string
}
