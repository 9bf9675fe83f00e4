package service

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"studiobook/internal/entities"
)

// SenderService implements the notification sink over SendGrid email
// and optional Twilio SMS. Delivery is asynchronous and best-effort;
// failures are logged, never surfaced to the booking path.
type SenderService struct {
	TemplateDir string
}

func NewSenderService() *SenderService {
	return &SenderService{TemplateDir: filepath.Join("internal", "templates")}
}

func (s *SenderService) Notify(n entities.Notification) {
	subject, plainBody := renderPlain(n)
	htmlBody := s.renderHTML(n)

	go func() {
		if err := SendEmailWithSendGrid(n.Recipient, n.RecipientName, subject, plainBody, htmlBody); err != nil {
			log.Printf("Notification email (%s) to %s failed: %v", n.Template, n.Recipient, err)
		}
	}()

	if n.Phone != "" {
		if err := SendSMS(n.Phone, plainBody); err != nil {
			log.Printf("Notification SMS (%s) to %s failed: %v", n.Template, n.Phone, err)
		}
	}
}

func renderPlain(n entities.Notification) (subject, body string) {
	switch n.Template {
	case entities.TemplateBookingConfirmed:
		subject = fmt.Sprintf("Your booking %s is confirmed", n.Data["BookingCode"])
		body = fmt.Sprintf(
			"Hello %s,\n\nYour booking of %s is confirmed.\n\n"+
				"Booking ID: %s\nFrom: %s\nTo: %s\n\n"+
				"See you there.",
			n.RecipientName, n.Data["ResourceName"], n.Data["BookingCode"], n.Data["StartTime"], n.Data["EndTime"],
		)
	case entities.TemplateBookingCancelled:
		subject = fmt.Sprintf("Your booking %s has been cancelled", n.Data["BookingCode"])
		body = fmt.Sprintf(
			"Hello %s,\n\nYour booking of %s from %s to %s has been cancelled.",
			n.RecipientName, n.Data["ResourceName"], n.Data["StartTime"], n.Data["EndTime"],
		)
		if reason := n.Data["Reason"]; reason != "" {
			body += "\nReason: " + reason
		}
	case entities.TemplateWaitlistOffer:
		subject = "A slot opened up for you"
		body = fmt.Sprintf(
			"Hello %s,\n\nA slot you were waiting for has opened up:\n"+
				"From: %s\nTo: %s\n\n"+
				"This offer expires at %s. Use code %s to claim it.",
			n.RecipientName, n.Data["SlotStart"], n.Data["SlotEnd"], n.Data["ExpiresAt"], n.Data["EntryCode"],
		)
	default:
		subject = "Notification"
		body = fmt.Sprintf("Hello %s,\n\nYou have a new notification.", n.RecipientName)
	}
	return subject, body
}

func (s *SenderService) renderHTML(n entities.Notification) string {
	tmplPath := filepath.Join(s.TemplateDir, n.Template+".html")
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		log.Printf("Error parsing notification template %s: %v", tmplPath, err)
		return ""
	}

	data := map[string]string{"RecipientName": n.RecipientName}
	for k, v := range n.Data {
		data[k] = v
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Printf("Error executing notification template %s: %v", tmplPath, err)
		return ""
	}
	return buf.String()
}

func SendEmailWithSendGrid(toEmailAddress, toName, subject, plainTextContent, htmlContent string) error {
	sendgridAPIKey := os.Getenv("SENDGRID_API_KEY")
	if sendgridAPIKey == "" {
		log.Println("WARNING: SENDGRID_API_KEY is not set. Email will not be sent.")
		return fmt.Errorf("SENDGRID_API_KEY is not set")
	}

	fromEmail := os.Getenv("SENDGRID_FROM_EMAIL")
	if fromEmail == "" {
		log.Println("WARNING: SENDGRID_FROM_EMAIL is not set. Email will not be sent.")
		return fmt.Errorf("SENDGRID_FROM_EMAIL is not set")
	}

	fromName := os.Getenv("SENDGRID_FROM_NAME")
	if fromName == "" {
		fromName = "Studiobook"
	}

	from := mail.NewEmail(fromName, fromEmail)
	to := mail.NewEmail(toName, toEmailAddress)
	if htmlContent == "" {
		htmlContent = "<pre>" + template.HTMLEscapeString(plainTextContent) + "</pre>"
	}

	message := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)

	client := sendgrid.NewSendClient(sendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sending email through SendGrid failed: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		log.Printf("Email sent to %s (subject: %s). Status: %d", toEmailAddress, subject, response.StatusCode)
		return nil
	}

	log.Printf("Error sending email to %s. Status: %d, body: %s", toEmailAddress, response.StatusCode, response.Body)
	return fmt.Errorf("SendGrid returned non-success status %d: %s", response.StatusCode, response.Body)
}

func SendSMS(toNumber, messageBody string) error {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	fromNumber := os.Getenv("TWILIO_FROM_NUMBER")

	if accountSid == "" || authToken == "" || fromNumber == "" {
		log.Println("WARNING: Twilio credentials are not fully configured. SMS will not be sent.")
		return fmt.Errorf("twilio credentials not fully configured")
	}

	if !strings.HasPrefix(toNumber, "+") {
		log.Printf("WARNING: destination number '%s' is not E.164 (must start with '+'). The SMS may fail.", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSid,
		Password:   authToken,
		AccountSid: accountSid,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(fromNumber)
	params.SetBody(messageBody)

	resp, err := client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("sending SMS failed: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		log.Printf("SMS sent to %s. Message SID: %s", toNumber, *resp.Sid)
	}
	return nil
}
