package services

import (
	"bytes"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"pulse-reports/internal/config"
	"pulse-reports/internal/models"
	"pulse-reports/internal/utils"
)

// EmailService handles email sending via SendGrid
type EmailService struct {
	apiKey    string
	fromEmail string
	client    *sendgrid.Client
}

// NewEmailService creates a new email service
func NewEmailService(cfg config.EmailConfig) *EmailService {
	client := sendgrid.NewSendClient(cfg.APIKey)
	return &EmailService{
		apiKey:    cfg.APIKey,
		fromEmail: cfg.FromEmail,
		client:    client,
	}
}

// SendReportEmail sends a completed report to the given address
func (s *EmailService) SendReportEmail(toEmail string, report *models.Report) error {
	from := mail.NewEmail("Pulse Reports", s.fromEmail)
	to := mail.NewEmail("", toEmail)
	subject := fmt.Sprintf("Your %s report is ready - %s", report.Type, report.Title)

	htmlContent := s.buildReportEmailHTML(report)
	plainTextContent := s.buildReportEmailText(report)

	message := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)

	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}

	return nil
}

// buildReportEmailHTML builds the HTML content for a report email
func (s *EmailService) buildReportEmailHTML(report *models.Report) string {
	var html bytes.Buffer

	html.WriteString(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #0066cc; color: white; padding: 20px; border-radius: 8px 8px 0 0; }
        .content { background-color: #f8f9fa; padding: 20px; border-radius: 0 0 8px 8px; }
        .summary-box { background-color: white; padding: 15px; border-radius: 5px; margin: 15px 0; border-left: 4px solid #0066cc; }
        .section { background-color: white; padding: 15px; border-radius: 5px; margin: 15px 0; }
        .footer { text-align: center; color: #666; font-size: 12px; margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="header">
        <h1 style="margin: 0;">` + report.Title + `</h1>
        <p style="margin: 5px 0 0 0; opacity: 0.9;">` + utils.FormatDate(report.TimeRange.Start) + ` to ` + utils.FormatDate(report.TimeRange.End) + `</p>
    </div>
    <div class="content">
        <p>Hello,</p>`)

	if report.Summary != "" {
		html.WriteString(`
        <div class="summary-box">
            <h3 style="margin-top: 0; color: #0066cc;">Summary</h3>
            <p>` + report.Summary + `</p>
        </div>`)
	}

	for _, section := range report.Sections {
		html.WriteString(`
        <div class="section">
            <h3 style="margin-top: 0;">` + section.Title + `</h3>
            <p>` + section.Content + `</p>
        </div>`)
	}

	html.WriteString(`
        <p>Best regards,<br>Pulse Reports</p>
    </div>
    <div class="footer">
        <p>This is an automated email. Please do not reply.</p>
    </div>
</body>
</html>`)

	return html.String()
}

// buildReportEmailText builds the plain text content for a report email
func (s *EmailService) buildReportEmailText(report *models.Report) string {
	var text bytes.Buffer

	text.WriteString(fmt.Sprintf(`%s
%s to %s

Hello,

`, report.Title, utils.FormatDate(report.TimeRange.Start), utils.FormatDate(report.TimeRange.End)))

	if report.Summary != "" {
		text.WriteString(fmt.Sprintf(`Summary:
%s

`, report.Summary))
	}

	for _, section := range report.Sections {
		text.WriteString(fmt.Sprintf(`%s
%s

`, section.Title, section.Content))
	}

	text.WriteString(`Best regards,
Pulse Reports

---
This is an automated email. Please do not reply.`)

	return text.String()
}
