// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// PasswordResetData fills the password reset message.
type PasswordResetData struct {
	SiteName  string
	ResetLink string
	ExpiresIn string // e.g. "1 hour"
}

var resetHTML = template.Must(template.New("reset").Parse(resetHTMLTemplate))

// BuildPasswordResetEmail renders the reset message; the caller sets To.
func BuildPasswordResetEmail(data PasswordResetData) Email {
	var text strings.Builder
	fmt.Fprintf(&text, "Someone asked to reset the password for your %s account.\n\n", data.SiteName)
	text.WriteString("Open this link to choose a new password:\n")
	text.WriteString(data.ResetLink + "\n\n")
	fmt.Fprintf(&text, "The link expires in %s and works once.\n\n", data.ExpiresIn)
	text.WriteString("If you did not ask for this, you can ignore this email.\n")

	var html bytes.Buffer
	_ = resetHTML.Execute(&html, data)

	return Email{
		Subject:  fmt.Sprintf("Reset your %s password", data.SiteName),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}
}

const resetHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Reset your password</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #1f2937;">Reset your {{.SiteName}} password</h2>
  <p>Someone asked to reset the password for your account. Use the button below to choose a new one.</p>
  <p style="margin: 24px 0;">
    <a href="{{.ResetLink}}" style="display: inline-block; background: #4f46e5; color: #fff; text-decoration: none; padding: 10px 20px; border-radius: 6px;">Choose a new password</a>
  </p>
  <p style="color: #6b7280; font-size: 14px;">The link expires in {{.ExpiresIn}} and works once.</p>
  <p style="color: #6b7280; font-size: 14px;">If you did not ask for this, you can ignore this email.</p>
</body>
</html>`
