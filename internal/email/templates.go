package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"
)

const layoutHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Heading}}</h1>
        <p>Hi {{.Name}},</p>
        <p>{{.Intro}}</p>
        <p><a href="{{.Link}}" class="button">{{.Action}}</a></p>
        <p>Or copy and paste this link in your browser:<br><code>{{.Link}}</code></p>
        <p>This link expires in {{.Expires}}.</p>
        <p>{{.Ignore}}</p>
        <div class="footer">
            <p>This is an automated message from {{.App}}. Please do not reply.</p>
        </div>
    </div>
</body>
</html>
`

const layoutText = `{{.Heading}}

Hi {{.Name}},

{{.Intro}}

{{.Link}}

This link expires in {{.Expires}}.

{{.Ignore}}
`

var (
	htmlLayout = htmltemplate.Must(htmltemplate.New("html").Parse(layoutHTML))
	textLayout = texttemplate.Must(texttemplate.New("text").Parse(layoutText))
)

type templateData struct {
	App     string
	Heading string
	Name    string
	Intro   string
	Action  string
	Link    string
	Expires string
	Ignore  string
}

// Composer renders the account emails with links into the web app
type Composer struct {
	baseURL string
	appName string
}

func NewComposer(baseURL, appName string) *Composer {
	if appName == "" {
		appName = "ProjectGrid"
	}
	return &Composer{baseURL: strings.TrimRight(baseURL, "/"), appName: appName}
}

// VerificationEmail links to {base}/verify-email?token=...
func (c *Composer) VerificationEmail(to, name, token string, ttl time.Duration) (Message, error) {
	return c.render(to, "Verify your email", templateData{
		Heading: "Verify your email address",
		Name:    name,
		Intro:   "Thanks for signing up. Confirm your email address to activate your account.",
		Action:  "Verify email",
		Link:    c.link("/verify-email", token),
		Expires: humanDuration(ttl),
		Ignore:  "If you didn't create an account, you can ignore this email.",
	})
}

// PasswordResetEmail links to {base}/reset-password?token=...
func (c *Composer) PasswordResetEmail(to, name, token string, ttl time.Duration) (Message, error) {
	return c.render(to, "Reset your password", templateData{
		Heading: "Reset your password",
		Name:    name,
		Intro:   "We received a request to reset your password. Use the link below to choose a new one.",
		Action:  "Reset password",
		Link:    c.link("/reset-password", token),
		Expires: humanDuration(ttl),
		Ignore:  "If you didn't request a reset, you can ignore this email. Your password will not change.",
	})
}

func (c *Composer) link(path, token string) string {
	return c.baseURL + path + "?token=" + url.QueryEscape(token)
}

func (c *Composer) render(to, subject string, data templateData) (Message, error) {
	data.App = c.appName

	var html, text bytes.Buffer
	if err := htmlLayout.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html email: %w", err)
	}
	if err := textLayout.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text email: %w", err)
	}

	return Message{
		To:       to,
		Subject:  subject,
		HTMLBody: html.String(),
		TextBody: text.String(),
	}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
