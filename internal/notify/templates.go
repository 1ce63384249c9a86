package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Subject}}</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background: #2c5aa0; color: #fff; padding: 20px; text-align: center; }
.content { padding: 20px; background: #f9f9f9; }
.details { background: #fff; padding: 20px; border-radius: 5px; margin: 20px 0; }
.footer { color: #666; font-size: 12px; margin-top: 20px; }
</style>
</head>
<body>
<div class="container">
<div class="header"><h1>{{.Hospital}}</h1><h2>{{.Subject}}</h2></div>
<div class="content">{{template "body" .}}</div>
<div class="footer"><p>This is an automated message from {{.Hospital}}.</p></div>
</div>
</body>
</html>{{end}}`

type templateSource struct {
	subject string
	text    string
	html    string
}

var templateSources = map[Kind]templateSource{
	KindAppointmentConfirmation: {
		subject: `Appointment received for {{.date}} at {{.time}}`,
		text: `Dear {{.name}},

Thank you for booking with {{.Hospital}}. Your appointment request has been received.

Reference: {{.appointmentId}}
Date: {{.date}}
Time: {{.time}}
Department: {{.department}}
{{if .doctor}}Doctor: {{.doctor}}
{{end}}
Please arrive 15 minutes early and bring a valid ID. To reschedule or cancel, contact us at least 24 hours in advance.`,
		html: `<p>Dear {{.name}},</p>
<p>Thank you for booking with {{.Hospital}}. Your appointment request has been received.</p>
<div class="details">
<p><strong>Reference:</strong> {{.appointmentId}}</p>
<p><strong>Date:</strong> {{.date}}</p>
<p><strong>Time:</strong> {{.time}}</p>
<p><strong>Department:</strong> {{.department}}</p>
{{if .doctor}}<p><strong>Doctor:</strong> {{.doctor}}</p>{{end}}
</div>
<p>Please arrive 15 minutes early and bring a valid ID. To reschedule or cancel, contact us at least 24 hours in advance.</p>`,
	},
	KindAppointmentAlert: {
		subject: `New appointment: {{.name}} - {{.date}} {{.time}}`,
		text: `A new appointment has been booked.

Patient: {{.name}}
Email: {{.email}}
Phone: {{.phone}}
Date: {{.date}}
Time: {{.time}}
Department: {{.department}}
Reason: {{.reason}}
Reference: {{.appointmentId}}`,
		html: `<p>A new appointment has been booked.</p>
<div class="details">
<p><strong>Patient:</strong> {{.name}}</p>
<p><strong>Email:</strong> {{.email}}</p>
<p><strong>Phone:</strong> {{.phone}}</p>
<p><strong>Date:</strong> {{.date}}</p>
<p><strong>Time:</strong> {{.time}}</p>
<p><strong>Department:</strong> {{.department}}</p>
<p><strong>Reason:</strong> {{.reason}}</p>
<p><strong>Reference:</strong> {{.appointmentId}}</p>
</div>`,
	},
	KindAppointmentStatus: {
		subject: `Your appointment on {{.date}} is {{.status}}`,
		text: `Dear {{.name}},

The status of your appointment on {{.date}} at {{.time}} is now: {{.status}}.
{{if .notes}}
Notes: {{.notes}}
{{end}}
Reference: {{.appointmentId}}`,
		html: `<p>Dear {{.name}},</p>
<p>The status of your appointment on {{.date}} at {{.time}} is now <strong>{{.status}}</strong>.</p>
{{if .notes}}<div class="details"><p>{{.notes}}</p></div>{{end}}
<p>Reference: {{.appointmentId}}</p>`,
	},
	KindContactReceipt: {
		subject: `We received your message`,
		text: `Dear {{.name}},

Thank you for contacting {{.Hospital}}. We received your message about "{{.subject}}" and will respond as soon as possible.`,
		html: `<p>Dear {{.name}},</p>
<p>Thank you for contacting {{.Hospital}}. We received your message about <strong>{{.subject}}</strong> and will respond as soon as possible.</p>`,
	},
	KindContactAlert: {
		subject: `New contact: {{.name}} - {{.subject}}`,
		text: `From: {{.name}} <{{.email}}>
Phone: {{.phone}}
Subject: {{.subject}}

{{.message}}`,
		html: `<div class="details">
<p><strong>From:</strong> {{.name}} &lt;{{.email}}&gt;</p>
<p><strong>Phone:</strong> {{.phone}}</p>
<p><strong>Subject:</strong> {{.subject}}</p>
</div>
<p>{{.message}}</p>`,
	},
	KindReviewAlert: {
		subject: `New review from {{.name}}`,
		text: `{{.name}} <{{.email}}> left a review{{if .rating}} rated {{.rating}}/5{{end}}:

{{.comment}}`,
		html: `<p><strong>{{.name}}</strong> &lt;{{.email}}&gt; left a review{{if .rating}} rated {{.rating}}/5{{end}}:</p>
<div class="details"><p>{{.comment}}</p></div>`,
	},
	KindPasswordReset: {
		subject: `Reset your password`,
		text: `Hello {{.name}},

A password reset was requested for your account. Use the link below within {{.expiresIn}}:

{{.resetURL}}

If you did not request this, you can ignore this email.`,
		html: `<p>Hello {{.name}},</p>
<p>A password reset was requested for your account. Use the link below within {{.expiresIn}}:</p>
<p><a href="{{.resetURL}}">Reset password</a></p>
<p>If you did not request this, you can ignore this email.</p>`,
	},
}

type compiledTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// Renderer turns a Message into an Email. Patient-supplied values are escaped
// in the HTML part.
type Renderer struct {
	hospital  string
	templates map[Kind]compiledTemplate
}

func NewRenderer(hospital string) (*Renderer, error) {
	r := &Renderer{hospital: hospital, templates: make(map[Kind]compiledTemplate, len(templateSources))}

	for kind, src := range templateSources {
		subject, err := texttemplate.New(string(kind) + ".subject").Option("missingkey=zero").Parse(src.subject)
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", kind, err)
		}
		text, err := texttemplate.New(string(kind) + ".text").Option("missingkey=zero").Parse(src.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s text: %w", kind, err)
		}
		html, err := htmltemplate.New(string(kind) + ".html").Option("missingkey=zero").Parse(layoutHTML)
		if err != nil {
			return nil, fmt.Errorf("parse layout: %w", err)
		}
		if _, err := html.New("body").Parse(src.html); err != nil {
			return nil, fmt.Errorf("parse %s html: %w", kind, err)
		}
		r.templates[kind] = compiledTemplate{subject: subject, text: text, html: html}
	}
	return r, nil
}

func (r *Renderer) Render(msg Message) (Email, error) {
	if strings.TrimSpace(msg.To) == "" {
		return Email{}, ErrNoRecipient
	}
	t, ok := r.templates[msg.Kind]
	if !ok {
		return Email{}, fmt.Errorf("%w: %s", ErrUnknownKind, msg.Kind)
	}

	data := make(map[string]string, len(msg.Data)+2)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["Hospital"] = r.hospital

	var subject, text, html bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Email{}, fmt.Errorf("render %s subject: %w", msg.Kind, err)
	}
	// Subjects go into a mail header.
	data["Subject"] = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject.String())

	if err := t.text.Execute(&text, data); err != nil {
		return Email{}, fmt.Errorf("render %s text: %w", msg.Kind, err)
	}
	if err := t.html.ExecuteTemplate(&html, "layout", data); err != nil {
		return Email{}, fmt.Errorf("render %s html: %w", msg.Kind, err)
	}

	return Email{
		To:      msg.To,
		Subject: data["Subject"],
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
