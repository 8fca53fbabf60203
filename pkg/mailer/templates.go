package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(
		`<p>Hi {{.Name}},</p><p>Your ProfePulse confirmation code is <strong>{{.Code}}</strong>.</p>` +
			`<p>It expires in {{.TTL}}.</p>`))
	statusTmpl = template.Must(template.New("status").Parse(
		`<p>Hi {{.Name}},</p><p>{{.Body}}</p>`))
)

// Confirmation builds the registration code mail.
func Confirmation(to, name, code string, ttl time.Duration) (Message, error) {
	body, err := render(confirmationTmpl, map[string]string{"Name": name, "Code": code, "TTL": ttl.String()})
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "Confirm your ProfePulse account", HTML: body}, nil
}

// AccountStatus builds the mail sent after an administrator changes an account status.
func AccountStatus(to, name, statusMessage string) (Message, error) {
	body, err := render(statusTmpl, map[string]string{"Name": name, "Body": statusMessage})
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "Your ProfePulse account status changed", HTML: body}, nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s mail: %w", t.Name(), err)
	}
	return buf.String(), nil
}
