package notifications

import (
	"bytes"
	"html/template"
)

const (
	SubjectConfirmation = "Email Verification. (valid for 1 hour.)"
	SubjectReset        = "Password Reset Token. (valid for only 10 minutes.)"
)

func SubjectWelcome(company string) string {
	return "Welcome To " + company
}

type LinkData struct {
	FirstName string
	Company   string
	Link      string
}

var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html><body>
<p>Hi {{.FirstName}},</p>
<p>Thanks for signing up to {{.Company}}. Confirm your email address by opening the link below.</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>This link is valid for 1 hour. If you did not create an account you can ignore this message.</p>
</body></html>`))

	resetTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html><body>
<p>Hi {{.FirstName}},</p>
<p>A password reset was requested for your {{.Company}} account. Use the link below to choose a new password.</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>This link is valid for only 10 minutes. If you did not request a reset, your password is unchanged.</p>
</body></html>`))

	welcomeTmpl = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html><body>
<p>Hi {{.FirstName}},</p>
<p>Your email is confirmed. Welcome to {{.Company}}!</p>
</body></html>`))
)

func ConfirmationEmail(d LinkData) (string, error) { return render(confirmationTmpl, d) }
func ResetEmail(d LinkData) (string, error)        { return render(resetTmpl, d) }
func WelcomeEmail(d LinkData) (string, error)      { return render(welcomeTmpl, d) }

func render(t *template.Template, d LinkData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}
