package mail

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// Template names accepted in Message.Template.
const (
	TemplateForget  = "forget"
	TemplateWelcome = "welcome"
)

// templateFunc builds the body component for a message.
type templateFunc func(data map[string]string) templ.Component

var templates = map[string]templateFunc{
	TemplateForget:  forgetBody,
	TemplateWelcome: welcomeBody,
}

// Render returns the full HTML document for msg's template.
func Render(ctx context.Context, msg Message) (string, error) {
	fn, ok := templates[msg.Template]
	if !ok {
		return "", fmt.Errorf("unknown mail template %q", msg.Template)
	}

	var sb strings.Builder
	if err := layout(msg.Subject, fn(msg.Data)).Render(ctx, &sb); err != nil {
		return "", fmt.Errorf("rendering %s: %w", msg.Template, err)
	}
	return sb.String(), nil
}

// layout wraps a body in the shared e-mail document.
func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+
			`</title></head><body style="font-family:sans-serif;line-height:1.5">`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func forgetBody(data map[string]string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		link := string(templ.URL(data["resetURL"]))
		validFor := "before it expires"
		if v := data["validFor"]; v != "" {
			validFor = "within " + v
		}
		_, err := fmt.Fprintf(w,
			`<p>Hello %s,</p>`+
				`<p>We received a request to reset your password. Use the link below %s:</p>`+
				`<p><a href="%s">Reset password</a></p>`+
				`<p>If the link does not work, submit this code on the reset page:</p>`+
				`<pre>%s</pre>`+
				`<p>If you did not ask for this, ignore this e-mail.</p>`,
			templ.EscapeString(data["name"]),
			templ.EscapeString(validFor),
			templ.EscapeString(link),
			templ.EscapeString(data["token"]),
		)
		return err
	})
}

func welcomeBody(data map[string]string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<p>Welcome, %s!</p><p>Your account has been created and you can sign in with %s.</p>`,
			templ.EscapeString(data["name"]),
			templ.EscapeString(data["email"]),
		)
		return err
	})
}

// FormatValidity renders a token lifetime for e-mail copy, using the largest
// whole unit: "30 minutes", "1 hour", "45 seconds".
func FormatValidity(d time.Duration) string {
	n, unit := int64(d/time.Second), "second"
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		n, unit = int64(d/time.Hour), "hour"
	case d >= time.Minute && d%time.Minute == 0:
		n, unit = int64(d/time.Minute), "minute"
	}
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", n, unit)
}
