package services

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// Link types carried in verification links and redirect fragments.
const (
	LinkSignup   = "signup"
	LinkRecovery = "recovery"
)

// NotificationService composes the account e-mails sent by the identity
// provider.
type NotificationService struct {
	mailer Mailer
	apiURL string
}

func NewNotificationService(mailer Mailer, apiURL string) *NotificationService {
	return &NotificationService{mailer: mailer, apiURL: strings.TrimRight(apiURL, "/")}
}

var notificationTemplate = template.Must(template.New("notification").Parse(
	`<p>{{.Intro}}</p><p><a href="{{.Link}}">{{.Action}}</a></p><p>If you did not request this, you can ignore this e-mail.</p>`,
))

type notificationData struct {
	Intro  string
	Action string
	Link   string
}

// VerifyLink is the one-time link that lands on /api/auth/verify.
func (ns *NotificationService) VerifyLink(token, kind string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("type", kind)
	return ns.apiURL + "/api/auth/verify?" + q.Encode()
}

func (ns *NotificationService) SendConfirmation(ctx context.Context, email, token string) error {
	return ns.send(ctx, email, "Confirm your e-mail", notificationData{
		Intro:  "Thanks for signing up. Confirm your e-mail address to start writing reviews.",
		Action: "Confirm e-mail",
		Link:   ns.VerifyLink(token, LinkSignup),
	})
}

func (ns *NotificationService) SendPasswordReset(ctx context.Context, email, token string) error {
	return ns.send(ctx, email, "Reset your password", notificationData{
		Intro:  "We received a request to reset your password.",
		Action: "Choose a new password",
		Link:   ns.VerifyLink(token, LinkRecovery),
	})
}

func (ns *NotificationService) send(ctx context.Context, to, subject string, data notificationData) error {
	var body strings.Builder
	if err := notificationTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("render %q: %w", subject, err)
	}
	return ns.mailer.Send(ctx, to, subject, body.String())
}
