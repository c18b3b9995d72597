// Package notifier declares the outbound verification-dispatch contract.
// Delivery is an external collaborator: the engine hands off a code and an
// address and requires no acknowledgment.
package notifier

import (
	"context"

	"github.com/dkurenkov/credkeeper/logging"
)

// MailType selects the template used for a verification message.
type MailType string

const (
	MailVerifyEmail          MailType = "VERIFY_EMAIL"
	MailVerifyEmailChange    MailType = "VERIFY_EMAIL_CHANGE"
	MailVerifyUsernameChange MailType = "VERIFY_USERNAME_CHANGE"
	MailVerifyPhoneChange    MailType = "VERIFY_PHONE_CHANGE"
	MailVerifyPasswordChange MailType = "VERIFY_PASSWORD_CHANGE"
	MailResetPassword        MailType = "RESET_PASSWORD"
)

// Notifier dispatches a verification code to a user. Implementations talk to
// whatever delivery backend the deployment wires in (mail gateway, message
// broker). Send failures never abort the workflow that triggered them.
type Notifier interface {
	Send(ctx context.Context, verificationCode, email string, mailType MailType) error
}

// LogNotifier is the default Notifier: it records the dispatch in the log
// and delivers nothing. Useful in development and as a fallback.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "notifier")}
}

func (n *LogNotifier) Send(ctx context.Context, verificationCode, email string, mailType MailType) error {
	n.logger.Info(ctx, "verification dispatch", "mail_type", string(mailType), "email", email)
	return nil
}
