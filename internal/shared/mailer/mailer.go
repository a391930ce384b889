// Package mailer 邮件发送
//
// 邮箱验证和密码重置链接通过 SMTP 发送。发送失败会向调用方返回
// 错误，由认证流程决定是否回滚已写入的令牌。
package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"course-admin/internal/config"
)

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPSender 基于 net/smtp 的发送实现
type SMTPSender struct {
	cfg config.SMTPConfig
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender 创建 SMTP 发送器
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send 发送 HTML 邮件
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	msg := []byte(
		"From: " + s.cfg.From + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			htmlBody + "\r\n")

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// VerificationEmail 构造邮箱验证邮件
func VerificationEmail(frontendURL, token string) (subject, body string) {
	link := fmt.Sprintf("%s/verify-email?token=%s", frontendURL, token)
	subject = "Verify Your Email Address"
	body = fmt.Sprintf(`
		<html>
			<body>
				<h1>Email Verification</h1>
				<p>Please click the link below to verify your email address:</p>
				<p><a href="%s">%s</a></p>
				<p>If you didn't request this, you can safely ignore this email.</p>
			</body>
		</html>
	`, link, link)
	return subject, body
}

// PasswordResetEmail 构造密码重置邮件
func PasswordResetEmail(frontendURL, token string) (subject, body string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", frontendURL, token)
	subject = "Reset Your Password"
	body = fmt.Sprintf(`
		<html>
			<body>
				<h1>Password Reset</h1>
				<p>Please click the link below to reset your password:</p>
				<p><a href="%s">%s</a></p>
				<p>The link expires soon. If you didn't request this, you can safely ignore this email.</p>
			</body>
		</html>
	`, link, link)
	return subject, body
}

// PaymentApprovedEmail 构造支付审核通过通知
func PaymentApprovedEmail(courseTitle string) (subject, body string) {
	subject = "Your Course Purchase Is Confirmed"
	body = fmt.Sprintf(`
		<html>
			<body>
				<h1>Payment Approved</h1>
				<p>Your payment has been verified. You now have full access to <b>%s</b>.</p>
			</body>
		</html>
	`, courseTitle)
	return subject, body
}

// PaymentRejectedEmail 构造支付审核拒绝通知
func PaymentRejectedEmail(courseTitle, remarks string) (subject, body string) {
	subject = "Your Payment Could Not Be Verified"
	body = fmt.Sprintf(`
		<html>
			<body>
				<h1>Payment Rejected</h1>
				<p>We could not verify your payment for <b>%s</b>.</p>
				<p>Reason: %s</p>
				<p>You can submit a new payment screenshot at any time.</p>
			</body>
		</html>
	`, courseTitle, remarks)
	return subject, body
}
