package mail

import "fmt"

// ActivationEmail renders the account-activation message carrying a one-time
// code. ttlMinutes is the code lifetime shown to the user.
func ActivationEmail(from, to, name, code string, ttlMinutes int) Email {
	return Email{
		From:    from,
		To:      to,
		Subject: "Verify your account",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour account verification code is %s.\nIt expires in %d minutes.\n\nIf you did not request this, you can ignore this email.\n",
			name, code, ttlMinutes,
		),
	}
}

// PasswordResetEmail renders the password-reset message carrying a one-time
// code.
func PasswordResetEmail(from, to, name, code string, ttlMinutes int) Email {
	return Email{
		From:    from,
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour password reset code is %s.\nIt expires in %d minutes.\n\nIf you did not request a reset, your password is still safe.\n",
			name, code, ttlMinutes,
		),
	}
}
