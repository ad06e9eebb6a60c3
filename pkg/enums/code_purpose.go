package enums

// CodePurpose distinguishes what a verification code unlocks.
type CodePurpose string

const (
	CodePurposeLogin         CodePurpose = "login"
	CodePurposePasswordReset CodePurpose = "password_reset"
)

func (p CodePurpose) IsValid() bool {
	return p == CodePurposeLogin || p == CodePurposePasswordReset
}
