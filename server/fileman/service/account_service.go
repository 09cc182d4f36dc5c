package service

import (
	"context"
	"net/mail"
	"net/url"
	"strings"

	"filevault/server/fileman/domain"
)

const avatarBaseURL = "https://avatar.iran.liara.run/username"

// CreateAccount registers fullName/email, or returns the existing user for
// an email that is already known.
func (s *FileService) CreateAccount(ctx context.Context, fullName, email string) (domain.User, error) {
	fullName = strings.Join(strings.Fields(fullName), " ")
	if fullName == "" {
		return domain.User{}, domain.NewValidationError("fullName", "must not be empty")
	}
	email = domain.NormalizeEmail(email)
	if !isBareAddress(email) {
		return domain.User{}, domain.NewValidationError("email", "must be a valid email address")
	}
	return s.users.CreateIfAbsent(ctx, domain.User{
		Email:     email,
		FullName:  fullName,
		AvatarURL: avatarURL(fullName),
	})
}

func (s *FileService) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
}

// avatarURL uses the first and last word of the name.
func avatarURL(fullName string) string {
	parts := strings.Fields(fullName)
	username := parts[0]
	if len(parts) > 1 {
		username += " " + parts[len(parts)-1]
	}
	return avatarBaseURL + "?" + url.Values{"username": {username}}.Encode()
}

// isBareAddress rejects anything mail.ParseAddress would accept beyond a
// plain local@domain, such as display names or angle brackets.
func isBareAddress(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
