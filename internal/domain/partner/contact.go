package partner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/domain/shared/valueobject"
)

// Status is shared by all partner aggregates
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Contact holds the phone and email of a partner
type Contact struct {
	ContactName string `gorm:"type:varchar(100)"`
	Phone       string `gorm:"type:varchar(20)"`
	Email       string `gorm:"type:varchar(200)"`
}

// NewContact normalizes and validates contact data; all fields are optional
func NewContact(name, phone, email string) (Contact, error) {
	name = valueobject.SanitizeText(name)
	phone = valueobject.OnlyDigits(phone)
	email = strings.ToLower(strings.TrimSpace(email))
	if len(name) > 100 {
		return Contact{}, shared.NewDomainError("INVALID_CONTACT", "Contact name cannot exceed 100 characters")
	}
	if len(phone) > 20 {
		return Contact{}, shared.NewDomainError("INVALID_PHONE", "Phone cannot exceed 20 digits")
	}
	if email != "" && !emailPattern.MatchString(email) {
		return Contact{}, shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}
	return Contact{ContactName: name, Phone: phone, Email: email}, nil
}

func validateName(name string, max int) (string, error) {
	name = valueobject.SanitizeText(name)
	if len(name) < 2 || len(name) > max {
		return "", shared.NewDomainError("INVALID_NAME", fmt.Sprintf("Name must have between 2 and %d characters", max))
	}
	return name, nil
}
