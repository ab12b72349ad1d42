package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrInvalidEmail = errors.New("a valid email is required")
	ErrWeakPassword = errors.New("password is too short")
	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidDosha = errors.New("invalid dosha")
	ErrInvalidDOB   = errors.New("dob must be YYYY-MM-DD")
)

// Doshas lists the canonical constitution names.
var Doshas = []string{"Vata", "Pitta", "Kapha"}

// Account is a portal login. Patients also carry their Ayurvedic profile.
type Account struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Email            string    `db:"email" json:"email"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	Role             string    `db:"role" json:"role"`
	Name             string    `db:"name" json:"name"`
	DOB              string    `db:"dob" json:"dob,omitempty"`
	Dosha            string    `db:"dosha" json:"dosha,omitempty"`
	Allergy          string    `db:"allergy" json:"allergy,omitempty"`
	ProfileCompleted bool      `db:"profile_completed" json:"profile_completed"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileRequest struct {
	Name    string `json:"name"`
	DOB     string `json:"dob"`
	Dosha   string `json:"dosha"`
	Allergy string `json:"allergy"`
}

// NormalizeEmail trims and lower-cases an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CanonicalDosha maps any casing of a dosha name to its canonical form.
func CanonicalDosha(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, d := range Doshas {
		if strings.EqualFold(d, s) {
			return d, true
		}
	}
	return "", false
}
