// Package quota implements the stateless credit ledger. Remaining credits
// live entirely in a caller-held signed token; the server keeps no per-caller
// state, so every admission check is independent and needs no locking.
package quota

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/verimedia/verimedia/internal/logging"
)

// CallerClass selects the starting credit allowance. Determining which class
// a caller belongs to is the job of the authentication collaborator, not this
// package.
type CallerClass string

const (
	ClassGuest         CallerClass = "guest"
	ClassAuthenticated CallerClass = "authenticated"
)

// Default allowances per caller class. The authenticated maximum is strictly
// greater than the guest one.
const (
	DefaultGuestCredits         = 5
	DefaultAuthenticatedCredits = 25
)

// Config holds the ledger's signing key and per-class allowances.
type Config struct {
	// Secret keys the HMAC signature. Required.
	Secret []byte

	// GuestCredits and AuthenticatedCredits are the starting allowances.
	// Zero values fall back to the package defaults.
	GuestCredits         int
	AuthenticatedCredits int
}

// Admission is the outcome of one admission check. Token is the replacement
// token the caller must store; it is empty only when admission was denied.
type Admission struct {
	Admitted    bool   `json:"admitted"`
	Token       string `json:"-"`
	CreditsLeft int    `json:"credits_left"`
}

// Ledger mints, reads, and decrements signed credit tokens.
type Ledger struct {
	cfg    Config
	logger logging.Logger
}

// NewLedger validates the config and returns a ready Ledger.
func NewLedger(cfg Config, logger logging.Logger) (*Ledger, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("quota: empty signing secret")
	}
	if logger == nil {
		return nil, errors.New("quota: nil logger provided")
	}
	if cfg.GuestCredits <= 0 {
		cfg.GuestCredits = DefaultGuestCredits
	}
	if cfg.AuthenticatedCredits <= 0 {
		cfg.AuthenticatedCredits = DefaultAuthenticatedCredits
	}
	if cfg.AuthenticatedCredits <= cfg.GuestCredits {
		return nil, errors.New("quota: authenticated allowance must exceed guest allowance")
	}
	return &Ledger{
		cfg:    cfg,
		logger: logger.With(logging.Field{Key: "component", Value: "quota"}),
	}, nil
}

// StartingCredits returns the allowance for a caller class. Unknown classes
// are treated as guests.
func (l *Ledger) StartingCredits(class CallerClass) int {
	if class == ClassAuthenticated {
		return l.cfg.AuthenticatedCredits
	}
	return l.cfg.GuestCredits
}

// Mint serializes {credits} into a signed token. The random jti means equal
// inputs may produce distinct tokens; all of them verify.
func (l *Ledger) Mint(credits int) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"credits": credits,
		"jti":     uuid.NewString(),
	})
	return tok.SignedString(l.cfg.Secret)
}

// Read extracts the credit count from a token. It reports ok=false on
// signature mismatch, a non-HMAC signing method, malformed structure, or a
// missing credits claim; callers must treat that exactly like "no token".
func (l *Ledger) Read(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return l.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return 0, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	credits, ok := claims["credits"].(float64)
	if !ok {
		return 0, false
	}
	return int(credits), true
}

// Admit runs one admission check. A missing or unreadable token is a benign
// reset to the class allowance, never an error to the caller. Exhausted
// credits deny admission without minting a replacement. Otherwise the count
// is decremented and a fresh token is minted; the caller must replace its
// stored token with it.
func (l *Ledger) Admit(token string, class CallerClass) (Admission, error) {
	credits, ok := l.Read(token)
	if !ok {
		if token != "" {
			l.logger.Warn("unreadable credit token, resetting allowance",
				logging.Field{Key: "caller_class", Value: string(class)})
		}
		credits = l.StartingCredits(class)
	}

	if credits <= 0 {
		return Admission{Admitted: false, CreditsLeft: 0}, nil
	}

	credits--
	next, err := l.Mint(credits)
	if err != nil {
		return Admission{}, err
	}
	return Admission{Admitted: true, Token: next, CreditsLeft: credits}, nil
}

// Peek reports the credits a token currently holds without mutating anything;
// unreadable or missing tokens report the class allowance. Serves the quota
// surface endpoint.
func (l *Ledger) Peek(token string, class CallerClass) int {
	if credits, ok := l.Read(token); ok {
		return credits
	}
	return l.StartingCredits(class)
}
