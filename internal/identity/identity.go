// Package identity turns the caller identity received by a transport into the
// authorization key (the agent CIF) that scopes every invoice query.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/you/agentdesk/internal/query"
	"github.com/you/agentdesk/internal/store"
)

// ErrAccessDenied is returned when an identity has no authorization key.
var ErrAccessDenied = errors.New("acceso denegado")

// Mode selects how callers are authorized.
type Mode string

const (
	// ModeTrusted uses a key supplied by trusted process configuration.
	ModeTrusted Mode = "trusted"
	// ModeDelegated resolves every caller email through the gatekeeper table.
	ModeDelegated Mode = "delegated"
)

// DeniedError carries the identity that was refused.
type DeniedError struct {
	Identity string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("ACCESO DENEGADO: El email %s no está autorizado.", e.Identity)
}

func (e *DeniedError) Is(target error) bool { return target == ErrAccessDenied }

// Caller is what a transport knows about who is asking. Key is only set when
// the transport received an explicit authorization key.
type Caller struct {
	Email string
	Key   string
}

// Authorizer yields the authorization key for a caller.
type Authorizer interface {
	Authorize(ctx context.Context, c Caller) (string, error)
	Mode() Mode
}

// Normalize trims and lower-cases an email.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Trusted answers with the caller's explicit key, falling back to the
// configured one. Emails are ignored.
type Trusted struct {
	Key string
}

func (t Trusted) Mode() Mode { return ModeTrusted }

func (t Trusted) Authorize(_ context.Context, c Caller) (string, error) {
	if k := strings.TrimSpace(c.Key); k != "" {
		return k, nil
	}
	if t.Key == "" {
		return "", ErrAccessDenied
	}
	return t.Key, nil
}

// Delegated looks every email up in contacto_agentes. Explicit keys are not
// trusted and nothing is cached.
type Delegated struct {
	Source store.RowSource
}

func (d Delegated) Mode() Mode { return ModeDelegated }

// Authorize runs exactly one lookup per call.
func (d Delegated) Authorize(ctx context.Context, c Caller) (string, error) {
	id := Normalize(c.Email)
	if id == "" {
		return "", &DeniedError{Identity: "(vacío)"}
	}
	rs, err := d.Source.Query(ctx, query.ResolveIdentity(id))
	if err != nil {
		return "", err
	}
	if rs.Len() == 0 {
		log.Warn().Str("identity", id).Msg("access denied")
		return "", &DeniedError{Identity: id}
	}
	key := rs.Row(0).String("cif")
	if key == "" {
		return "", &DeniedError{Identity: id}
	}
	return key, nil
}

// New picks the authorizer for mode.
func New(mode Mode, trustedKey string, src store.RowSource) (Authorizer, error) {
	switch mode {
	case ModeTrusted:
		return Trusted{Key: trustedKey}, nil
	case ModeDelegated:
		return Delegated{Source: src}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}
