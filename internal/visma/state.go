package visma

import (
	"time"

	"github.com/genin-labs/genin-api/internal/session"
	"github.com/google/uuid"
)

// stateTTL limita la duración del flujo de autorización
const stateTTL = 10 * time.Minute

// StatePayload es el contenido firmado del parámetro state
type StatePayload struct {
	Nonce        string `json:"nonce"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// StateCodec emite y verifica el state OAuth
type StateCodec struct {
	sealer *session.Sealer[StatePayload]
}

// NewStateCodec crea el codec con el secreto de sesión
func NewStateCodec(secret string) *StateCodec {
	return &StateCodec{sealer: session.NewSealer[StatePayload](secret, session.AudienceOAuthState, stateTTL)}
}

// Issue genera un state con nonce aleatorio y las credenciales opcionales
func (c *StateCodec) Issue(creds Credentials) (string, error) {
	return c.sealer.Issue(StatePayload{
		Nonce:        uuid.NewString(),
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
	})
}

// ResolveCredentials retorna las credenciales del state solo si la firma es válida
// y trae ambas; en cualquier otro caso retorna fallback.
func (c *StateCodec) ResolveCredentials(state string, fallback Credentials) (Credentials, bool) {
	payload, err := c.sealer.Verify(state)
	if err != nil {
		return fallback, false
	}
	creds := Credentials{ClientID: payload.ClientID, ClientSecret: payload.ClientSecret}
	if !creds.Valid() {
		return fallback, true
	}
	return creds, true
}
