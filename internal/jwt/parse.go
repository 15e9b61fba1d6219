package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Errores de verificación, distinguibles para logs/métricas. El borde HTTP
// los colapsa todos en un 401 uniforme.
var (
	ErrSignatureInvalid = errors.New("jwt: signature invalid")
	ErrTokenExpired     = errors.New("jwt: token expired")
)

// Claims son los campos verificados de un access token.
type Claims struct {
	UserID    string
	TenantID  string // vacío para el rol privilegiado
	Role      string
	SessionID string
	TokenID   string // jti
	ExpiresAt time.Time
}

// ParseAccess valida firma (EdDSA por kid), issuer, audience y ventana
// temporal, y devuelve los claims tipados. Los claims NUNCA se aceptan de
// otra fuente que no sea un token verificado.
//
// El vencimiento es inclusivo: un token está muerto exactamente en su exp.
func (i *Issuer) ParseAccess(raw string) (Claims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("kid_missing")
		}
		pub, err := i.Keys.PublicKeyByKID(kid)
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(pub), nil
	}

	tok, err := jwtv5.Parse(raw, keyfunc,
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithAudience(Audience),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrSignatureInvalid
	}
	if !tok.Valid {
		return Claims{}, ErrSignatureInvalid
	}

	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return Claims{}, ErrSignatureInvalid
	}

	out := Claims{
		UserID:    claimString(mc, "sub"),
		TenantID:  claimString(mc, "tid"),
		Role:      claimString(mc, "role"),
		SessionID: claimString(mc, "sid"),
		TokenID:   claimString(mc, "jti"),
	}
	if expf, ok := mc["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(expf), 0).UTC()
	}

	// Borde inclusivo: la librería valida now > exp, acá matamos now == exp.
	if out.ExpiresAt.IsZero() || !time.Now().Before(out.ExpiresAt) {
		return Claims{}, ErrTokenExpired
	}
	if out.UserID == "" || out.TokenID == "" {
		return Claims{}, ErrSignatureInvalid
	}
	return out, nil
}

func claimString(mc jwtv5.MapClaims, key string) string {
	if v, ok := mc[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
