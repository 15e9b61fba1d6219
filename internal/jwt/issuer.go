package jwt

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aulalink/aulalink/internal/authz"
)

// Audience de los access tokens del servicio.
const Audience = "aulalink"

// Issuer firma access tokens usando la clave activa del keystore.
// El TTL es una constante de configuración, nunca un parámetro por llamada.
type Issuer struct {
	Iss       string
	Keys      *Keystore
	AccessTTL time.Duration
}

func NewIssuer(iss string, ks *Keystore, accessTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 3 * time.Hour
	}
	return &Issuer{Iss: iss, Keys: ks, AccessTTL: accessTTL}
}

// IssuedAccess es el resultado de emitir un access token.
type IssuedAccess struct {
	Raw       string
	TokenID   string // jti
	ExpiresAt time.Time
}

// IssueAccess emite un access token firmado para el principal dado.
// El claim tid se OMITE (no se setea vacío) para el rol privilegiado.
func (i *Issuer) IssueAccess(p authz.Principal) (IssuedAccess, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)
	jti := uuid.NewString()

	claims := jwtv5.MapClaims{
		"iss":  i.Iss,
		"sub":  p.UserID,
		"aud":  Audience,
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"exp":  exp.Unix(),
		"jti":  jti,
		"role": p.Role,
		"sid":  p.SessionID,
	}
	if p.TenantID != "" {
		claims["tid"] = p.TenantID
	}

	kid, priv := i.Keys.Active()
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = kid
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(priv)
	if err != nil {
		return IssuedAccess{}, err
	}
	return IssuedAccess{Raw: signed, TokenID: jti, ExpiresAt: exp}, nil
}
