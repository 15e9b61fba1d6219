// Package auth contiene los DTOs de los endpoints de autenticación.
package auth

// LoginRequest es el body de POST /v1/auth/login.
// NO lleva tenant: el tenant se deriva del usuario, nunca del cliente.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse es el body de login/refresh exitoso.
// El refresh token NUNCA viaja acá: va solo en la cookie HTTP-only.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // siempre "Bearer"
	ExpiresIn   int64  `json:"expires_in"` // segundos
}
