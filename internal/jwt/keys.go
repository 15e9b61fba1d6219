// Package jwt firma y verifica los access tokens del servicio (EdDSA).
package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"
)

// Keystore mantiene la clave de firma activa y las claves retiradas que aún
// validan tokens emitidos antes de una rotación.
type Keystore struct {
	mu        sync.RWMutex
	activeKID string
	priv      ed25519.PrivateKey
	pubs      map[string]ed25519.PublicKey // kid → pubkey (activa + retiradas)
}

// NewKeystore genera un par efímero. Solo aceptable en dev/tests: los tokens
// firmados mueren con el proceso.
func NewKeystore() (*Keystore, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newFromKey(priv, pub), nil
}

// NewKeystoreFromSeed deriva el par desde un seed de 32 bytes en base64.
// Es la vía de producción: el seed viene de config/secret manager.
func NewKeystoreFromSeed(seedB64 string) (*Keystore, error) {
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, fmt.Errorf("jwt: seed base64 inválido: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwt: seed debe tener %d bytes, tiene %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return newFromKey(priv, pub), nil
}

func newFromKey(priv ed25519.PrivateKey, pub ed25519.PublicKey) *Keystore {
	kid := keyID(pub)
	return &Keystore{
		activeKID: kid,
		priv:      priv,
		pubs:      map[string]ed25519.PublicKey{kid: pub},
	}
}

// keyID deriva un kid estable del material público.
func keyID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}

// Active devuelve (kid, clave privada) de la clave de firma actual.
func (k *Keystore) Active() (string, ed25519.PrivateKey) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.activeKID, k.priv
}

// PublicKeyByKID resuelve la pubkey para validar un token por su header kid.
func (k *Keystore) PublicKeyByKID(kid string) (ed25519.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pub, ok := k.pubs[kid]
	if !ok {
		return nil, fmt.Errorf("jwt: kid desconocido: %s", kid)
	}
	return pub, nil
}

// Rotate reemplaza la clave activa y retiene la anterior para validación.
func (k *Keystore) Rotate() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	kid := keyID(pub)
	k.activeKID = kid
	k.priv = priv
	k.pubs[kid] = pub
	return nil
}
