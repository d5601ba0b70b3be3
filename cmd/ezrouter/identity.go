package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"ezchain/internal/p2pcrypto"
)

// loadOrCreateIdentity reads the node's P-256 signing identity from
// keyFile/pubKeyFile, minting a fresh keypair on first run. An empty keyFile
// means the node runs without a persistent identity (a fresh key every
// start), which is only sensible for enforce_identity_verification=false
// deployments.
func loadOrCreateIdentity(keyFile, pubKeyFile string) (*ecdsa.PrivateKey, []byte, error) {
	if keyFile == "" {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		pubPEM, err := p2pcrypto.MarshalPublicKeyPEM(&priv.PublicKey)
		if err != nil {
			return nil, nil, err
		}
		return priv, pubPEM, nil
	}

	if data, err := os.ReadFile(keyFile); err == nil {
		priv, err := p2pcrypto.ParsePrivateKeyPEM(data)
		if err != nil {
			return nil, nil, err
		}
		pubPEM, err := p2pcrypto.MarshalPublicKeyPEM(&priv.PublicKey)
		if err != nil {
			return nil, nil, err
		}
		return priv, pubPEM, nil
	} else if !os.IsNotExist(err) {
		return nil, nil, err
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	if err := writeIdentity(keyFile, pubKeyFile, priv); err != nil {
		return nil, nil, err
	}
	pubPEM, err := p2pcrypto.MarshalPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	return priv, pubPEM, nil
}

func writeIdentity(keyFile, pubKeyFile string, priv *ecdsa.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(keyFile), 0o755); err != nil {
		return err
	}
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return err
	}

	if pubKeyFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(pubKeyFile), 0o755); err != nil {
		return err
	}
	pubPEM, err := p2pcrypto.MarshalPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return err
	}
	return os.WriteFile(pubKeyFile, pubPEM, 0o644)
}
