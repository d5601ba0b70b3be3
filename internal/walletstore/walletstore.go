// Package walletstore is the reference Wallet Store collaborator: a
// single-account wallet persisted under data_dir/wallet.json and
// data_dir/tx_history.json. It exists so the submission service has
// something runnable to exercise end to end — key-derivation detail beyond
// this minimal reference KDF remains a Non-goal.
package walletstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/scrypt"
)

// ErrWalletNotFound is returned when no wallet has been created yet.
var ErrWalletNotFound = errors.New("wallet_not_found")

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// Summary is the opaque view the submission service exposes at
// GET /wallet/show.
type Summary struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// encryptedKey is the at-rest shape of a scrypt-derived AES-GCM ciphertext.
type encryptedKey struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type walletFile struct {
	Name                string       `json:"name"`
	Address             string       `json:"address"`
	PublicKeyHex        string       `json:"public_key_hex"`
	EncryptedPrivateKey encryptedKey `json:"encrypted_private_key"`
	Mnemonic            string       `json:"mnemonic"`
	CreatedAt           string       `json:"created_at"`
}

// HistoryRecord is one append-only transaction-history entry.
type HistoryRecord struct {
	TxHash     string `json:"tx_hash"`
	SubmitHash string `json:"submit_hash"`
	Amount     int64  `json:"amount"`
	Recipient  string `json:"recipient"`
	RecordedAt string `json:"recorded_at"`
}

// Loaded is the decrypted in-memory view of a wallet, used to build a
// signer / address pair for the Tx Engine.
type Loaded struct {
	Address    string
	Name       string
	PrivateKey *secp256k1.PrivateKey
}

// Store is the single-account wallet persistence layer.
type Store struct {
	dataDir     string
	walletPath  string
	historyPath string
}

// New returns a Store rooted at dataDir, creating it if necessary.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &Store{
		dataDir:     dataDir,
		walletPath:  filepath.Join(dataDir, "wallet.json"),
		historyPath: filepath.Join(dataDir, "tx_history.json"),
	}, nil
}

// Exists reports whether a wallet has already been created.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.walletPath)
	return err == nil
}

// Create generates (or imports, if mnemonic is non-empty) a single-account
// wallet, encrypts its private key under password, and persists it.
func (s *Store) Create(password, name, mnemonic string) (walletFile, error) {
	if name == "" {
		name = "default"
	}
	if mnemonic == "" {
		entropy, err := bip39.NewEntropy(128)
		if err != nil {
			return walletFile{}, err
		}
		mnemonic, err = bip39.NewMnemonic(entropy)
		if err != nil {
			return walletFile{}, err
		}
	} else if !bip39.IsMnemonicValid(mnemonic) {
		return walletFile{}, errors.New("invalid_mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	priv := secp256k1.PrivKeyFromBytes(sha256Of(seed))
	pub := priv.PubKey()
	address := addressFromPubKey(pub)

	encKey, err := encryptPrivateKey(priv.Serialize(), password)
	if err != nil {
		return walletFile{}, err
	}

	wf := walletFile{
		Name:                name,
		Address:             address,
		PublicKeyHex:        hex.EncodeToString(pub.SerializeCompressed()),
		EncryptedPrivateKey: encKey,
		Mnemonic:            mnemonic,
		CreatedAt:           time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.writeWalletFile(wf); err != nil {
		return walletFile{}, err
	}
	if !s.historyExists() {
		if err := s.writeHistory(nil); err != nil {
			return walletFile{}, err
		}
	}
	return wf, nil
}

// Import re-derives a wallet from an existing mnemonic.
func (s *Store) Import(mnemonic, password, name string) (walletFile, error) {
	if mnemonic == "" {
		return walletFile{}, errors.New("mnemonic_required")
	}
	return s.Create(password, name, mnemonic)
}

// Load decrypts the wallet's private key under password.
func (s *Store) Load(password string) (Loaded, error) {
	wf, err := s.readWalletFile()
	if err != nil {
		return Loaded{}, err
	}
	keyBytes, err := decryptPrivateKey(wf.EncryptedPrivateKey, password)
	if err != nil {
		return Loaded{}, fmt.Errorf("decrypt private key: %w", err)
	}
	priv := secp256k1.PrivKeyFromBytes(keyBytes)
	return Loaded{Address: wf.Address, Name: wf.Name, PrivateKey: priv}, nil
}

// Summary returns the wallet's public summary, or ErrWalletNotFound.
func (s *Store) Summary() (Summary, error) {
	wf, err := s.readWalletFile()
	if err != nil {
		return Summary{}, err
	}
	return Summary{Address: wf.Address, Name: wf.Name, CreatedAt: wf.CreatedAt}, nil
}

// AppendHistory appends one record to the wallet's transaction history.
func (s *Store) AppendHistory(rec HistoryRecord) error {
	history, err := s.History()
	if err != nil {
		return err
	}
	history = append(history, rec)
	return s.writeHistory(history)
}

// History returns the wallet's transaction history. A missing or corrupt
// history file yields an empty slice rather than an error.
func (s *Store) History() ([]HistoryRecord, error) {
	data, err := os.ReadFile(s.historyPath)
	if err != nil {
		return nil, nil
	}
	var history []HistoryRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, nil
	}
	return history, nil
}

func (s *Store) historyExists() bool {
	_, err := os.Stat(s.historyPath)
	return err == nil
}

func (s *Store) writeHistory(history []HistoryRecord) error {
	if history == nil {
		history = []HistoryRecord{}
	}
	buf, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.historyPath, buf, 0o600)
}

func (s *Store) readWalletFile() (walletFile, error) {
	data, err := os.ReadFile(s.walletPath)
	if err != nil {
		if os.IsNotExist(err) {
			return walletFile{}, ErrWalletNotFound
		}
		return walletFile{}, err
	}
	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return walletFile{}, err
	}
	return wf, nil
}

func (s *Store) writeWalletFile(wf walletFile) error {
	buf, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.walletPath, buf, 0o600)
}

func sha256Of(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func addressFromPubKey(pub *secp256k1.PublicKey) string {
	sum := sha256.Sum256(pub.SerializeCompressed())
	return "0x" + hex.EncodeToString(sum[:20])
}

func encryptPrivateKey(plaintext []byte, password string) (encryptedKey, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return encryptedKey{}, err
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return encryptedKey{}, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return encryptedKey{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return encryptedKey{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return encryptedKey{}, err
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return encryptedKey{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

func decryptPrivateKey(enc encryptedKey, password string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(enc.Salt)
	if err != nil {
		return nil, err
	}
	nonce, err := base64.StdEncoding.DecodeString(enc.Nonce)
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(enc.Ciphertext)
	if err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}
