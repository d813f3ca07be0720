package deletion

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"tminus/internal/apperrors"
	"tminus/internal/domain"
)

const signingKeyInfo = "tminus-deletion-cert-signing"

// canonicalPayload is the deterministic, field-ordered shape hashed to
// produce a certificate's proof_hash. Struct field order is what makes
// encoding/json's output stable here; a map would not give that guarantee.
type canonicalPayload struct {
	EntityType      string                 `json:"entity_type"`
	EntityID        string                 `json:"entity_id"`
	DeletedAt       string                 `json:"deleted_at"`
	DeletionSummary domain.DeletionSummary `json:"deletion_summary"`
}

func canonicalize(entityType, entityID string, deletedAt time.Time, summary domain.DeletionSummary) ([]byte, error) {
	payload := canonicalPayload{
		EntityType:      entityType,
		EntityID:        entityID,
		DeletedAt:       deletedAt.UTC().Format(time.RFC3339Nano),
		DeletionSummary: summary,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Internal("canonicalize deletion certificate payload", err)
	}
	return encoded, nil
}

// deriveSigningKey derives a 32-byte HMAC key from masterKey via HKDF-SHA256,
// the same key-derivation idiom infrastructure/crypto/envelope.go uses for
// per-subject encryption keys, applied here to a fixed signing-key subject
// instead of a per-record one since every certificate shares one verifier.
func deriveSigningKey(masterKey []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(signingKeyInfo))
	key := make([]byte, sha256.Size)
	if _, err := reader.Read(key); err != nil {
		return nil, apperrors.Internal("derive certificate signing key", err)
	}
	return key, nil
}

// BuildCertificate computes proof_hash and signature for a deletion
// summary and returns the fully-populated certificate. Called at step 8
// of the deletion workflow; also re-derivable by anyone holding masterKey
// to verify a certificate independently (spec's "certificate integrity"
// requirement).
func BuildCertificate(masterKey []byte, entityType, entityID string, deletedAt time.Time, summary domain.DeletionSummary) (*domain.DeletionCertificate, error) {
	payload, err := canonicalize(entityType, entityID, deletedAt, summary)
	if err != nil {
		return nil, err
	}
	proofHashBytes := sha256.Sum256(payload)
	proofHash := hex.EncodeToString(proofHashBytes[:])

	signingKey, err := deriveSigningKey(masterKey)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, signingKey)
	_, _ = mac.Write([]byte(proofHash))
	signature := hex.EncodeToString(mac.Sum(nil))

	return &domain.DeletionCertificate{
		CertID:          uuid.New().String(),
		EntityType:      entityType,
		EntityID:        entityID,
		DeletedAt:       deletedAt.UTC(),
		ProofHash:       proofHash,
		Signature:       signature,
		DeletionSummary: summary,
	}, nil
}

// Verify recomputes proof_hash and signature from cert's own fields and
// reports whether both match what's stored. A tampered summary and a
// tampered signature both yield false; the result does not say which
// check failed.
func Verify(masterKey []byte, cert *domain.DeletionCertificate) (bool, error) {
	recomputed, err := BuildCertificate(masterKey, cert.EntityType, cert.EntityID, cert.DeletedAt, cert.DeletionSummary)
	if err != nil {
		return false, err
	}
	if recomputed.ProofHash != cert.ProofHash {
		return false, nil
	}
	if recomputed.Signature != cert.Signature {
		return false, nil
	}
	return true, nil
}
