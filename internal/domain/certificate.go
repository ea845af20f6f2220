package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

const (
	CertificatePurposeIdentification = "identification"
	CertificatePayloadText           = "text"
)

type CertificatePayload struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// Certificate is the message a wallet signs to prove control of an address.
// Fields are declared in key order so the JSON encoding is canonical.
type Certificate struct {
	Domain    string             `json:"domain"`
	Payload   CertificatePayload `json:"payload"`
	Purpose   string             `json:"purpose"`
	Signer    string             `json:"signer"`
	Timestamp int64              `json:"timestamp"`
}

type SignedCertificate struct {
	Certificate
	Signature string
}

func NewIdentificationCertificate(domain, content string, timestamp int64) Certificate {
	return Certificate{
		Domain:    domain,
		Payload:   CertificatePayload{Type: CertificatePayloadText, Content: content},
		Purpose:   CertificatePurposeIdentification,
		Timestamp: timestamp,
	}
}

// SameRequest reports whether c is the certificate that was asked for, ignoring the
// signer the wallet fills in.
func (c Certificate) SameRequest(requested Certificate) bool {
	c.Signer = ""
	requested.Signer = ""
	return c == requested
}

func (c Certificate) Encode() ([]byte, error) {
	c.Signer = strings.ToLower(c.Signer)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode certificate: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (c Certificate) SigningHash() ([32]byte, error) {
	encoded, err := c.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(encoded), nil
}

// RecoverSigner returns the address whose key produced the signature.
func (s SignedCertificate) RecoverSigner() (string, error) {
	hash, err := s.SigningHash()
	if err != nil {
		return "", err
	}

	sig, err := hexutil.Decode(s.Signature)
	if err != nil {
		return "", fmt.Errorf("decode certificate signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("certificate signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	pub, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return "", fmt.Errorf("recover certificate signer: %w", err)
	}

	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

func (s SignedCertificate) Verify() error {
	if strings.TrimSpace(s.Signer) == "" {
		return fmt.Errorf("%w: certificate has no signer", ErrIdentityVerification)
	}

	recovered, err := s.RecoverSigner()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIdentityVerification, err)
	}
	if !strings.EqualFold(recovered, s.Signer) {
		return fmt.Errorf("%w: signature belongs to %s, not %s", ErrIdentityVerification, recovered, s.Signer)
	}

	return nil
}
