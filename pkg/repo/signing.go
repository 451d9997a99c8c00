package repo

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/twig/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns the encoded
// signature stored in object.Commit.Signature.
type CommitSigner func(payload []byte) (string, error)

const commitSignaturePrefix = "sshsig-v1"

var (
	// ErrUnsigned is returned by VerifyCommitSignature for unsigned commits.
	ErrUnsigned = errors.New("commit is not signed")
	// ErrBadSignature is returned when a signature does not verify.
	ErrBadSignature = errors.New("bad commit signature")
)

// NewSSHSigner loads an SSH private key from keyPath. An empty path tries
// ~/.ssh/id_ed25519, id_ecdsa and id_rsa in order.
func NewSSHSigner(keyPath string) (CommitSigner, error) {
	resolved, err := resolveSigningKeyPath(keyPath)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read signing key %q: %w", resolved, err)
	}
	return ParseSSHSigner(raw)
}

// ParseSSHSigner builds a CommitSigner from PEM-encoded private key bytes.
func ParseSSHSigner(raw []byte) (CommitSigner, error) {
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	pubB64 := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())
	return func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", err
		}
		sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
		return fmt.Sprintf("%s:%s:%s:%s", commitSignaturePrefix, sig.Format, pubB64, sigB64), nil
	}, nil
}

// VerifyCommitSignature checks c.Signature against the commit's signing
// payload and returns the signer's public key.
func VerifyCommitSignature(c *object.Commit) (ssh.PublicKey, error) {
	if c.Signature == "" {
		return nil, ErrUnsigned
	}
	parts := strings.SplitN(c.Signature, ":", 4)
	if len(parts) != 4 || parts[0] != commitSignaturePrefix {
		return nil, fmt.Errorf("%w: unknown signature format", ErrBadSignature)
	}
	pubRaw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrBadSignature, err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrBadSignature, err)
	}
	blob, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrBadSignature, err)
	}
	payload, err := object.CommitSigningPayload(c)
	if err != nil {
		return nil, err
	}
	if err := pub.Verify(payload, &ssh.Signature{Format: parts[1], Blob: blob}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return pub, nil
}

// signer returns the configured commit signer, or nil when signing is off.
func (r *Repo) signer() (CommitSigner, error) {
	if strings.TrimSpace(r.Config.Commit.SigningKey) == "" {
		return nil, nil
	}
	return NewSSHSigner(r.Config.Commit.SigningKey)
}

func resolveSigningKeyPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		return expandUserPath(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		candidate := filepath.Join(home, ".ssh", name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (id_ed25519, id_ecdsa, id_rsa)")
}

func expandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
