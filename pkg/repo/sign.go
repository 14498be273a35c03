package repo

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
)

// ErrCommitNotSigned is returned by VerifyCommit when the commit carries
// no signature to check.
var ErrCommitNotSigned = errors.New("repo: commit has no signature")

// unsignedMessage returns the exact bytes a signature covers: the
// commit's canonical encoding with any existing Signature stripped, so
// signing and verifying always hash identical content regardless of
// whether the in-memory Commit already carries a signature.
func unsignedMessage(c *manifest.Commit) []byte {
	stripped := *c
	stripped.Signature = nil
	return stripped.Encode()
}

// SignCommit produces a detached OpenPGP signature over c's unsigned
// encoding using entity, storing the armored signature bytes on
// c.Signature. Grounded on go-git's pgp.Signer.Sign, adapted from
// go-git's SignableObject/MemoryObject plumbing to manifest.Commit's own
// Encode.
func SignCommit(c *manifest.Commit, entity *openpgp.Entity) error {
	if entity == nil {
		return errors.New("repo: cannot sign with a nil entity")
	}
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, entity, bytes.NewReader(unsignedMessage(c)), nil); err != nil {
		return fmt.Errorf("repo: sign commit: %w", err)
	}
	c.Signature = buf.Bytes()
	return nil
}

// VerifyCommitSignature checks c's detached signature against keyring,
// returning the signing entity on success. Grounded on go-git's
// pgp.Verifier.Verify and OpenPGPVerifier.Verify.
func VerifyCommitSignature(c *manifest.Commit, keyring openpgp.EntityList) (*openpgp.Entity, error) {
	if len(c.Signature) == 0 {
		return nil, ErrCommitNotSigned
	}
	entity, err := openpgp.CheckArmoredDetachedSignature(
		keyring,
		bytes.NewReader(unsignedMessage(c)),
		bytes.NewReader(c.Signature),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("repo: signature verification failed: %w", err)
	}
	return entity, nil
}

// VerifyCommit loads the commit at h and verifies its signature against
// keyring.
func (r *Repository) VerifyCommit(h hashutil.Hash, keyring openpgp.EntityList) (*openpgp.Entity, error) {
	commit, err := r.loadCommit(h)
	if err != nil {
		return nil, err
	}
	return VerifyCommitSignature(commit, keyring)
}
