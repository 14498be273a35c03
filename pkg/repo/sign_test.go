package repo

import (
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
)

func testEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("tester", "", "tester@example.com", nil)
	if err != nil {
		t.Fatalf("generate openpgp entity: %v", err)
	}
	return entity
}

func TestSignCommitThenVerifyCommitSignatureSucceeds(t *testing.T) {
	entity := testEntity(t)
	commit := &manifest.Commit{
		TreeHash:  hashutil.Bytes([]byte("tree")),
		Author:    "tester <tester@example.com>",
		Committer: "tester <tester@example.com>",
		Message:   "signed commit",
	}

	if err := SignCommit(commit, entity); err != nil {
		t.Fatalf("sign commit: %v", err)
	}
	if len(commit.Signature) == 0 {
		t.Fatalf("expected non-empty signature after signing")
	}

	signer, err := VerifyCommitSignature(commit, openpgp.EntityList{entity})
	if err != nil {
		t.Fatalf("verify commit signature: %v", err)
	}
	if signer.PrimaryKey.KeyId != entity.PrimaryKey.KeyId {
		t.Fatalf("verified signer key id mismatch")
	}
}

func TestVerifyCommitSignatureFailsForWrongKey(t *testing.T) {
	signingEntity := testEntity(t)
	otherEntity := testEntity(t)

	commit := &manifest.Commit{
		TreeHash: hashutil.Bytes([]byte("tree")),
		Author:   "tester <tester@example.com>",
		Message:  "signed with one key, verified with another",
	}
	if err := SignCommit(commit, signingEntity); err != nil {
		t.Fatalf("sign commit: %v", err)
	}

	if _, err := VerifyCommitSignature(commit, openpgp.EntityList{otherEntity}); err == nil {
		t.Fatalf("expected verification against the wrong key to fail")
	}
}

func TestVerifyCommitSignatureRejectsTamperedBody(t *testing.T) {
	entity := testEntity(t)
	commit := &manifest.Commit{
		TreeHash: hashutil.Bytes([]byte("tree")),
		Author:   "tester <tester@example.com>",
		Message:  "original message",
	}
	if err := SignCommit(commit, entity); err != nil {
		t.Fatalf("sign commit: %v", err)
	}

	commit.Message = "tampered message"
	if _, err := VerifyCommitSignature(commit, openpgp.EntityList{entity}); err == nil {
		t.Fatalf("expected verification to fail after tampering with the signed message")
	}
}

func TestVerifyCommitSignatureReturnsErrCommitNotSignedWhenEmpty(t *testing.T) {
	commit := &manifest.Commit{TreeHash: hashutil.Bytes([]byte("tree")), Message: "unsigned"}
	if _, err := VerifyCommitSignature(commit, nil); err != ErrCommitNotSigned {
		t.Fatalf("err = %v, want ErrCommitNotSigned", err)
	}
}
