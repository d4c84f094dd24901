package crypto

import (
	"bytes"
	"testing"
)

func TestMasterKeySignatureRoundTrip(t *testing.T) {
	t.Parallel()

	p := NewProvider()
	privateDER, publicDER, err := p.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("generate signing key pair: %v", err)
	}

	payload := []byte("activation-id&ABCDE-FGHIJ-KLMNO-23456")
	sig, err := p.SignWithMasterKey(privateDER, payload)
	if err != nil {
		t.Fatalf("sign with master key: %v", err)
	}
	if !VerifyMasterKeySignature(publicDER, payload, sig) {
		t.Fatalf("valid signature rejected")
	}
	if VerifyMasterKeySignature(publicDER, []byte("other payload"), sig) {
		t.Fatalf("signature accepted for different payload")
	}
	if VerifyMasterKeySignature([]byte("garbage"), payload, sig) {
		t.Fatalf("signature accepted under malformed public key")
	}
}

func TestMasterKeyECDHConversion(t *testing.T) {
	t.Parallel()

	p := NewProvider()
	privateDER, publicDER, err := p.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("generate signing key pair: %v", err)
	}

	masterPriv, err := MasterPrivateECDH(privateDER)
	if err != nil {
		t.Fatalf("master private to ecdh: %v", err)
	}
	masterPubBytes, err := MasterPublicECDHBytes(publicDER)
	if err != nil {
		t.Fatalf("master public to ecdh: %v", err)
	}

	// The converted halves must agree with a freshly generated peer.
	peer, err := p.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate peer key: %v", err)
	}
	fromMaster, err := p.SharedSecret(masterPriv, peer.PublicKey().Bytes())
	if err != nil {
		t.Fatalf("master shared secret: %v", err)
	}
	fromPeer, err := p.SharedSecret(peer, masterPubBytes)
	if err != nil {
		t.Fatalf("peer shared secret: %v", err)
	}
	if !bytes.Equal(fromMaster, fromPeer) {
		t.Fatalf("ecdh conversion halves disagree")
	}
}
