package model

type (
	// SignatureKind tells which key produced a Signature.
	SignatureKind int

	// Signature is a recoverable secp256k1 ECDSA signature. Bytes holds r||s
	// (64 bytes) and Recovery the recovery id.
	Signature struct {
		Kind     SignatureKind
		Bytes    []byte
		Recovery uint32
	}

	// PublicKey is the legacy (V1) public key representation. Identity keys
	// carry a wallet signature, prekeys carry an identity key signature.
	PublicKey struct {
		Timestamp             uint64 // ms since epoch
		Signature             *Signature
		Secp256k1Uncompressed []byte
	}

	PublicKeyBundle struct {
		IdentityKey *PublicKey
		PreKey      *PublicKey
	}

	// UnsignedPublicKey is the payload covered by a SignedPublicKey signature.
	UnsignedPublicKey struct {
		CreatedNs             uint64
		Secp256k1Uncompressed []byte
	}

	// SignedPublicKey carries the encoded UnsignedPublicKey so that the
	// signature can be verified over the exact bytes that were signed.
	SignedPublicKey struct {
		KeyBytes  []byte
		Signature *Signature
	}

	SignedPublicKeyBundle struct {
		IdentityKey *SignedPublicKey
		PreKey      *SignedPublicKey
	}
)

const (
	// SignatureECDSA is produced by a protocol key (identity key or prekey).
	SignatureECDSA SignatureKind = iota
	// SignatureWallet is produced by the account wallet over a personal-sign text.
	SignatureWallet
)
