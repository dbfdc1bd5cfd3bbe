// Package keystore is an in-process keystore: it holds an account's private
// key bundle and V2 topic keys and performs every encryption, decryption and
// signature on their behalf.
package keystore

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"topicmsg/internal/cryptographic/encryption"
	"topicmsg/internal/cryptographic/signature"
	"topicmsg/internal/model"
	"topicmsg/internal/protocol/keys"
	"topicmsg/internal/protocol/tripledh"
)

type Keystore struct {
	bundle *keys.PrivateKeyBundle
	topics TopicStore
}

func New(bundle *keys.PrivateKeyBundle, topics TopicStore) *Keystore {
	if topics == nil {
		topics = NewMemoryTopicStore()
	}
	return &Keystore{bundle: bundle, topics: topics}
}

func (k *Keystore) AccountAddress(context.Context) (string, error) {
	return k.bundle.Address, nil
}

func (k *Keystore) PublicKeyBundle(context.Context) (*model.PublicKeyBundle, error) {
	return k.bundle.PublicKeyBundle(), nil
}

func (k *Keystore) SignedPublicKeyBundle(context.Context) (*model.SignedPublicKeyBundle, error) {
	return k.bundle.SignedPublicKeyBundle(), nil
}

// NewTopicKey returns fresh random key material for a V2 topic.
func NewTopicKey() (*TopicKey, error) {
	material := make([]byte, encryption.KeySize)
	if _, err := io.ReadFull(rand.Reader, material); err != nil {
		return nil, fmt.Errorf("rand.Read topic key: %w", err)
	}
	return &TopicKey{KeyMaterial: material, CreatedAt: time.Now()}, nil
}

func (k *Keystore) AddTopicKey(ctx context.Context, topic string, key *TopicKey) error {
	if len(key.KeyMaterial) == 0 {
		return &model.KeystoreError{Code: model.KeystoreErrInvalidInput, Message: "empty key material"}
	}
	return k.topics.SaveTopicKey(ctx, topic, key)
}

func (k *Keystore) TopicKey(ctx context.Context, topic string) (*TopicKey, error) {
	return k.topics.GetTopicKey(ctx, topic)
}

func (k *Keystore) secretV1(peer *model.PublicKeyBundle, isSender bool) ([]byte, *model.KeystoreError) {
	if peer == nil || peer.IdentityKey == nil || peer.PreKey == nil {
		return nil, &model.KeystoreError{Code: model.KeystoreErrInvalidInput, Message: "incomplete peer bundle"}
	}
	kb := &tripledh.KeyBundle{
		IdentityPriv: k.bundle.IdentityKey.Secret,
		PreKeyPriv:   k.bundle.PreKey.Secret,
		PeerIdentity: peer.IdentityKey.Secp256k1Uncompressed,
		PeerPreKey:   peer.PreKey.Secp256k1Uncompressed,
	}

	var (
		secret []byte
		err    error
	)
	if isSender {
		secret, err = (&tripledh.Sender{}).GenerateShareKey(kb)
	} else {
		secret, err = (&tripledh.Receiver{}).GenerateShareKey(kb)
	}
	if err != nil {
		return nil, &model.KeystoreError{Code: model.KeystoreErrInvalidInput, Message: err.Error()}
	}
	return secret, nil
}

func (k *Keystore) EncryptV1(_ context.Context, reqs []model.EncryptV1Request) ([]model.EncryptResponse, error) {
	resps := make([]model.EncryptResponse, len(reqs))
	for i, req := range reqs {
		secret, kerr := k.secretV1(req.Recipient, true)
		if kerr != nil {
			resps[i].Error = kerr
			continue
		}
		resps[i] = encrypt(secret, req.Payload, req.HeaderBytes)
	}
	return resps, nil
}

func (k *Keystore) DecryptV1(_ context.Context, reqs []model.DecryptV1Request) ([]model.DecryptResponse, error) {
	resps := make([]model.DecryptResponse, len(reqs))
	for i, req := range reqs {
		secret, kerr := k.secretV1(req.PeerKeys, req.IsSender)
		if kerr != nil {
			resps[i].Error = kerr
			continue
		}
		resps[i] = decrypt(secret, req.Payload, req.HeaderBytes)
	}
	return resps, nil
}

func (k *Keystore) EncryptV2(ctx context.Context, reqs []model.EncryptV2Request) ([]model.EncryptResponse, error) {
	resps := make([]model.EncryptResponse, len(reqs))
	for i, req := range reqs {
		key, kerr := k.topicKey(ctx, req.ContentTopic)
		if kerr != nil {
			resps[i].Error = kerr
			continue
		}
		resps[i] = encrypt(key.KeyMaterial, req.Payload, req.HeaderBytes)
	}
	return resps, nil
}

func (k *Keystore) DecryptV2(ctx context.Context, reqs []model.DecryptV2Request) ([]model.DecryptResponse, error) {
	resps := make([]model.DecryptResponse, len(reqs))
	for i, req := range reqs {
		key, kerr := k.topicKey(ctx, req.ContentTopic)
		if kerr != nil {
			resps[i].Error = kerr
			continue
		}
		resps[i] = decrypt(key.KeyMaterial, req.Payload, req.HeaderBytes)
	}
	return resps, nil
}

func (k *Keystore) topicKey(ctx context.Context, topic string) (*TopicKey, *model.KeystoreError) {
	key, err := k.topics.GetTopicKey(ctx, topic)
	if err != nil {
		return nil, &model.KeystoreError{Code: model.KeystoreErrUnspecified, Message: err.Error()}
	}
	if key == nil {
		return nil, &model.KeystoreError{Code: model.KeystoreErrNoMatchingTopic, Message: "no key for topic " + topic}
	}
	return key, nil
}

// SignDigest signs with the current prekey, or with the identity key when
// req.IdentityKey is set.
func (k *Keystore) SignDigest(_ context.Context, req model.SignDigestRequest) (*model.Signature, error) {
	if len(req.Digest) != 32 {
		return nil, &model.KeystoreError{Code: model.KeystoreErrInvalidInput, Message: "digest must be 32 bytes"}
	}
	if req.IdentityKey {
		return signature.Sign(k.bundle.IdentityKey.Secret, req.Digest, model.SignatureECDSA), nil
	}
	if req.PrekeyIndex != 0 {
		return nil, &model.KeystoreError{Code: model.KeystoreErrNoMatchingPrekey, Message: fmt.Sprintf("no prekey at index %d", req.PrekeyIndex)}
	}
	return signature.Sign(k.bundle.PreKey.Secret, req.Digest, model.SignatureECDSA), nil
}

func encrypt(secret, payload, aad []byte) model.EncryptResponse {
	ct, err := encryption.Encrypt(secret, payload, aad)
	if err != nil {
		return model.EncryptResponse{Error: &model.KeystoreError{Code: model.KeystoreErrUnspecified, Message: err.Error()}}
	}
	return model.EncryptResponse{Encrypted: ct}
}

func decrypt(secret []byte, ct *model.Ciphertext, aad []byte) model.DecryptResponse {
	if ct == nil {
		return model.DecryptResponse{Error: &model.KeystoreError{Code: model.KeystoreErrInvalidInput, Message: "no ciphertext"}}
	}
	plain, err := encryption.Decrypt(secret, ct, aad)
	if err != nil {
		return model.DecryptResponse{Error: &model.KeystoreError{Code: model.KeystoreErrDecryption, Message: err.Error()}}
	}
	return model.DecryptResponse{Decrypted: plain}
}
