package account

import (
	"testing"

	"topicmsg/internal/cryptographic/dh"
	"topicmsg/internal/protocol/keys"
	"topicmsg/internal/protocol/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleRestore(t *testing.T) {
	wallet, _, err := dh.NewKeyPair()
	require.NoError(t, err)
	original, err := keys.NewPrivateKeyBundle(wallet)
	require.NoError(t, err)

	a := FromBundle("alice", original)
	assert.Equal(t, "alice", a.Name)
	assert.Equal(t, original.Address, a.Address)

	restored, err := a.Bundle()
	require.NoError(t, err)
	assert.Equal(t, original.Address, restored.Address)
	assert.Equal(t, original.IdentityKey.Secret.Serialize(), restored.IdentityKey.Secret.Serialize())
	assert.Equal(t, original.PreKey.Secret.Serialize(), restored.PreKey.Secret.Serialize())
	assert.Equal(t,
		wire.MarshalPublicKeyBundle(original.PublicKeyBundle()),
		wire.MarshalPublicKeyBundle(restored.PublicKeyBundle()))
	assert.Equal(t,
		wire.MarshalSignedPublicKeyBundle(original.SignedPublicKeyBundle()),
		wire.MarshalSignedPublicKeyBundle(restored.SignedPublicKeyBundle()))

	// the restored identity still vouches for the restored prekey
	ok, err := keys.VerifySignedKey(restored.IdentityKey.Public, restored.PreKey.Public)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBundleRejectsCorruptAccount(t *testing.T) {
	wallet, _, err := dh.NewKeyPair()
	require.NoError(t, err)
	original, err := keys.NewPrivateKeyBundle(wallet)
	require.NoError(t, err)

	a := FromBundle("alice", original)
	a.PreKeyPriv = a.PreKeyPriv[:10]
	_, err = a.Bundle()
	assert.Error(t, err)

	a = FromBundle("alice", original)
	a.IdentitySigned = []byte{0xff}
	_, err = a.Bundle()
	assert.Error(t, err)
}
