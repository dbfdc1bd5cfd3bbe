package signature

import (
	"encoding/hex"
	"testing"

	"topicmsg/internal/model"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeccak256(t *testing.T) {
	assert.Equal(t,
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		hex.EncodeToString(Keccak256()),
	)
}

func TestAddress(t *testing.T) {
	one := make([]byte, 32)
	one[31] = 1
	priv := secp256k1.PrivKeyFromBytes(one)

	address, err := Address(priv.PubKey().SerializeUncompressed())
	require.NoError(t, err)
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", address)

	_, err = Address(priv.PubKey().SerializeCompressed())
	assert.Error(t, err)
}

func TestChecksumAddress(t *testing.T) {
	got, err := ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", got)

	got, err = ChecksumAddress("fB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	require.NoError(t, err)
	assert.Equal(t, "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", got)

	_, err = ChecksumAddress("0x1234")
	assert.Error(t, err)
	_, err = ChecksumAddress("0xzzaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	assert.Error(t, err)
}

func TestSignRecover(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	digest := Keccak256([]byte("message"))

	sig := Sign(priv, digest, model.SignatureECDSA)
	assert.Len(t, sig.Bytes, 64)

	pub, err := Recover(sig, digest)
	require.NoError(t, err)
	assert.Equal(t, priv.PubKey().SerializeUncompressed(), pub)
	assert.True(t, Verify(pub, sig, digest))
	assert.False(t, Verify(pub, sig, Keccak256([]byte("other"))))
}

func TestSignPersonalMessage(t *testing.T) {
	wallet, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	sig := SignPersonalMessage(wallet, "hello")
	assert.Equal(t, model.SignatureWallet, sig.Kind)

	pub, err := Recover(sig, PersonalMessageHash("hello"))
	require.NoError(t, err)
	want, err := Address(wallet.PubKey().SerializeUncompressed())
	require.NoError(t, err)
	got, err := Address(pub)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
