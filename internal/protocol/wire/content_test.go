package wire

import (
	"testing"

	"topicmsg/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodedContentIsDeterministic(t *testing.T) {
	fallback := ""
	gzip := model.CompressionGzip
	c := &model.EncodedContent{
		Type:        model.ContentTypeID{AuthorityID: "xmtp.org", TypeID: "text", VersionMajor: 1, VersionMinor: 2},
		Parameters:  map[string]string{"zeta": "z", "alpha": "a", "encoding": "UTF-8"},
		Content:     []byte("hello"),
		Compression: &gzip,
		Fallback:    &fallback,
	}

	first := MarshalEncodedContent(c)
	for range 10 {
		assert.Equal(t, first, MarshalEncodedContent(c))
	}

	got, hasType, err := UnmarshalEncodedContent(first)
	require.NoError(t, err)
	assert.True(t, hasType)
	assert.Equal(t, c, got)
}

func TestEncodedContentKeepsZeroOptionals(t *testing.T) {
	empty := ""
	deflate := model.CompressionDeflate
	got, _, err := UnmarshalEncodedContent(MarshalEncodedContent(&model.EncodedContent{
		Type:        model.ContentTypeID{AuthorityID: "a", TypeID: "b"},
		Fallback:    &empty,
		Compression: &deflate,
	}))
	require.NoError(t, err)
	require.NotNil(t, got.Fallback)
	require.NotNil(t, got.Compression)
	assert.Equal(t, model.CompressionDeflate, *got.Compression)
}

func TestEncodedContentWithoutType(t *testing.T) {
	_, hasType, err := UnmarshalEncodedContent(appendBytes(nil, 4, []byte("x")))
	require.NoError(t, err)
	assert.False(t, hasType)
}

func TestEnvelope(t *testing.T) {
	env := model.Envelope{ContentTopic: "/xmtp/0/dm-a-b/proto", TimestampNs: 42, Message: []byte{1, 2, 3}}
	got, err := UnmarshalEnvelope(MarshalEnvelope(env))
	require.NoError(t, err)
	assert.Equal(t, env, got)
	assert.Equal(t, int64(42), got.Sent().UnixNano())
}

func TestSignedContent(t *testing.T) {
	s := &model.SignedContent{
		Payload: []byte("payload"),
		Sender: &model.SignedPublicKeyBundle{
			IdentityKey: &model.SignedPublicKey{KeyBytes: []byte{1}, Signature: &model.Signature{Kind: model.SignatureWallet, Bytes: []byte{2}, Recovery: 1}},
			PreKey:      &model.SignedPublicKey{KeyBytes: []byte{3}, Signature: &model.Signature{Kind: model.SignatureECDSA, Bytes: []byte{4}}},
		},
		Signature: &model.Signature{Kind: model.SignatureECDSA, Bytes: []byte{5}, Recovery: 1},
	}
	got, err := UnmarshalSignedContent(MarshalSignedContent(s))
	require.NoError(t, err)
	assert.Equal(t, s, got)
}
