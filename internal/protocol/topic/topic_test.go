package topic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectMessageIsSymmetric(t *testing.T) {
	a := "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	b := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	assert.Equal(t, DirectMessage(a, b), DirectMessage(b, a))
	assert.Equal(t, "/xmtp/0/dm-"+b+"-"+a+"/proto", DirectMessage(a, b))
}

func TestUserTopics(t *testing.T) {
	assert.Equal(t, "/xmtp/0/intro-0xabc/proto", UserIntro("0xabc"))
}

func TestNewConversation(t *testing.T) {
	first, err := NewConversation()
	require.NoError(t, err)
	second, err := NewConversation()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, "/xmtp/0/m-"))
	assert.True(t, IsValid(first))
	assert.False(t, IsValid("m-abc"))
	assert.False(t, IsValid("/xmtp/0//proto"))
}
