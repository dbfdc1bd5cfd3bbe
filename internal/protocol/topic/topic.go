package topic

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

const prefix = "/xmtp/0/"

// Content wraps a topic name in the transport's content topic format.
func Content(name string) string {
	return prefix + name + "/proto"
}

// DirectMessage is the V1 topic shared by two addresses. It does not depend
// on which side is the sender.
func DirectMessage(a, b string) string {
	members := []string{a, b}
	sort.Strings(members)
	return Content("dm-" + strings.Join(members, "-"))
}

// UserIntro is where a user discovers V1 conversations started by peers.
func UserIntro(address string) string {
	return Content("intro-" + address)
}

// NewConversation returns a random V2 conversation topic.
func NewConversation() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random topic: %w", err)
	}
	return Content("m-" + base64.RawURLEncoding.EncodeToString(b)), nil
}

// IsValid reports whether t is a well-formed content topic.
func IsValid(t string) bool {
	return strings.HasPrefix(t, prefix) && strings.HasSuffix(t, "/proto") && len(t) > len(prefix)+len("/proto")
}
