package model

import "fmt"

type (
	// ContentTypeID identifies a content type. Types are compatible across
	// minor versions.
	ContentTypeID struct {
		AuthorityID  string
		TypeID       string
		VersionMajor uint32
		VersionMinor uint32
	}

	// Compression algorithms for EncodedContent.Content.
	Compression int32

	EncodedContent struct {
		Type        ContentTypeID
		Parameters  map[string]string
		Content     []byte
		Compression *Compression
		Fallback    *string
	}

	// MessageKind is the protocol-level kind flag of the carrying message.
	MessageKind int
)

const (
	CompressionDeflate Compression = 0
	CompressionGzip    Compression = 1
)

const (
	KindApplication MessageKind = iota
	KindMembershipChange
)

func (c ContentTypeID) String() string {
	return fmt.Sprintf("%s/%s:%d.%d", c.AuthorityID, c.TypeID, c.VersionMajor, c.VersionMinor)
}

// SameAs reports whether both ids name the same type, ignoring versions.
func (c ContentTypeID) SameAs(o ContentTypeID) bool {
	return c.AuthorityID == o.AuthorityID && c.TypeID == o.TypeID
}

func (c Compression) String() string {
	switch c {
	case CompressionDeflate:
		return "deflate"
	case CompressionGzip:
		return "gzip"
	default:
		return fmt.Sprintf("compression(%d)", int32(c))
	}
}
