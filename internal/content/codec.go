package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"topicmsg/internal/model"
)

var (
	ContentTypeText = model.ContentTypeID{
		AuthorityID: "xmtp.org", TypeID: "text", VersionMajor: 1, VersionMinor: 0,
	}
	ContentTypeGroupUpdated = model.ContentTypeID{
		AuthorityID: "xmtp.org", TypeID: "group_updated", VersionMajor: 1, VersionMinor: 0,
	}
	ContentTypeReaction = model.ContentTypeID{
		AuthorityID: "xmtp.org", TypeID: "reaction", VersionMajor: 1, VersionMinor: 0,
	}
	// ContentTypeFallback marks content replaced by the sender's fallback text.
	ContentTypeFallback = model.ContentTypeID{
		AuthorityID: "xmtp.org", TypeID: "fallback", VersionMajor: 1, VersionMinor: 0,
	}
)

// Codec converts one content type to and from EncodedContent.
type Codec interface {
	ContentType() model.ContentTypeID
	Encode(content any) (*model.EncodedContent, error)
	Decode(encoded *model.EncodedContent) (any, error)
	// Fallback returns human-readable text for receivers without this codec.
	Fallback(content any) (string, bool)
}

type (
	TextCodec struct{}

	GroupUpdatedCodec struct{}

	ReactionCodec struct{}

	Inbox struct {
		InboxID string `json:"inbox_id"`
	}

	// GroupUpdated describes a membership change. It is only valid inside a
	// membership-change message.
	GroupUpdated struct {
		InitiatedByInboxID string  `json:"initiated_by_inbox_id"`
		AddedInboxes       []Inbox `json:"added_inboxes,omitempty"`
		RemovedInboxes     []Inbox `json:"removed_inboxes,omitempty"`
	}

	Reaction struct {
		Reference string `json:"reference"`
		Action    string `json:"action"` // "added" or "removed"
		Schema    string `json:"schema"` // "unicode", "shortcode" or "custom"
		Content   string `json:"content"`
	}
)

const textEncoding = "UTF-8"

func (TextCodec) ContentType() model.ContentTypeID { return ContentTypeText }

func (TextCodec) Encode(content any) (*model.EncodedContent, error) {
	text, ok := content.(string)
	if !ok {
		return nil, fmt.Errorf("text codec: want string, got %T", content)
	}
	return &model.EncodedContent{
		Type:       ContentTypeText,
		Parameters: map[string]string{"encoding": textEncoding},
		Content:    []byte(text),
	}, nil
}

func (TextCodec) Decode(encoded *model.EncodedContent) (any, error) {
	if enc, ok := encoded.Parameters["encoding"]; ok && !strings.EqualFold(enc, textEncoding) {
		return nil, fmt.Errorf("unrecognized encoding %s", enc)
	}
	return string(encoded.Content), nil
}

func (TextCodec) Fallback(any) (string, bool) { return "", false }

func (GroupUpdatedCodec) ContentType() model.ContentTypeID { return ContentTypeGroupUpdated }

func (GroupUpdatedCodec) Encode(content any) (*model.EncodedContent, error) {
	update, ok := content.(GroupUpdated)
	if !ok {
		return nil, fmt.Errorf("group updated codec: want GroupUpdated, got %T", content)
	}
	data, err := json.Marshal(update)
	if err != nil {
		return nil, err
	}
	return &model.EncodedContent{Type: ContentTypeGroupUpdated, Content: data}, nil
}

func (GroupUpdatedCodec) Decode(encoded *model.EncodedContent) (any, error) {
	var update GroupUpdated
	if err := json.Unmarshal(encoded.Content, &update); err != nil {
		return nil, fmt.Errorf("group updated: %w", err)
	}
	return update, nil
}

func (GroupUpdatedCodec) Fallback(any) (string, bool) { return "", false }

func (ReactionCodec) ContentType() model.ContentTypeID { return ContentTypeReaction }

func (ReactionCodec) Encode(content any) (*model.EncodedContent, error) {
	reaction, ok := content.(Reaction)
	if !ok {
		return nil, fmt.Errorf("reaction codec: want Reaction, got %T", content)
	}
	data, err := json.Marshal(reaction)
	if err != nil {
		return nil, err
	}
	return &model.EncodedContent{Type: ContentTypeReaction, Content: data}, nil
}

func (ReactionCodec) Decode(encoded *model.EncodedContent) (any, error) {
	var reaction Reaction
	if err := json.Unmarshal(encoded.Content, &reaction); err != nil {
		return nil, fmt.Errorf("reaction: %w", err)
	}
	return reaction, nil
}

func (ReactionCodec) Fallback(content any) (string, bool) {
	reaction, ok := content.(Reaction)
	if !ok {
		return "", false
	}
	switch reaction.Action {
	case "added":
		return fmt.Sprintf("Reacted %q to an earlier message", reaction.Content), true
	case "removed":
		return fmt.Sprintf("Removed %q from an earlier message", reaction.Content), true
	}
	return "", false
}
