package chat

const (
	DeletedPlaceholder    = "This message was deleted"
	AttachmentPlaceholder = "Attachment"
)

type ReplyPreview struct {
	MessageID  MessageID `json:"messageId"`
	SenderID   string    `json:"senderId"`
	SenderRole Role      `json:"senderRole"`
	Text       string    `json:"text"`
	Deleted    bool      `json:"deleted"`
}

// ResolveReplyPreview decides what a reply shows about its target. The second result is
// false when the message is not a reply.
func ResolveReplyPreview(snapshot *ReplySnapshot) (ReplyPreview, bool) {
	if snapshot == nil {
		return ReplyPreview{}, false
	}
	preview := ReplyPreview{
		MessageID:  snapshot.ID,
		SenderID:   snapshot.SenderID,
		SenderRole: snapshot.SenderRole,
		Deleted:    snapshot.Deleted,
	}
	switch {
	case snapshot.Deleted:
		preview.Text = DeletedPlaceholder
	case snapshot.Content == nil || Blank(*snapshot.Content):
		preview.Text = AttachmentPlaceholder
	default:
		preview.Text = *snapshot.Content
	}
	return preview, true
}
