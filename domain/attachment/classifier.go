// Package attachment decides how a message attachment is shown and which uploads are accepted.
package attachment

import (
	"net/url"
	"path"
	"strings"

	"support-chat/domain/chat"
)

type Kind string

const (
	KindNone     Kind = "none"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// GenericDocumentName is shown when no name can be derived from the URL.
const GenericDocumentName = "Document"

type Classification struct {
	Kind        Kind   `json:"kind"`
	URL         string `json:"url,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Classify never fails: anything that is not a well-formed image or document is KindNone.
func Classify(m chat.Message) Classification {
	if m.Deleted || !m.HasAttachment() {
		return Classification{Kind: KindNone}
	}
	switch m.Attachment.Type {
	case chat.AttachmentImage:
		return Classification{Kind: KindImage, URL: m.Attachment.URL}
	case chat.AttachmentRaw:
		return Classification{
			Kind:        KindDocument,
			URL:         m.Attachment.URL,
			DisplayName: DisplayName(m.Attachment.URL),
		}
	default:
		return Classification{Kind: KindNone}
	}
}

// DisplayName takes the last path segment of rawURL and drops the storage prefix, i.e.
// everything up to the last underscore.
func DisplayName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return GenericDocumentName
	}
	segment := path.Base(u.Path)
	if segment == "" || segment == "." || segment == "/" {
		return GenericDocumentName
	}
	if i := strings.LastIndex(segment, "_"); i >= 0 {
		segment = segment[i+1:]
	}
	if strings.TrimSpace(segment) == "" {
		return GenericDocumentName
	}
	return segment
}
