package attachment

import (
	"path/filepath"
	"strings"

	"support-chat/domain/chat"
	"support-chat/domain/mimetypes"
	"support-chat/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultMaxBytes bounds a single upload.
const DefaultMaxBytes int64 = 5 << 20

// Policy is enforced by the collaborator when a file is uploaded, never by the chat core.
type Policy struct {
	MaxBytes int64
	Accepted []mimetypes.MIME
}

func DefaultPolicy() Policy {
	return Policy{
		MaxBytes: DefaultMaxBytes,
		Accepted: []mimetypes.MIME{
			mimetypes.ImageJPEG,
			mimetypes.ImagePNG,
			mimetypes.ImageGIF,
			mimetypes.ImageWebP,
			mimetypes.ApplicationPDF,
		},
	}
}

type Inspection struct {
	MIME mimetypes.MIME
	Type chat.AttachmentType
	Size int64
}

// Inspect sniffs the content, the declared file extension plays no part.
func (p Policy) Inspect(data []byte) (Inspection, error) {
	size := int64(len(data))
	if size == 0 || (p.MaxBytes > 0 && size > p.MaxBytes) {
		return Inspection{}, errors.ErrAttachmentRejected
	}
	detected := mimetypes.Parse(mimetype.Detect(data).String())
	if !p.accepts(detected) {
		return Inspection{}, errors.ErrAttachmentRejected
	}
	kind := chat.AttachmentRaw
	if detected.IsImage() {
		kind = chat.AttachmentImage
	}
	return Inspection{MIME: detected, Type: kind, Size: size}, nil
}

func (p Policy) accepts(m mimetypes.MIME) bool {
	return lo.Contains(p.Accepted, m)
}

// StoredName prefixes the original name with a unique id. Underscores in the original are
// replaced so that DisplayName recovers the name in full.
func StoredName(original string) string {
	base := filepath.Base(strings.TrimSpace(original))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "file"
	}
	base = strings.NewReplacer("_", "-", " ", "-").Replace(base)
	return uuid.NewString() + "_" + base
}
