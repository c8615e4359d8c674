package mimetypes

import (
	"mime"
	"strings"
)

type MIME string

const (
	Unknown MIME = "unknown"

	ApplicationPDF MIME = "application/pdf"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWebP MIME = "image/webp"
)

// Parse strips parameters such as charset from a detected media type.
func Parse(detected string) MIME {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown
	}
	return MIME(mt)
}

func Matches(detected string, expected MIME) (MIME, bool) {
	mt := Parse(detected)
	if mt == Unknown {
		return Unknown, false
	}
	return expected, mt == expected
}

func (m MIME) IsImage() bool {
	return strings.HasPrefix(string(m), "image/")
}
