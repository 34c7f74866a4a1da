package imagefetch

import (
	"bytes"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/h2non/filetype"

	"github.com/flatplan/flatplan.go/pkg/constants"
)

// Sniff detects the MIME type of data. SVG is recognised by its markup since
// it has no magic number. It returns "" when the type is unknown.
func Sniff(name string, data []byte) string {
	kind, err := filetype.Match(data)
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if isSVG(name, data) {
		return "image/svg+xml"
	}
	return ""
}

func isSVG(name string, data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = bytes.TrimSpace(head)
	if bytes.Contains(head, []byte("<svg")) {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ".svg") && bytes.HasPrefix(head, []byte("<?xml"))
}

// Validate checks an uploaded image: it must be an image, of an allowed type,
// and no larger than the size limit.
func Validate(name string, data []byte) error {
	mime := Sniff(name, data)
	if !strings.HasPrefix(mime, "image/") {
		return fmt.Errorf("%w: File must be an image", constants.ErrInvalidImage)
	}
	if !slices.Contains(constants.AllowedImageTypes, mime) {
		return fmt.Errorf("%w: %s", constants.ErrInvalidImage, allowedMessage())
	}
	if len(data) > constants.MaxImageSize {
		return fmt.Errorf("%w: Image must be less than %dMB", constants.ErrImageTooLarge, constants.MaxImageSize/(1024*1024))
	}
	return nil
}

func allowedMessage() string {
	names := make([]string, len(constants.AllowedImageTypes))
	for i, t := range constants.AllowedImageTypes {
		_, sub, _ := strings.Cut(t, "/")
		names[i] = sub
	}
	return "Only " + strings.Join(names, ", ") + " images are allowed"
}
