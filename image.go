package imagestudio

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// UploadedImage is a user-selected file encoded for transport. Payload holds
// standard base64 without any data-URI header.
type UploadedImage struct {
	FileName string
	Payload  string
	MIMEType string
	Size     int
}

// EncodeImage reads r fully and encodes it. mimeType is recorded as declared;
// neither size nor type is validated here. A nil reader means no file was
// chosen.
func EncodeImage(r io.Reader, name, mimeType string) (UploadedImage, error) {
	if r == nil {
		return UploadedImage{}, ErrNoFileChosen
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return UploadedImage{}, imageLoadError(err)
	}
	return UploadedImage{
		FileName: name,
		Payload:  StripDataURIHeader(base64.StdEncoding.EncodeToString(data)),
		MIMEType: mimeType,
		Size:     len(data),
	}, nil
}

// EncodeFile opens path and encodes it, declaring the media type from the
// file extension.
func EncodeFile(path string) (UploadedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadedImage{}, imageLoadError(err)
	}
	defer f.Close()

	return EncodeImage(f, filepath.Base(path), MIMETypeFromName(path))
}

// InputImage decodes the payload into raw bytes for a service request.
func (u UploadedImage) InputImage() (InputImage, error) {
	data, err := base64.StdEncoding.DecodeString(u.Payload)
	if err != nil {
		return InputImage{}, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return InputImage{Data: data, MIMEType: u.MIMEType}, nil
}

// MIMETypeFromName returns the media type implied by a file extension.
// Unknown extensions yield an empty string.
func MIMETypeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return ""
	}
}

// StripDataURIHeader drops a leading "data:<type>;base64," header if present.
func StripDataURIHeader(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}

// DataURI builds a displayable data URI from raw bytes.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits a base64 data URI into its media type and bytes.
func ParseDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return "", nil, fmt.Errorf("data URI has no payload")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return mimeType, data, nil
}
