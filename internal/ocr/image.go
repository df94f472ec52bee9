package ocr

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/option"
)

// MaxImageSizeBytes is the maximum image size accepted for synchronous processing (20MB).
const MaxImageSizeBytes = 20 * 1024 * 1024

var supportedMIMETypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/bmp":       true,
	"image/webp":      true,
	"image/tiff":      true,
	"application/pdf": true,
}

// loadImage reads the image at path and validates its size and format. It
// returns the bytes and the detected MIME type.
func loadImage(path string) ([]byte, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrImageNotFound, path)
		}
		return nil, "", err
	}
	if info.Size() > MaxImageSizeBytes {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrImageTooLarge, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}

	mimeType := detectMIMEType(data)
	if !supportedMIMETypes[mimeType] {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}
	return data, mimeType, nil
}

// detectMIMEType sniffs the content type. TIFF is not recognised by the
// standard sniffer, so its magic numbers are checked first.
func detectMIMEType(data []byte) string {
	if len(data) >= 4 {
		head := string(data[:4])
		if head == "II*\x00" || head == "MM\x00*" {
			return "image/tiff"
		}
	}
	mimeType := http.DetectContentType(data)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return mimeType
}

// googleClientOptions resolves credentials the same way for every Google
// client: inline JSON first, then a credentials file, then application
// default credentials.
func googleClientOptions() ([]option.ClientOption, string) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}, "GOOGLE_CREDENTIALS"
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}, "GOOGLE_APPLICATION_CREDENTIALS"
	}
	return nil, ""
}
