package helpers

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gabriel-vasile/mimetype"
)

const WishesFolder = "wishes"

// AllowedImageTypes lists the content types accepted for inline wish images.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

type InlineImage struct {
	Data     []byte
	MIME     string
	Filename string
}

// DataURI re-encodes the image in the form the upload API accepts.
func (img *InlineImage) DataURI() string {
	return "data:" + img.MIME + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// DecodeInlineImage decodes a base64 payload (optionally a data URL), enforces
// maxBytes on the decoded size and sniffs the real content type. The declared
// type from the template is never trusted.
func DecodeInlineImage(encoded, filename string, maxBytes int) (*InlineImage, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("image data is empty")
	}
	if strings.HasPrefix(encoded, "data:") {
		idx := strings.Index(encoded, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		encoded = encoded[idx+1:]
	}

	// Reject before decoding when the encoded form is already too large.
	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(encoded)) > maxBytes+3 {
		return nil, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("image data is not valid base64: %v", err)
		}
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}

	detected := mimetype.Detect(data)
	for _, allowed := range AllowedImageTypes {
		if detected.Is(allowed) {
			return &InlineImage{Data: data, MIME: allowed, Filename: filename}, nil
		}
	}
	return nil, fmt.Errorf("image type %s is not allowed", detected.String())
}

type ImageStore interface {
	// Upload stores the image under folder and returns its public URL and storage id.
	Upload(ctx context.Context, folder string, img *InlineImage) (url string, publicID string, err error)
	Delete(ctx context.Context, publicID string) error
}

type CloudinaryImageStore struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryImageStore(cld *cloudinary.Cloudinary) *CloudinaryImageStore {
	return &CloudinaryImageStore{cld: cld}
}

func (s *CloudinaryImageStore) Upload(ctx context.Context, folder string, img *InlineImage) (string, string, error) {
	result, err := s.cld.Upload.Upload(ctx, img.DataURI(), uploader.UploadParams{
		Folder: folder,
		Tags:   []string{"wish-image"},
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload image %s: %v", img.Filename, err)
	}
	if result.Error.Message != "" {
		return "", "", fmt.Errorf("failed to upload image %s: %s", img.Filename, result.Error.Message)
	}
	return result.SecureURL, result.PublicID, nil
}

func (s *CloudinaryImageStore) Delete(ctx context.Context, publicID string) error {
	if _, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("failed to delete image %s: %v", publicID, err)
	}
	return nil
}
