// Package guard performs pre-write structural and content-integrity
// validation. Nothing that fails here ever reaches the post store; every
// rejection is models.ErrInvalidInput.
package guard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mitchellh/mapstructure"

	"github.com/driftline/driftline/pkg/models"
)

// AttachmentDigestHeader declares the expected content digest of an
// attachment, as a SHA-256 hex string.
const AttachmentDigestHeader = "Attachment-Digest"

// SchemaValidator returns a validity verdict for a payload against the
// schema registered for its post type. A false verdict is a hard rejection.
type SchemaValidator interface {
	Validate(postType string, payload map[string]interface{}) bool
}

// Attachment is one inbound attachment: its declared headers and the byte
// stream. Blob storage is out of scope here; only the declared digest is
// verified.
type Attachment struct {
	Headers map[string]string
	Body    io.Reader
}

// Guard validates inbound post payloads and attachments.
type Guard struct {
	schemas SchemaValidator
}

// New returns a guard using the given schema validator. A nil validator
// skips schema verdicts.
func New(schemas SchemaValidator) *Guard {
	return &Guard{schemas: schemas}
}

// ValidatePost checks the structural rules on a raw post payload:
//
//   - "type" is required,
//   - "content", when present, must be a structured map (not a scalar or an
//     array),
//   - the schema validator's verdict must not be false.
func (g *Guard) ValidatePost(data map[string]interface{}) error {
	if content, ok := data["content"]; ok {
		if _, isMap := content.(map[string]interface{}); !isMap {
			return fmt.Errorf("%w: content must be a structured map", models.ErrInvalidInput)
		}
	}

	postType, ok := data["type"].(string)
	if !ok || postType == "" {
		return fmt.Errorf("%w: type is required", models.ErrInvalidInput)
	}

	if g.schemas != nil && !g.schemas.Validate(postType, data) {
		return fmt.Errorf("%w: payload failed schema validation for type %q",
			models.ErrInvalidInput, postType)
	}

	return nil
}

// ValidateAttachments verifies the declared digest of each attachment
// against the SHA-256 of its byte stream. Attachments without a digest
// header pass through unchecked.
func (g *Guard) ValidateAttachments(attachments []Attachment) error {
	for i, attachment := range attachments {
		declared, ok := attachment.Headers[AttachmentDigestHeader]
		if !ok {
			continue
		}

		h := sha256.New()
		if _, err := io.Copy(h, attachment.Body); err != nil {
			return fmt.Errorf("error hashing attachment %d: %w", i, err)
		}
		actual := hex.EncodeToString(h.Sum(nil))

		if actual != declared {
			return fmt.Errorf("%w: attachment %d digest mismatch", models.ErrInvalidInput, i)
		}
	}
	return nil
}

// DecodePost turns a validated raw payload into typed post data. The
// published_at value accepts an epoch number or any parseable timestamp
// string; the millisecond-epoch correction itself happens at create time.
func (g *Guard) DecodePost(data map[string]interface{}) (*models.PostData, error) {
	var out models.PostData
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &out,
	})
	if err != nil {
		return nil, fmt.Errorf("error building payload decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	publishedAt, err := parsePublishedAt(data["published_at"])
	if err != nil {
		return nil, err
	}
	out.PublishedAt = publishedAt

	return &out, nil
}

// parsePublishedAt accepts numeric epochs and free-form timestamp strings.
func parsePublishedAt(value interface{}) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case float64:
		t := time.Unix(int64(v), 0)
		return &t, nil
	case int64:
		t := time.Unix(v, 0)
		return &t, nil
	case int:
		t := time.Unix(int64(v), 0)
		return &t, nil
	case string:
		t, err := dateparse.ParseAny(v)
		if err != nil {
			return nil, fmt.Errorf("%w: published_at: %v", models.ErrInvalidInput, err)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("%w: published_at has unsupported type %T",
			models.ErrInvalidInput, value)
	}
}
