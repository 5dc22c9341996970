package qr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/evently/ticketing/internal/entity"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 300

// Generator turns verification payloads into QR PNG files. Files are written
// to a temp directory and handed to the media store by the caller; cleanup of
// the temp file is the caller's job on success and failure alike.
type Generator struct {
	tempDir string
}

func NewGenerator(tempDir string) *Generator {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Generator{tempDir: tempDir}
}

// EncodePayload renders the payload's JSON encoding into a QR PNG temp file
// and returns its path.
func (g *Generator) EncodePayload(payload *entity.VerificationPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode verification payload: %w", err)
	}

	path := filepath.Join(g.tempDir, fmt.Sprintf("ticket-qr-%s-%d.png", payload.TicketID, time.Now().UnixNano()))
	if err := qrcode.WriteFile(string(data), qrcode.Medium, imageSize, path); err != nil {
		return "", fmt.Errorf("failed to write QR image: %w", err)
	}

	return path, nil
}

// DecodePayload parses the JSON a scanner posts back at check-in.
func DecodePayload(data []byte) (*entity.VerificationPayload, error) {
	var payload entity.VerificationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode verification payload: %w", err)
	}
	if payload.TicketID == "" || payload.EventID == "" || payload.AttendeeID == "" {
		return nil, entity.ErrInvalidInput
	}
	return &payload, nil
}
