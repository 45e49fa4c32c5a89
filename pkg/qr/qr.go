// Package qr renders attendance codes as scannable PNG images.
package qr

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	maxSize     = 1024
)

// PNG encodes payload as a QR code of size x size pixels with medium error
// correction, which keeps codes readable from the back of a lecture hall.
func PNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("qr: empty payload")
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}
