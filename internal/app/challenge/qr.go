package challenge

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// QRCodePNG renders an encoded challenge as a PNG QR code.
func QRCodePNG(encoded string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(encoded, qrcode.Medium, size)
}

func QRCodePNGBase64(encoded string) (string, error) {
	png, err := QRCodePNG(encoded, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
