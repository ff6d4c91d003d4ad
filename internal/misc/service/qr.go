package service

import (
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/mdp/qrterminal/v3"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/yal42d-debug/dosya-paylas/internal/misc/model"
)

// qrSize is the PNG edge length in pixels
const qrSize = 256

// ErrEmptyText is returned when asked to encode nothing
var ErrEmptyText = errors.New("text is required")

// DataURL renders text as a PNG QR code data URL
func DataURL(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	png, err := qrcode.Encode(text, qrcode.Medium, qrSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// PrintTerminal draws text as a QR code with half blocks, for the startup banner
func PrintTerminal(w io.Writer, text string) {
	qrterminal.GenerateWithConfig(text, qrterminal.Config{
		Level:          qrterminal.M,
		Writer:         w,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
		QuietZone:      1,
	})
}

var wifiEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, `:`, `\:`, `"`, `\"`)

// WiFiPayload builds the WIFI: URI phones understand for joining a network
func WiFiPayload(info *model.NetworkInfo) string {
	var sb strings.Builder
	sb.WriteString("WIFI:T:")
	sb.WriteString(info.Security)
	sb.WriteString(";S:")
	sb.WriteString(wifiEscaper.Replace(info.SSID))
	sb.WriteString(";P:")
	if info.Security != SecurityNone {
		sb.WriteString(wifiEscaper.Replace(info.Password))
	}
	sb.WriteString(";;")
	return sb.String()
}
