package model

// NetworkInfo is the Wi-Fi network visitors should join to reach the server
type NetworkInfo struct {
	SSID     string `json:"ssid" yaml:"ssid"`
	Password string `json:"password" yaml:"password"`
	// Security is WPA, WEP or nopass
	Security string `json:"security" yaml:"security"`
	// QRCode is a PNG data URL joining the network, set in responses only
	QRCode string `json:"qrCode,omitempty" yaml:"-"`
}

// QRParams is the body of POST /qr
type QRParams struct {
	Text string `json:"text"`
}

// QRResult carries a PNG data URL
type QRResult struct {
	QRCode string `json:"qrCode"`
}
