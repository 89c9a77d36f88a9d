package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// ReceiptQR renders a PNG QR code the customer can show on delivery. It
// encodes the order id, the amount due and a link back to the order.
func ReceiptQR(baseURL, orderID string, total decimal.Decimal, size int) ([]byte, error) {
	content := fmt.Sprintf("ORDER:%s\nTOTAL:%s\n%s/orders/%s",
		orderID, total.StringFixed(2), strings.TrimRight(baseURL, "/"), orderID)

	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode receipt qr: %w", err)
	}
	return png, nil
}
