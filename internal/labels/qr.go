package labels

import (
	"fmt"
	"strings"

	"ms-liveshop/internal/models"

	"github.com/skip2/go-qrcode"
)

// QRGenerator renders the checkout-link QR that goes onto a printed bag
// label. The label itself (layout, reprint workflow) is produced by an
// external printing collaborator; the engine only supplies the code.
type QRGenerator struct {
	checkoutBaseURL string
}

func NewQRGenerator(checkoutBaseURL string) *QRGenerator {
	return &QRGenerator{checkoutBaseURL: strings.TrimRight(checkoutBaseURL, "/")}
}

// CheckoutURL builds the customer-facing link for a cart's public token.
func (q *QRGenerator) CheckoutURL(cart *models.LiveCart) string {
	return fmt.Sprintf("%s/sacola/%s", q.checkoutBaseURL, cart.PublicToken)
}

// GenerateLabelQR encodes the cart's checkout link as a PNG.
func (q *QRGenerator) GenerateLabelQR(cart *models.LiveCart) ([]byte, error) {
	if cart.PublicToken == "" {
		return nil, fmt.Errorf("cart %s has no public token", cart.ID)
	}
	return qrcode.Encode(q.CheckoutURL(cart), qrcode.Medium, 256)
}
