package yookassa

import "strings"

// LabelPrefix marks payment labels that carry a YooKassa payment id.
const LabelPrefix = "yk_"

// Label derives the payment label for a YooKassa payment id. Webhook and
// poll paths both go through here so they always collide on the same record.
func Label(paymentID string) string {
	return LabelPrefix + strings.TrimSpace(paymentID)
}

// PaymentID extracts the YooKassa payment id from a label.
func PaymentID(label string) (string, bool) {
	if !strings.HasPrefix(label, LabelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(label, LabelPrefix)
	return id, id != ""
}
