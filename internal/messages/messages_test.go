package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;Tom &amp; &#39;Jerry&#39;&lt;/b&gt;", Escape(" <b>Tom & 'Jerry'</b> "))
}

func TestPurchaseConfirmed_EscapesServer(t *testing.T) {
	until := time.Date(2026, 11, 18, 12, 0, 0, 0, time.Local)
	text := PurchaseConfirmed("<DE>", until)

	assert.Contains(t, text, "&lt;DE&gt;")
	assert.Contains(t, text, "18.11.2026 12:00")
}

func TestSubscriptionInfo(t *testing.T) {
	until := time.Date(2026, 11, 18, 12, 0, 0, 0, time.Local)

	text := SubscriptionInfo("<Al>", "🇩🇪 Германия", until)
	assert.Contains(t, text, "👤 &lt;Al&gt;")
	assert.Contains(t, text, "18.11.2026 12:00")

	assert.NotContains(t, SubscriptionInfo("", "🇩🇪 Германия", until), "👤")
}

func TestOrderDetails(t *testing.T) {
	text := OrderDetails("1 месяц", "🇩🇪 Германия", 150, "https://pay.example/?a=1&b=2")

	assert.Contains(t, text, "150 ₽")
	assert.Contains(t, text, "https://pay.example/?a=1&amp;b=2")
}
