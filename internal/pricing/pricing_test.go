package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanFromCallback(t *testing.T) {
	p, ok := PlanFromCallback("sub_3month")
	assert.True(t, ok)
	assert.Equal(t, int64(430), p.Amount)
	assert.Equal(t, 90, p.Days)
	assert.Equal(t, "3 месяца — 430 ₽", p.Label())

	_, ok = PlanFromCallback("sub_12month")
	assert.False(t, ok)
	_, ok = PlanFromCallback("server_germany")
	assert.False(t, ok)
}

func TestServerFromCallback(t *testing.T) {
	s, ok := ServerFromCallback("server_germany")
	assert.True(t, ok)
	assert.Equal(t, "🇩🇪 Германия", s.Title)
	assert.Equal(t, "server_germany", s.CallbackData())
}

func TestServerTitle_FallsBackToID(t *testing.T) {
	assert.Equal(t, "🇩🇪 Германия", ServerTitle("germany"))
	assert.Equal(t, "DE", ServerTitle("DE"))
}

func TestPlans_ReturnsCopy(t *testing.T) {
	ps := Plans()
	ps[0].Amount = 1
	p, _ := PlanByID("1month")
	assert.Equal(t, int64(150), p.Amount)
}
