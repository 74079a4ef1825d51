package pricing

import (
	"strconv"
	"strings"
)

type Plan struct {
	ID     string
	Title  string
	Amount int64
	Days   int
}

type Server struct {
	ID    string
	Title string
}

var plans = []Plan{
	{ID: "1month", Title: "1 месяц", Amount: 150, Days: 30},
	{ID: "3month", Title: "3 месяца", Amount: 430, Days: 90},
	{ID: "6month", Title: "6 месяцев", Amount: 850, Days: 180},
}

var servers = []Server{
	{ID: "germany", Title: "🇩🇪 Германия"},
}

const (
	PlanCallbackPrefix   = "sub_"
	ServerCallbackPrefix = "server_"
)

func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

func Servers() []Server {
	out := make([]Server, len(servers))
	copy(out, servers)
	return out
}

func PlanByID(id string) (Plan, bool) {
	id = strings.TrimSpace(id)
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

func ServerByID(id string) (Server, bool) {
	id = strings.TrimSpace(id)
	for _, s := range servers {
		if s.ID == id {
			return s, true
		}
	}
	return Server{}, false
}

// ServerTitle returns the display name for a server id, or the id itself.
func ServerTitle(id string) string {
	if s, ok := ServerByID(id); ok {
		return s.Title
	}
	return id
}

func (p Plan) Label() string {
	return p.Title + " — " + formatRub(p.Amount)
}

func (p Plan) CallbackData() string {
	return PlanCallbackPrefix + p.ID
}

func (s Server) CallbackData() string {
	return ServerCallbackPrefix + s.ID
}

func PlanFromCallback(data string) (Plan, bool) {
	if !strings.HasPrefix(data, PlanCallbackPrefix) {
		return Plan{}, false
	}
	return PlanByID(strings.TrimPrefix(data, PlanCallbackPrefix))
}

func ServerFromCallback(data string) (Server, bool) {
	if !strings.HasPrefix(data, ServerCallbackPrefix) {
		return Server{}, false
	}
	return ServerByID(strings.TrimPrefix(data, ServerCallbackPrefix))
}

func formatRub(v int64) string {
	return strconv.FormatInt(v, 10) + " ₽"
}
