package chat

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	applog "paybot/internal/log"
	"paybot/internal/period"
)

// Drill-down callback actions. Parameters are colon separated:
//
//	nav_month:Y  nav_day:Y:M  nav_sh:Y:M:D  nav_sm:Y:M:D:H
//	nav_eh:Y:M:D:H:MI  nav_em:Y:M:D:H:MI:EH
//	calc:Y:M:D:H:MI:EH:EMI  calc_now:Y:M:D:H:MI
const (
	dataNavYear  = "nav_year"
	dataNavMonth = "nav_month"
	dataNavDay   = "nav_day"
	dataNavSH    = "nav_sh"
	dataNavSM    = "nav_sm"
	dataNavEH    = "nav_eh"
	dataNavEM    = "nav_em"
	dataCalc     = "calc"
	dataCalcNow  = "calc_now"
)

// widths of each parameter position: year, month, day, then two-digit clock
// fields.
var paramWidths = []int{4, 2, 2, 2, 2, 2, 2}

func validParams(p []string, n int) bool {
	if len(p) != n || n > len(paramWidths) {
		return false
	}
	for i, s := range p {
		if len(s) != paramWidths[i] {
			return false
		}
		if _, err := strconv.Atoi(s); err != nil {
			return false
		}
	}
	return true
}

func cb(action string, params ...string) string {
	if len(params) == 0 {
		return action
	}
	return action + ":" + strings.Join(params, ":")
}

// navigate returns nil for unknown actions or malformed parameters.
func (h *Handler) navigate(ctx context.Context, c Conversation, action string, p []string) *Reply {
	arity := map[string]int{
		dataNavYear: 0, dataNavMonth: 1, dataNavDay: 2, dataNavSH: 3, dataNavSM: 4,
		dataNavEH: 5, dataNavEM: 6, dataCalc: 7, dataCalcNow: 5,
	}
	n, ok := arity[action]
	if !ok || !validParams(p, n) {
		return nil
	}

	switch action {
	case dataNavYear:
		return h.navYears(ctx, c)
	case dataNavMonth:
		return h.navMonths(ctx, c, p[0])
	case dataNavDay:
		return h.navDays(ctx, c, p[0], p[1])
	case dataNavSH:
		return h.navStartHours(ctx, c, p)
	case dataNavSM:
		return h.navStartMinutes(ctx, c, p)
	case dataNavEH:
		return h.navEndHours(ctx, c, p)
	case dataNavEM:
		return h.navEndMinutes(ctx, c, p)
	default:
		return h.calculate(ctx, c, action, p)
	}
}

func (h *Handler) labels(ctx context.Context, c Conversation, load func() ([]string, error)) ([]string, *Reply) {
	labels, err := load()
	if err != nil {
		return nil, h.fail(ctx, c, applog.OpNavigate, err)
	}
	return labels, nil
}

func (h *Handler) navYears(ctx context.Context, c Conversation) *Reply {
	years, failed := h.labels(ctx, c, func() ([]string, error) { return h.nav.DistinctYears(ctx, c.ChatID) })
	if failed != nil {
		return failed
	}
	if len(years) == 0 {
		return &Reply{Text: msgNoData, Keyboard: withClose([]Button{backButton}), Edit: true}
	}
	var rows [][]Button
	for _, y := range years {
		rows = append(rows, []Button{{Label: "Year " + y, Data: cb(dataNavMonth, y)}})
	}
	rows = append(rows, []Button{backButton})
	return &Reply{Text: "📅 *Choose a year:*", Keyboard: withClose(rows...), Edit: true}
}

func (h *Handler) navMonths(ctx context.Context, c Conversation, year string) *Reply {
	months, failed := h.labels(ctx, c, func() ([]string, error) { return h.nav.DistinctMonths(ctx, c.ChatID, year) })
	if failed != nil {
		return failed
	}
	buttons := make([]Button, 0, len(months))
	for _, m := range months {
		n, _ := strconv.Atoi(m)
		buttons = append(buttons, Button{Label: time.Month(n).String()[:3], Data: cb(dataNavDay, year, m)})
	}
	rows := append(grid(buttons, 4), []Button{{Label: "🔙 Back", Data: dataNavYear}})
	return &Reply{Text: fmt.Sprintf("🗓️ *%s - choose a month:*", year), Keyboard: withClose(rows...), Edit: true}
}

func (h *Handler) navDays(ctx context.Context, c Conversation, year, month string) *Reply {
	days, failed := h.labels(ctx, c, func() ([]string, error) { return h.nav.DistinctDays(ctx, c.ChatID, year, month) })
	if failed != nil {
		return failed
	}
	buttons := make([]Button, 0, len(days))
	for _, d := range days {
		buttons = append(buttons, Button{Label: d, Data: cb(dataNavSH, year, month, d)})
	}
	rows := append(grid(buttons, 5), []Button{{Label: "🔙 Back", Data: cb(dataNavMonth, year)}})
	return &Reply{Text: fmt.Sprintf("📅 *%s/%s - choose a day:*", month, year), Keyboard: withClose(rows...), Edit: true}
}

func date(p []string) string {
	return p[0] + "-" + p[1] + "-" + p[2]
}

func (h *Handler) navStartHours(ctx context.Context, c Conversation, p []string) *Reply {
	hours, failed := h.labels(ctx, c, func() ([]string, error) { return h.nav.DistinctHours(ctx, c.ChatID, date(p)) })
	if failed != nil {
		return failed
	}
	buttons := make([]Button, 0, len(hours))
	for _, hr := range hours {
		buttons = append(buttons, Button{Label: hr + ":XX", Data: cb(dataNavSM, append(slices.Clone(p), hr)...)})
	}
	rows := append(grid(buttons, 4), []Button{{Label: "🔙 Back", Data: cb(dataNavDay, p[0], p[1])}})
	return &Reply{
		Text:     fmt.Sprintf("⏰ *%s/%s/%s*\nChoose the *start hour*:", p[2], p[1], p[0]),
		Keyboard: withClose(rows...),
		Edit:     true,
	}
}

func (h *Handler) navStartMinutes(ctx context.Context, c Conversation, p []string) *Reply {
	mins, failed := h.labels(ctx, c, func() ([]string, error) { return h.nav.DistinctMinutes(ctx, c.ChatID, date(p), p[3]) })
	if failed != nil {
		return failed
	}
	buttons := make([]Button, 0, len(mins))
	for _, m := range mins {
		buttons = append(buttons, Button{Label: ":" + m, Data: cb(dataNavEH, append(slices.Clone(p), m)...)})
	}
	rows := append(grid(buttons, 4), []Button{{Label: "🔙 Back", Data: cb(dataNavSH, p[:3]...)}})
	return &Reply{
		Text:     fmt.Sprintf("⏰ *Hour %s:XX*\nChoose the *start minute*:", p[3]),
		Keyboard: withClose(rows...),
		Edit:     true,
	}
}

// navEndHours offers only hours at or after the start hour.
func (h *Handler) navEndHours(ctx context.Context, c Conversation, p []string) *Reply {
	hours, failed := h.labels(ctx, c, func() ([]string, error) { return h.nav.DistinctHours(ctx, c.ChatID, date(p)) })
	if failed != nil {
		return failed
	}
	buttons := make([]Button, 0, len(hours))
	for _, hr := range hours {
		if hr < p[3] {
			continue
		}
		buttons = append(buttons, Button{Label: hr + ":XX", Data: cb(dataNavEM, append(slices.Clone(p), hr)...)})
	}
	rows := append(grid(buttons, 4), []Button{{Label: "🔙 Back", Data: cb(dataNavSM, p[:4]...)}})
	return &Reply{
		Text:     fmt.Sprintf("🏁 *From %s:%s*\nChoose the *end hour*:", p[3], p[4]),
		Keyboard: withClose(rows...),
		Edit:     true,
	}
}

// navEndMinutes offers minutes of the end hour; within the start hour only
// minutes at or after the start minute.
func (h *Handler) navEndMinutes(ctx context.Context, c Conversation, p []string) *Reply {
	mins, failed := h.labels(ctx, c, func() ([]string, error) { return h.nav.DistinctMinutes(ctx, c.ChatID, date(p), p[5]) })
	if failed != nil {
		return failed
	}
	buttons := make([]Button, 0, len(mins))
	for _, m := range mins {
		if p[5] == p[3] && m < p[4] {
			continue
		}
		buttons = append(buttons, Button{Label: ":" + m, Data: cb(dataCalc, append(slices.Clone(p), m)...)})
	}
	rows := [][]Button{{{Label: "⚡ Until now", Data: cb(dataCalcNow, p[:5]...)}}}
	rows = append(rows, grid(buttons, 4)...)
	rows = append(rows, []Button{{Label: "🔙 Back", Data: cb(dataNavEH, p[:5]...)}})
	return &Reply{
		Text:     fmt.Sprintf("🏁 *Until %s:XX*\nChoose the *end minute*:", p[5]),
		Keyboard: withClose(rows...),
		Edit:     true,
	}
}

func (h *Handler) calculate(ctx context.Context, c Conversation, action string, p []string) *Reply {
	pick, err := period.NewPick(p[0], p[1], p[2], p[3], p[4])
	if err != nil {
		return nil
	}

	var (
		iv       period.Interval
		endLabel string
	)
	if action == dataCalcNow {
		iv, err = h.resolver.ThroughNow(pick)
		endLabel = "now"
	} else {
		eh, _ := strconv.Atoi(p[5])
		em, _ := strconv.Atoi(p[6])
		iv, err = h.resolver.Until(pick, eh, em)
		endLabel = p[5] + ":" + p[6]
	}
	if err != nil {
		return &Reply{Text: msgOrder, Keyboard: withClose([]Button{{Label: "🔄 Search again", Data: dataNavYear}}), Edit: true}
	}

	heading := fmt.Sprintf("🔍 *Search result (%s-%s-%s)*\n🕒 From `%s:%s` to `%s`\n-----------------------------",
		p[2], p[1], p[0], p[3], p[4], endLabel)
	return h.summarize(ctx, c, iv, heading, "drilldown", true, []Button{
		{Label: "🔄 Search again", Data: dataNavYear},
		{Label: "🏠 Main menu", Data: dataMenu},
	})
}
