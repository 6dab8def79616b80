// Package chat implements the bot conversation independently of the chat
// platform: commands, menu callbacks, the period wizard and the drill-down
// search. Every entry point returns a Reply for the transport to render.
package chat

// Button is one inline keyboard button. Data is echoed back as callback data.
type Button struct {
	Label string
	Data  string
}

// Reply is a transport-neutral answer. Edit replaces the message that owns
// the pressed button; Delete removes it. Text is Markdown.
type Reply struct {
	Text     string
	Keyboard [][]Button
	Edit     bool
	Delete   bool
}

// Conversation identifies where an event came from.
type Conversation struct {
	ChatID    int64
	UserID    int64
	ChatTitle string
}

const closeData = "close"

var closeButton = Button{Label: "🗑️ Close", Data: closeData}

// withClose appends the close row every reply carries.
func withClose(rows ...[]Button) [][]Button {
	out := make([][]Button, 0, len(rows)+1)
	for _, r := range rows {
		if len(r) > 0 {
			out = append(out, r)
		}
	}
	return append(out, []Button{closeButton})
}

// grid lays buttons out in rows of width.
func grid(buttons []Button, width int) [][]Button {
	var rows [][]Button
	for len(buttons) > width {
		rows = append(rows, buttons[:width])
		buttons = buttons[width:]
	}
	if len(buttons) > 0 {
		rows = append(rows, buttons)
	}
	return rows
}
