package web

// fragments.go renders the HTML fragments served to HTMX clients: the error
// alert and the notification list.

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/RecordGrid/internal/core"
)

// errorAlert renders a user message as an alert box.
func errorAlert(msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert"><p class="alert-message">%s</p><p class="alert-action">%s</p><p class="alert-code">Code: %s</p></div>`,
			templ.EscapeString(msg.Message),
			templ.EscapeString(msg.Action),
			templ.EscapeString(msg.Code),
		)
		return err
	})
}

// noticeList renders drained notifications, oldest first.
func noticeList(notices []core.Notice) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<ul class="notices">`); err != nil {
			return err
		}
		for _, n := range notices {
			_, err := fmt.Fprintf(w, `<li class="notice notice-%s"><time datetime="%s">%s</time> %s</li>`,
				templ.EscapeString(string(n.Kind)),
				n.At.UTC().Format("2006-01-02T15:04:05Z07:00"),
				n.At.Format("15:04:05"),
				templ.EscapeString(n.Message),
			)
			if err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</ul>`)
		return err
	})
}
