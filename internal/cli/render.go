package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aretw0/companion/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Renderer writes markdown to a terminal, or plain text elsewhere.
type Renderer struct {
	out      io.Writer
	markdown *glamour.TermRenderer
	profile  termenv.Profile
}

// NewRenderer styles output only when out is a terminal.
func NewRenderer(out io.Writer) *Renderer {
	r := &Renderer{out: out, profile: termenv.Ascii}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.profile = termenv.ColorProfile()
		// Plain output is still readable if glamour cannot start.
		r.markdown, _ = glamour.NewTermRenderer(glamour.WithAutoStyle())
	}
	return r
}

// Markdown prints md, styled when possible.
func (r *Renderer) Markdown(md string) error {
	if r.markdown != nil {
		styled, err := r.markdown.Render(md)
		if err == nil {
			_, err = io.WriteString(r.out, styled)
			return err
		}
	}
	_, err := io.WriteString(r.out, md)
	return err
}

// Banner prints the program name, colored on capable terminals.
func (r *Renderer) Banner(version string) {
	name := r.profile.String(" companion ").Bold().Foreground(r.profile.Color("#c084fc"))
	ver := r.profile.String(version).Faint()
	fmt.Fprintf(r.out, "\n%s %s\n\n", name, ver)
}

// ConversationMarkdown renders the entries of c, oldest first.
func ConversationMarkdown(c domain.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation %s\n\n", c.ID)
	if c.IsEmpty() {
		b.WriteString("_No entries yet._\n")
		return b.String()
	}
	for _, e := range c.Entries {
		b.WriteString(EntryMarkdown(e))
		b.WriteString("\n")
	}
	return b.String()
}

// EntryMarkdown renders one query and its response.
func EntryMarkdown(e domain.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(e.Query, "\n", "\n> "))

	resp := e.Response
	switch {
	case resp.Kind == domain.ResponseFailure:
		b.WriteString("**Something went wrong.**\n")
	case resp.IsOngoing():
		b.WriteString("_Thinking..._\n")
	case resp.Status == domain.StatusFailed:
		fmt.Fprintf(&b, "**Unreadable response:** %v\n", resp.Err)
	case resp.Kind == domain.ResponseText:
		b.WriteString(resp.Text)
		b.WriteString("\n")
	case resp.Kind == domain.ResponseImages && resp.Image != nil:
		fmt.Fprintf(&b, "_Image: %dx%d %s, %d bytes_\n",
			resp.Image.Width, resp.Image.Height, resp.Image.MIMEType, len(resp.Image.Data))
	}
	return b.String()
}

// HistoryMarkdown lists conversations, newest first, with favorites marked.
func HistoryMarkdown(state domain.AppState) string {
	var b strings.Builder
	b.WriteString("# History\n\n")
	b.WriteString("| | Conversation | Entries | First query | Modified |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for i := len(state.Conversations) - 1; i >= 0; i-- {
		c := state.Conversations[i]
		star := ""
		if c.Favorite {
			star = "★"
		}
		first := ""
		if !c.IsEmpty() {
			first = truncate(c.Entries[0].Query, 40)
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s |\n",
			star, c.ID, len(c.Entries), escapeCell(first), c.ModifiedAt.Format(time.DateTime))
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
