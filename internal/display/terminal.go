// Package display renders the merged timeline and cycle outcomes for the
// terminal.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ppiankov/onefeed/internal/timeline"
)

const contentWidth = 100

// TerminalFormatter formats timeline entries for terminal output.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

// FormatEntries writes the feed to w, newest first, with an unread banner.
func (f *TerminalFormatter) FormatEntries(w io.Writer, entries []timeline.Entry, unread int) error {
	header := fmt.Sprintf("onefeed — %d posts", len(entries))
	if unread > 0 {
		header += fmt.Sprintf(", %d unread", unread)
	}
	fmt.Fprintln(w, f.bold(header))
	fmt.Fprintln(w)

	if len(entries) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}

	for _, entry := range entries {
		f.writeEntry(w, entry)
	}
	return nil
}

// FormatOutcome writes a one-line cycle summary plus per-account problems.
func (f *TerminalFormatter) FormatOutcome(w io.Writer, out timeline.Outcome) {
	switch out.Status {
	case timeline.StatusSuccess:
		fmt.Fprintln(w, f.green(fmt.Sprintf("Refreshed %d accounts.", len(out.Reports))))
	case timeline.StatusPartial:
		fmt.Fprintln(w, f.yellow(fmt.Sprintf("Some accounts did not update (%d of %d ok).",
			len(out.Succeeded()), len(out.Reports))))
	case timeline.StatusFailure:
		fmt.Fprintln(w, f.red("Refresh failed for every account; showing the last good feed."))
	}

	for _, r := range out.Failed() {
		line := fmt.Sprintf("  %s (%s): %s", r.AccountID, r.Platform, describeStatus(r))
		fmt.Fprintln(w, f.dim(line))
	}
}

func describeStatus(r timeline.AccountReport) string {
	switch r.Status {
	case timeline.AccountAuthFailed:
		return "authentication failed — re-authorize this account"
	case timeline.AccountRateLimited:
		if r.RetryAfter > 0 {
			return fmt.Sprintf("rate limited — retry in %s", r.RetryAfter)
		}
		return "rate limited"
	default:
		return "network problem — will retry"
	}
}

func (f *TerminalFormatter) writeEntry(w io.Writer, entry timeline.Entry) {
	post := entry.Post.Subject()

	author := post.Author.Handle
	if post.Author.DisplayName != "" {
		author = fmt.Sprintf("%s (@%s)", post.Author.DisplayName, post.Author.Handle)
	}

	when := humanize.Time(entry.CreatedAt)

	switch entry.Kind {
	case timeline.KindBoost:
		fmt.Fprintf(w, "%s %s\n", f.dim(fmt.Sprintf("↻ @%s boosted", entry.BoostedBy)), f.dim(when))
		fmt.Fprintf(w, "%s\n", f.bold(author))
	case timeline.KindReply:
		fmt.Fprintf(w, "%s %s %s\n", f.bold(author), f.dim("↩ replied"), f.dim(when))
	default:
		fmt.Fprintf(w, "%s %s\n", f.bold(author), f.dim(when))
	}

	for _, line := range wrap(post.Content, contentWidth) {
		fmt.Fprintf(w, "  %s\n", line)
	}

	meta := fmt.Sprintf("♥ %d  ↻ %d  💬 %d", post.Counts.Likes, post.Counts.Reposts, post.Counts.Replies)
	if len(post.Media) > 0 {
		meta += fmt.Sprintf("  [%d attachments]", len(post.Media))
	}
	fmt.Fprintf(w, "  %s\n", f.dim(meta))
	if post.URL != "" {
		fmt.Fprintf(w, "  %s\n", f.dim(post.URL))
	}
	fmt.Fprintln(w)
}

// wrap splits text into lines no wider than width, breaking on spaces.
func wrap(text string, width int) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		line := ""
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (f *TerminalFormatter) bold(s string) string {
	if !f.color {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func (f *TerminalFormatter) dim(s string) string {
	if !f.color {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}

func (f *TerminalFormatter) green(s string) string {
	if !f.color {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func (f *TerminalFormatter) yellow(s string) string {
	if !f.color {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

func (f *TerminalFormatter) red(s string) string {
	if !f.color {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}
