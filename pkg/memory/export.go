package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Export formats understood by History.Export.
const (
	FormatJSON     = "json"
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// ErrUnknownFormat is returned for export formats Export does not know.
var ErrUnknownFormat = errors.New("memory: unknown export format")

// exportFile is the JSON export layout. It carries more context than
// the on-disk history file since exports travel outside the appliance.
type exportFile struct {
	SessionID  string    `json:"session_id"`
	ExportedAt time.Time `json:"exported_at"`
	Stats      Stats     `json:"stats"`
	Turns      []Turn    `json:"turns"`
}

// Export renders the conversation in the requested format.
func (h *History) Export(format string) (string, error) {
	switch format {
	case FormatJSON:
		return h.exportJSON()
	case FormatText:
		return h.exportText(), nil
	case FormatMarkdown:
		return h.exportMarkdown(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func (h *History) exportJSON() (string, error) {
	file := exportFile{
		SessionID:  h.SessionID(),
		ExportedAt: time.Now(),
		Stats:      h.Stats(),
		Turns:      h.Turns(),
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (h *History) exportText() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Conversation session %s\n", h.SessionID())
	fmt.Fprintf(&b, "Exported %s\n", time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n\n")

	for _, turn := range h.Turns() {
		fmt.Fprintf(&b, "[%s] %s: %s\n",
			turn.Timestamp.Format("15:04:05"),
			titleRole(turn.Role),
			turn.Text,
		)
	}
	return b.String()
}

func (h *History) exportMarkdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Conversation session %s\n\n", h.SessionID())
	fmt.Fprintf(&b, "**Exported:** %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	var currentDay string
	for _, turn := range h.Turns() {
		day := turn.Timestamp.Format("2006-01-02")
		if day != currentDay {
			currentDay = day
			fmt.Fprintf(&b, "## %s\n\n", day)
		}

		fmt.Fprintf(&b, "**%s %s**\n\n%s\n\n",
			turn.Timestamp.Format("15:04:05"),
			titleRole(turn.Role),
			turn.Text,
		)
	}
	return b.String()
}

func titleRole(role string) string {
	switch role {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return role
	}
}
