package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"audioscribe/capture"
	"audioscribe/history"
	"audioscribe/session"
)

const dateLayout = "Jan 2, 2006 15:04"

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return MutedStyle.Render("Goodbye!\n")
	}

	snap := m.session.Snapshot()

	var b strings.Builder
	b.WriteString(GetHeader())
	b.WriteString("\n")

	switch snap.View {
	case session.ViewInput:
		b.WriteString(m.renderInput())
		b.WriteString(m.renderHistory(m.mode == ModeHistory))
	case session.ViewLoading:
		b.WriteString(m.renderLoading(snap))
	case session.ViewResult:
		b.WriteString(m.renderResult(snap))
		b.WriteString(m.renderHistory(true))
	case session.ViewError:
		b.WriteString(m.renderError(snap))
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp(snap.View))
	return b.String()
}

// renderTabs renders the input mode tabs
func (m Model) renderTabs() string {
	var tabs []string
	for _, mode := range []Mode{ModeFile, ModeRecord, ModeHistory} {
		style := TabStyle
		if mode == m.mode {
			style = ActiveTabStyle
		}
		tabs = append(tabs, style.Render(mode.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderInput() string {
	var body string
	switch m.mode {
	case ModeFile:
		body = m.renderFilePicker()
	case ModeRecord:
		body = m.renderRecorder()
	case ModeHistory:
		body = TitleStyle.Render("Open a previous transcription") + "\n" +
			MutedStyle.Render("Use up/down and enter in the list below.")
	}
	if m.inputErr != "" {
		body += "\n\n" + ErrorStyle.Render(m.inputErr)
	}
	return m.renderTabs() + "\n" + BoxStyle.Render(body)
}

func (m Model) renderFilePicker() string {
	title := TitleStyle.Render("Select an audio file")
	desc := MutedStyle.Render("MP3, WAV, OGG or MP4, up to 10MB")

	if m.loadingFile != "" {
		return title + "\n" + m.spinner.View() + " " +
			BodyStyle.Render("Reading "+filepath.Base(m.loadingFile)+"...")
	}
	return title + "\n" + desc + "\n\n" + m.filepicker.View()
}

func (m Model) renderRecorder() string {
	title := TitleStyle.Render("Record from the microphone")

	if m.recorder == nil {
		return title + "\n" + WarningStyle.Render("Recording is unavailable.") + "\n\n" +
			MutedStyle.Render(capture.FFmpegInstallHelp())
	}

	var status string
	switch {
	case m.starting:
		status = m.spinner.View() + " " + BodyStyle.Render("Opening microphone...")
	case m.stopping:
		status = m.spinner.View() + " " + BodyStyle.Render("Finishing recording...")
	case m.recorder.State() == capture.StateRecording:
		status = RecordingStyle.Render("● REC ") + BodyStyle.Render(formatElapsed(m.elapsed))
	default:
		status = MutedStyle.Render("Press r to start recording.")
	}
	return title + "\n" + status
}

// renderHistory renders the history panel; focused shows the cursor
func (m Model) renderHistory(focused bool) string {
	items := m.session.History()
	if len(items) == 0 {
		return ""
	}

	title := TitleStyle.Render("History")
	var list strings.Builder
	for i, item := range items {
		cursor := "  "
		nameStyle := BodyStyle
		if focused && i == m.historyIdx {
			cursor = "> "
			nameStyle = SelectedStyle
		}
		list.WriteString(nameStyle.Render(cursor+item.AudioName) +
			MutedStyle.Render("  "+item.Date.Local().Format(dateLayout)) + "\n")
		list.WriteString(SubtleStyle.Render("    "+preview(item.Text)) + "\n")
	}

	style := BoxStyle
	if focused {
		style = FocusedBoxStyle
	}
	return "\n" + style.Render(title+"\n"+strings.TrimRight(list.String(), "\n"))
}

// renderLoading renders the transcription progress
func (m Model) renderLoading(snap session.Snapshot) string {
	title := TitleStyle.Render("Transcribing...")
	status := m.spinner.View() + " " + BodyStyle.Render(snap.Progress.Status)

	return BoxStyle.Render(
		title + "\n\n" +
			status + "\n\n" +
			m.progress.View(),
	)
}

// renderResult renders the transcription and its translation controls
func (m Model) renderResult(snap session.Snapshot) string {
	t := snap.Transcription
	title := SuccessStyle.Render("Transcription")
	meta := MutedStyle.Render(t.AudioName + "  " + t.Date.Local().Format(dateLayout))

	buttons := []string{
		ButtonStyle.Render(m.buttonLabel("transcription", "[c] Copy")),
		ButtonStyle.Render("[e] English"),
		ButtonStyle.Render("[h] Hinglish"),
	}
	if snap.Translation.Text != "" {
		buttons = append(buttons, ButtonStyle.Render(m.buttonLabel("translation", "[y] Copy translation")))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, interleave(buttons, "  ")...)

	var status string
	switch tr := snap.Translation; {
	case tr.InFlight:
		status = "\n" + m.spinner.View() + " " + BodyStyle.Render(fmt.Sprintf("Translating to %s...", tr.Source.Label()))
	case tr.Err != "":
		status = "\n" + ErrorStyle.Render(tr.Err)
	}

	return BoxStyle.Render(
		title + " " + meta + "\n\n" +
			m.viewport.View() + "\n\n" +
			row + status,
	)
}

// renderError renders the error screen
func (m Model) renderError(snap session.Snapshot) string {
	title := ErrorStyle.Render("Error")
	hint := MutedStyle.Render("\n[n] Start over  [q] Quit")
	return BoxStyle.Render(title + "\n\n" + ErrorBoxStyle.Render(snap.ErrorMessage) + hint)
}

// renderHelp renders context-sensitive help
func (m Model) renderHelp(view session.ViewState) string {
	var keys []string

	switch view {
	case session.ViewInput:
		keys = append(keys, "tab", "Switch mode")
		switch m.mode {
		case ModeFile:
			keys = append(keys, "j/k", "Navigate", "enter", "Select")
		case ModeRecord:
			keys = append(keys, "r", "Record", "s", "Stop", "x", "Cancel")
		case ModeHistory:
			keys = append(keys, "up/down", "Navigate", "enter", "Open")
		}
		keys = append(keys, "D", "Clear history")
	case session.ViewResult:
		keys = append(keys, "c", "Copy", "e/h", "Translate", "n", "New", "pgup/pgdn", "Scroll", "D", "Clear history")
	case session.ViewError:
		keys = append(keys, "n", "Start over")
	}
	keys = append(keys, "t", "Theme", "q", "Quit")

	return KeyHelp(keys...)
}

func (m Model) buttonLabel(target, label string) string {
	if m.copyTarget == target && m.copyLabel != "" {
		return m.copyLabel
	}
	return label
}

// resultContent is the viewport text for the displayed transcription
func resultContent(snap session.Snapshot, width int) string {
	wrap := lipgloss.NewStyle().Width(width)
	content := wrap.Render(snap.Transcription.Text)
	if tr := snap.Translation.Text; tr != "" {
		content += "\n\n" + SelectedStyle.Render("Translation") + "\n" + wrap.Render(tr)
	}
	return content
}

// preview flattens text to one line for the history list
func preview(text string) string {
	return history.Truncate(strings.Join(strings.Fields(text), " "), history.PreviewLength)
}

func interleave(parts []string, sep string) []string {
	out := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			out = append(out, sep)
		}
		out = append(out, p)
	}
	return out
}

func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
