package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wricardo/vinecheck/game/service"
)

// fileDoneMsg reports one finished level file
type fileDoneMsg struct {
	name  string
	valid bool
}

// finishMsg ends the progress display
type finishMsg struct{}

// progressModel is a bubbletea model showing a spinner with batch counters
type progressModel struct {
	spinner spinner.Model
	total   int
	done    int
	invalid int
	last    string
	styles  Styles
	stopped bool
}

func newProgressModel(w io.Writer, total int) progressModel {
	styles := NewStyles(w)
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(styles.Valid),
	)
	return progressModel{
		spinner: s,
		total:   total,
		styles:  styles,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fileDoneMsg:
		m.done++
		if !msg.valid {
			m.invalid++
		}
		m.last = msg.name
		return m, nil

	case finishMsg:
		m.stopped = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.stopped {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" Validating levels ")
	if m.total > 0 {
		fmt.Fprintf(&b, "%d/%d", m.done, m.total)
	} else {
		fmt.Fprintf(&b, "%d", m.done)
	}
	if m.invalid > 0 {
		b.WriteString(" " + m.styles.Invalid.Render(fmt.Sprintf("(%d invalid)", m.invalid)))
	}
	if m.last != "" {
		b.WriteString(" " + m.styles.Dim.Render(m.last))
	}
	b.WriteString("\n")
	return b.String()
}

// Progress renders a live spinner while a batch runs. It is used as the batch
// observer.
type Progress struct {
	program *tea.Program
	done    chan struct{}
}

// StartProgress starts the spinner on w for a batch of total files. The
// program never reads input and leaves signal handling to the caller.
func StartProgress(w io.Writer, total int) *Progress {
	p := &Progress{
		program: tea.NewProgram(newProgressModel(w, total),
			tea.WithOutput(w),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		if _, err := p.program.Run(); err != nil {
			fmt.Fprintf(w, "progress display failed: %v\n", err)
		}
	}()
	return p
}

// Observe records a finished file; it matches service.BatchOptions.Observer
func (p *Progress) Observe(r *service.FileReport) {
	p.program.Send(fileDoneMsg{name: r.Name, valid: r.Valid})
}

// Stop clears the spinner and waits for the program to exit
func (p *Progress) Stop() {
	p.program.Send(finishMsg{})
	<-p.done
}
