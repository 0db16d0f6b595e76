// Package tui provides the interactive terminal interface: staging, commit
// message generation with draft review, history, and push.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"gitsmart/internal/config"
	"gitsmart/internal/events"
	"gitsmart/internal/git"
	"gitsmart/internal/pipeline"
	"gitsmart/internal/session"
	"gitsmart/internal/store"
)

type state int

const (
	stateMenu state = iota
	stateFiles
	stateGenerating
	stateDraft
	stateHistory
	stateSummary
)

type menuEntry struct {
	label string
	next  func(m *Model) (tea.Model, tea.Cmd)
}

type fileEntry struct {
	path   string
	kind   git.ChangeKind
	staged bool
}

// Model is the bubbletea model for the interactive session.
type Model struct {
	sess *session.RepositorySession
	pipe *pipeline.Pipeline
	bc   *events.Broadcaster
	st   *store.Store
	cfg  *config.Config

	state  state
	cursor int
	menu   []menuEntry

	branch string
	files  []fileEntry

	spinner  spinner.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer

	draft   *pipeline.CommitMessage
	history []git.CommitInfo
	summary string
	watcher *git.Watcher

	status string
	err    error

	width, height int
}

// Run starts the interactive interface and blocks until it exits. The index
// watcher runs alongside the program so changes made from another terminal
// show up without a manual refresh.
func Run(sess *session.RepositorySession, pipe *pipeline.Pipeline, bc *events.Broadcaster, st *store.Store, cfg *config.Config) error {
	m := newModel(sess, pipe, bc, st, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.watcher.Run(ctx) }()

	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func newModel(sess *session.RepositorySession, pipe *pipeline.Pipeline, bc *events.Broadcaster, st *store.Store, cfg *config.Config) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	m := &Model{
		sess:     sess,
		pipe:     pipe,
		bc:       bc,
		st:       st,
		cfg:      cfg,
		spinner:  sp,
		viewport: viewport.New(100, 24),
		renderer: renderer,
		watcher:  git.NewWatcher(sess.Repo()),
	}
	m.menu = []menuEntry{
		{label: "Status & staging", next: func(m *Model) (tea.Model, tea.Cmd) {
			m.state = stateFiles
			m.cursor = 0
			return m, m.refreshCmd()
		}},
		{label: "Generate commit message", next: func(m *Model) (tea.Model, tea.Cmd) {
			m.state = stateGenerating
			return m, tea.Batch(m.spinner.Tick, m.generateCmd())
		}},
		{label: "Commit history", next: func(m *Model) (tea.Model, tea.Cmd) {
			m.state = stateHistory
			m.cursor = 0
			return m, m.historyCmd()
		}},
		{label: "Push to origin", next: func(m *Model) (tea.Model, tea.Cmd) {
			return m, m.pushCmd()
		}},
		{label: "Quit", next: func(m *Model) (tea.Model, tea.Cmd) {
			return m, tea.Quit
		}},
	}
	return m
}

// Init refreshes repository state on startup and arms the index watch.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.spinner.Tick, m.watchCmd())
}

// Messages delivered by async commands.
type (
	refreshedMsg struct {
		branch string
		files  []fileEntry
	}
	draftMsg     struct{ draft *pipeline.CommitMessage }
	committedMsg struct{ message string }
	historyMsg   struct{ commits []git.CommitInfo }
	summaryMsg   struct{ text string }
	pushedMsg       struct{}
	toggledMsg      struct{}
	indexChangedMsg struct{}
	errMsg          struct{ err error }
)

const opTimeout = 10 * time.Minute

// refreshCmd re-reads staged, unstaged, and untracked state.
func (m *Model) refreshCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		repo := sess.Repo()
		branch, err := repo.Branch(ctx)
		if err != nil {
			return errMsg{err}
		}
		staged, err := repo.Snapshot(ctx)
		if err != nil {
			return errMsg{err}
		}
		sess.RecordChangeSet(staged)

		unstagedDiff, err := repo.UnstagedDiff(ctx)
		if err != nil {
			return errMsg{err}
		}
		untracked, err := repo.UntrackedFiles(ctx)
		if err != nil {
			return errMsg{err}
		}

		var files []fileEntry
		for _, fc := range staged.Files() {
			files = append(files, fileEntry{path: fc.Path, kind: fc.Kind, staged: true})
		}
		for _, fc := range git.ParseDiff(unstagedDiff).Files() {
			files = append(files, fileEntry{path: fc.Path, kind: fc.Kind})
		}
		for _, path := range untracked {
			files = append(files, fileEntry{path: path, kind: git.KindAdded})
		}
		return refreshedMsg{branch: branch, files: files}
	}
}

// watchCmd waits for the next index change reported by the watcher. Each
// notification re-arms the wait from Update.
func (m *Model) watchCmd() tea.Cmd {
	ch := m.watcher.Changed()
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return indexChangedMsg{}
	}
}

// toggleCmd stages or unstages one file.
func (m *Model) toggleCmd(entry fileEntry) tea.Cmd {
	sess, bc := m.sess, m.bc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var cs *git.ChangeSet
		var err error
		if entry.staged {
			cs, err = sess.Executor().Unstage(ctx, []string{entry.path})
		} else {
			cs, err = sess.Executor().Stage(ctx, []string{entry.path})
		}
		if err != nil {
			return errMsg{err}
		}
		sess.RecordChangeSet(cs)
		if entry.staged {
			bc.Publish(events.TypeUnstaged, cs.Summarize())
		} else {
			bc.Publish(events.TypeStaged, cs.Summarize())
		}
		return toggledMsg{}
	}
}

// generateCmd runs the pipeline over the staged ChangeSet.
func (m *Model) generateCmd() tea.Cmd {
	sess, pipe, bc := m.sess, m.pipe, m.bc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		cs, err := sess.Executor().Snapshot(ctx)
		if err != nil {
			return errMsg{err}
		}
		draft, err := pipe.Generate(ctx, cs)
		if err != nil {
			return errMsg{err}
		}
		sess.RecordChangeSet(cs)
		sess.RecordDraft(draft)
		bc.Publish(events.TypeDraftReady, draft)
		return draftMsg{draft: draft}
	}
}

// commitCmd commits the accepted draft.
func (m *Model) commitCmd(draft *pipeline.CommitMessage) tea.Cmd {
	sess, bc, st := m.sess, m.bc, m.st
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		message := draft.Render()
		cs, err := sess.Executor().Commit(ctx, message)
		if err != nil {
			return errMsg{err}
		}
		sess.RecordChangeSet(cs)
		bc.Publish(events.TypeCommitted, map[string]any{
			"message":    message,
			"repository": sess.Repo().Root(),
		})
		if st != nil {
			if id, serr := st.SaveDraft(sess.Repo().Root(), draft.Title, message, draft.Fallback, true); serr == nil {
				_ = st.MarkCommitted(id)
			}
		}
		return committedMsg{message: message}
	}
}

func (m *Model) historyCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		commits, err := sess.Repo().History(20)
		if err != nil {
			return errMsg{err}
		}
		return historyMsg{commits: commits}
	}
}

// summarizeCmd condenses the loaded history into one narrative.
func (m *Model) summarizeCmd() tea.Cmd {
	pipe := m.pipe
	commits := m.history
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		messages := make([]string, 0, len(commits))
		for _, c := range commits {
			messages = append(messages, c.Message)
		}
		text, err := pipe.SummarizeCommits(ctx, messages)
		if err != nil {
			return errMsg{err}
		}
		return summaryMsg{text: text}
	}
}

func (m *Model) pushCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := sess.Executor().Push(ctx, "origin"); err != nil {
			return errMsg{err}
		}
		return pushedMsg{}
	}
}

// Update is the bubbletea update loop.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 8
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshedMsg:
		m.branch = msg.branch
		m.files = msg.files
		m.err = nil
		if m.cursor >= len(m.files) {
			m.cursor = max(len(m.files)-1, 0)
		}
		return m, nil

	case toggledMsg:
		return m, m.refreshCmd()

	case indexChangedMsg:
		// Another process touched the index; re-read and keep watching.
		return m, tea.Batch(m.refreshCmd(), m.watchCmd())

	case draftMsg:
		m.draft = msg.draft
		m.state = stateDraft
		m.status = ""
		m.setDraftViewport()
		return m, nil

	case committedMsg:
		m.draft = nil
		m.state = stateMenu
		m.cursor = 0
		m.status = "committed"
		return m, m.refreshCmd()

	case historyMsg:
		m.history = msg.commits
		return m, nil

	case summaryMsg:
		m.summary = msg.text
		m.state = stateSummary
		m.setSummaryViewport()
		return m, nil

	case pushedMsg:
		m.status = "pushed to origin"
		return m, nil

	case errMsg:
		m.err = msg.err
		if m.state == stateGenerating {
			m.state = stateMenu
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.state {
	case stateMenu:
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.menu)-1 {
				m.cursor++
			}
		case "enter":
			return m.menu[m.cursor].next(m)
		case "q":
			return m, tea.Quit
		}

	case stateFiles:
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.files)-1 {
				m.cursor++
			}
		case " ", "enter":
			if m.cursor < len(m.files) {
				return m, m.toggleCmd(m.files[m.cursor])
			}
		case "g":
			m.state = stateGenerating
			return m, tea.Batch(m.spinner.Tick, m.generateCmd())
		case "r":
			return m, m.refreshCmd()
		case "esc", "q":
			m.state = stateMenu
			m.cursor = 0
		}

	case stateGenerating:
		// Generation runs inside the lock; nothing to interact with.

	case stateDraft:
		switch key {
		case "c", "enter":
			if m.draft != nil {
				return m, m.commitCmd(m.draft)
			}
		case "r":
			m.state = stateGenerating
			return m, tea.Batch(m.spinner.Tick, m.generateCmd())
		case "d", "esc":
			m.draft = nil
			m.state = stateMenu
			m.cursor = 0
			m.status = "draft discarded"
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case stateHistory:
		switch key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.history)-1 {
				m.cursor++
			}
		case "s":
			if len(m.history) > 0 {
				m.state = stateGenerating
				return m, tea.Batch(m.spinner.Tick, m.summarizeCmd())
			}
		case "esc", "q":
			m.state = stateMenu
			m.cursor = 0
		}

	case stateSummary:
		switch key {
		case "esc", "q", "enter":
			m.state = stateHistory
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}
