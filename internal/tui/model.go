package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"batiment-rag/internal/domain"
	"batiment-rag/internal/search"
)

// QueryPort is the TUI-facing subset of the RAG service.
type QueryPort interface {
	Ask(ctx context.Context, query string) domain.Answer
}

type exchange struct {
	question string
	answer   domain.Answer
}

type answerMsg struct {
	id     int
	answer domain.Answer
}

// Model is the Bubble Tea model for the chat front end.
type Model struct {
	service  QueryPort
	ctx      context.Context
	input    textinput.Model
	viewport viewport.Model
	history  []exchange
	status   string
	ready    bool
	pending  int
	nextID   int
	cancel   context.CancelFunc
}

// New creates a new TUI model instance. ctx bounds every query started from the UI.
func New(ctx context.Context, service QueryPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Posez votre question et appuyez sur Entrée"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{service: service, ctx: ctx, input: ti, viewport: vp, status: "Prêt."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		if msg.id != m.pending {
			return m, nil
		}
		m.pending = 0
		m.cancel = nil
		m.history[len(m.history)-1].answer = msg.answer
		m.status = statusFor(msg.answer)
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.cancel != nil {
				m.cancel()
				m.cancel = nil
				m.pending = 0
				m.history = m.history[:len(m.history)-1]
				m.status = "Question annulée."
				m.refresh()
			}
			return m, nil
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending != 0 {
				return m, nil
			}
			m.input.SetValue("")
			m.nextID++
			m.pending = m.nextID
			m.history = append(m.history, exchange{question: q})
			m.status = "Recherche de documents pertinents..."
			m.refresh()
			m.viewport.GotoBottom()
			ctx, cancel := context.WithCancel(m.ctx)
			m.cancel = cancel
			return m, ask(ctx, m.service, m.pending, q)
		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func ask(ctx context.Context, svc QueryPort, id int, q string) tea.Cmd {
	return func() tea.Msg {
		return answerMsg{id: id, answer: svc.Ask(ctx, q)}
	}
}

// View renders the TUI layout and the conversation.
func (m Model) View() string {
	if !m.ready {
		return "Chargement..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Assistant bâtiment")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return "Aucune question pour l'instant."
	}
	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("Question: " + ex.question))
		b.WriteString("\n")
		if ex.answer.Outcome == "" {
			b.WriteString(mutedStyle.Render("..."))
			continue
		}
		b.WriteString("Réponse: " + ex.answer.Text)
		if len(ex.answer.Sources) > 0 {
			b.WriteString("\n")
			b.WriteString(renderSources(ex.answer.Sources, ex.question))
		}
	}
	return b.String()
}

func renderSources(docs []domain.Document, query string) string {
	lines := make([]string, 0, len(docs)+1)
	for i, d := range docs {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("[%d] %s  score=%.3f", i+1, d.Title, d.Score)))
	}
	lines = append(lines, highlightBestSentence(docs[0].Content, query))
	return strings.Join(lines, "\n")
}

func statusFor(a domain.Answer) string {
	switch a.Outcome {
	case domain.OutcomeAnswered:
		return fmt.Sprintf("Réponse générée à partir de %d document(s).", len(a.Sources))
	case domain.OutcomeNoEvidence:
		return "Aucun document pertinent trouvé."
	case domain.OutcomeCancelled:
		return "Question annulée."
	default:
		return "La génération a échoué."
	}
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the sentence sharing the most tokens with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := search.Tokenize(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range search.Tokenize(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
