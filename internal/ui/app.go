package ui

import (
	"context"
	"fmt"
	stdimage "image"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dmorgan81/text2img/internal/handler"
	"github.com/dmorgan81/text2img/internal/image"
	"github.com/dmorgan81/text2img/internal/log"
	"github.com/dmorgan81/text2img/internal/prompt"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const (
	statusReady      = "Ready"
	statusEmpty      = "Please enter a prompt"
	statusGenerating = "Generating image..."
	statusGenerated  = "Image generated successfully!"
	statusNoImage    = "No image to save"
	statusSaving     = "Saving image..."
)

type focus int

const (
	focusPrompt focus = iota
	focusSize
	focusGenerate
	focusSave
	focusCount
)

type Saver interface {
	Save(context.Context, handler.Input) (handler.Output, error)
}

type Options struct {
	Sizes         []image.Size
	DefaultSize   image.Size
	Steps         int
	Guidance      float64
	DisplayWidth  int
	DisplayHeight int
}

// Result is delivered to the event loop when a generation attempt ends.
// Exactly one of Generated and Err is set.
type Result struct {
	Params    image.Params
	Generated *image.Generated
	Err       error
}

type savedMsg struct {
	out handler.Output
	err error
}

// State is a read-only view of the controller for callers and tests.
type State struct {
	IsGenerating bool
	HasImage     bool
	SaveVisible  bool
	Status       string
}

// displayed is the only live handle to the shown image; replacing it drops
// the previous one.
type displayed struct {
	image    stdimage.Image
	params   image.Params
	format   string
	rendered string
}

// App owns every piece of interactive state. It is only mutated from the
// bubbletea event loop; background commands report back through messages.
type App struct {
	ctx        context.Context
	generator  image.Generator
	saver      Saver
	randomizer *prompt.Randomizer
	opts       Options
	now        func() time.Time
	render     func(stdimage.Image) string

	prompt   textarea.Model
	spinner  spinner.Model
	progress progress.Model
	sizeIdx  int
	focus    focus

	generating bool
	saving     bool
	percent    float64
	status     string
	current    *displayed

	width  int
	height int
}

func NewApp(i *do.Injector) (*App, error) {
	return New(
		do.MustInvoke[context.Context](i),
		do.MustInvoke[image.Generator](i),
		do.MustInvoke[*handler.Handler](i),
		do.MustInvoke[*prompt.Randomizer](i),
		do.MustInvoke[Options](i),
	), nil
}

func New(ctx context.Context, generator image.Generator, saver Saver, randomizer *prompt.Randomizer, opts Options) *App {
	ta := textarea.New()
	ta.Placeholder = "Describe the image you want..."
	ta.ShowLineNumbers = false
	ta.SetHeight(5)
	ta.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &App{
		ctx:        ctx,
		generator:  generator,
		saver:      saver,
		randomizer: randomizer,
		opts:       opts,
		now:        time.Now,
		render:     renderTerminal,
		prompt:     ta,
		spinner:    s,
		progress:   progress.New(progress.WithDefaultGradient()),
		sizeIdx:    max(lo.IndexOf(opts.Sizes, opts.DefaultSize), 0),
		status:     statusReady,
	}
}

func (a *App) State() State {
	return State{
		IsGenerating: a.generating,
		HasImage:     a.current != nil,
		SaveVisible:  a.current != nil,
		Status:       a.status,
	}
}

// Size is the currently selected size.
func (a *App) Size() image.Size {
	if len(a.opts.Sizes) == 0 {
		return a.opts.DefaultSize
	}
	return a.opts.Sizes[a.sizeIdx]
}

// DisplayedImage returns the scaled image currently shown, if any.
func (a *App) DisplayedImage() stdimage.Image {
	if a.current == nil {
		return nil
	}
	return a.current.image
}

func (a *App) Init() tea.Cmd {
	return textarea.Blink
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.resize()
		return a, nil
	case tea.KeyMsg:
		return a, a.handleKey(msg)
	case Result:
		return a, a.OnGenerationComplete(msg)
	case savedMsg:
		a.onSaved(msg)
		return a, nil
	case spinner.TickMsg:
		if !a.generating && !a.saving {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.prompt, cmd = a.prompt.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		return tea.Quit
	case "ctrl+g":
		return a.SubmitPrompt(a.prompt.Value(), a.Size())
	case "ctrl+s":
		return a.SaveCurrentImage()
	case "ctrl+r":
		return a.RandomPrompt()
	case "tab":
		return a.cycleFocus(1)
	case "shift+tab":
		return a.cycleFocus(-1)
	}

	switch a.focus {
	case focusSize:
		switch msg.String() {
		case "left", "h", "up", "k":
			a.selectSize(-1)
		case "right", "l", "down", "j":
			a.selectSize(1)
		}
	case focusGenerate:
		if msg.String() == "enter" || msg.String() == " " {
			return a.SubmitPrompt(a.prompt.Value(), a.Size())
		}
	case focusSave:
		if msg.String() == "enter" || msg.String() == " " {
			return a.SaveCurrentImage()
		}
	default:
		var cmd tea.Cmd
		a.prompt, cmd = a.prompt.Update(msg)
		return cmd
	}
	return nil
}

// SubmitPrompt validates the prompt and dispatches a generation attempt.
// While an attempt is in flight the trigger is disabled and nil is returned.
func (a *App) SubmitPrompt(text string, size image.Size) tea.Cmd {
	if a.generating {
		return nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		a.status = statusEmpty
		return nil
	}

	params := image.Params{
		Prompt:   text,
		Width:    size.Width,
		Height:   size.Height,
		Steps:    lo.Ternary(a.opts.Steps > 0, a.opts.Steps, image.DefaultSteps),
		Guidance: lo.Ternary(a.opts.Guidance > 0, a.opts.Guidance, image.DefaultGuidance),
	}

	a.generating = true
	a.percent = 0
	a.status = statusGenerating
	log.FromContextOrDiscard(a.ctx).Info("submitting prompt", "prompt", text, "size", size.String())

	return tea.Batch(a.generate(params), a.spinner.Tick)
}

func (a *App) generate(params image.Params) tea.Cmd {
	ctx, generator := a.ctx, a.generator
	return func() tea.Msg {
		out, err := generator.Generate(ctx, params)
		if err != nil {
			return Result{Params: params, Err: err}
		}
		return Result{Params: params, Generated: out}
	}
}

// OnGenerationComplete applies the outcome of an attempt. On failure the
// previously displayed image is kept.
func (a *App) OnGenerationComplete(r Result) tea.Cmd {
	a.generating = false
	logger := log.FromContextOrDiscard(a.ctx)

	if r.Err != nil || r.Generated == nil || r.Generated.Image == nil {
		err := lo.Ternary(r.Err != nil, r.Err, error(&image.DecodeError{Err: fmt.Errorf("empty result")}))
		logger.Warn("generation failed", "error", err)
		a.percent = 0
		a.status = "Error: " + err.Error()
		return nil
	}

	scaled := fit(r.Generated.Image, a.opts.DisplayWidth, a.opts.DisplayHeight)
	a.current = &displayed{
		image:    scaled,
		params:   r.Params,
		format:   r.Generated.Format,
		rendered: a.render(scaled),
	}
	a.percent = 1
	a.status = statusGenerated
	logger.Info("generation complete", "format", r.Generated.Format, "bounds", scaled.Bounds().String())
	return nil
}

// SaveCurrentImage writes the displayed image. Without one it only reports
// that there is nothing to save.
func (a *App) SaveCurrentImage() tea.Cmd {
	if a.current == nil {
		a.status = statusNoImage
		return nil
	}
	if a.saving {
		return nil
	}

	input := handler.Input{
		Image:  a.current.image,
		Params: a.current.params,
		Format: a.current.format,
		Time:   a.now(),
	}
	a.saving = true
	a.status = statusSaving

	ctx, saver := a.ctx, a.saver
	return tea.Batch(func() tea.Msg {
		out, err := saver.Save(ctx, input)
		return savedMsg{out: out, err: err}
	}, a.spinner.Tick)
}

func (a *App) onSaved(msg savedMsg) {
	a.saving = false
	switch {
	case msg.out.Path == "":
		a.status = fmt.Sprintf("Error: could not save image: %v", msg.err)
	case msg.err != nil:
		a.status = fmt.Sprintf("Image saved as %s (sync failed: %v)", msg.out.Path, msg.err)
	default:
		a.status = "Image saved as " + msg.out.Path
	}
}

// RandomPrompt replaces the prompt with one of the configured prompts.
func (a *App) RandomPrompt() tea.Cmd {
	if a.randomizer == nil {
		return nil
	}
	p, err := a.randomizer.Randomize(a.ctx)
	if err != nil {
		a.status = "Error: " + err.Error()
		return nil
	}
	a.prompt.SetValue(p)
	return nil
}

func (a *App) selectSize(delta int) {
	n := len(a.opts.Sizes)
	if n == 0 {
		return
	}
	a.sizeIdx = (a.sizeIdx + delta + n) % n
}

func (a *App) cycleFocus(delta int) tea.Cmd {
	for {
		a.focus = (a.focus + focus(delta) + focusCount) % focusCount
		if a.focus != focusSave || a.current != nil {
			break
		}
	}
	if a.focus == focusPrompt {
		return a.prompt.Focus()
	}
	a.prompt.Blur()
	return nil
}
