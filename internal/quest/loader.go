package quest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/afero"
	"github.com/xonecas/zoea-pilot/internal/activity"
	"github.com/xonecas/zoea-pilot/internal/task"
	"gopkg.in/yaml.v3"
)

//go:embed quest.schema.json
var schemaSource string

var documentSchema = jsonschema.MustCompileString("quest.schema.json", schemaSource)

// Document is the on-disk quest format.
type Document struct {
	Path            string         `yaml:"-"`
	Name            string         `yaml:"name"`
	ProgressKey     string         `yaml:"progress_key"`
	CompletionValue int            `yaml:"completion_value"`
	Steps           []StepDocument `yaml:"steps"`
}

// StepDocument describes one step.
type StepDocument struct {
	Progress    int              `yaml:"progress"`
	Name        string           `yaml:"name"`
	Priority    string           `yaml:"priority"`
	Activity    string           `yaml:"activity"`
	RequireIdle bool             `yaml:"require_idle"`
	Requires    ItemsDocument    `yaml:"requires"`
	DoneWhen    ItemsDocument    `yaml:"done_when"`
	Actions     []ActionDocument `yaml:"actions"`
}

// ItemsDocument is an inventory predicate: at least n of each item.
type ItemsDocument struct {
	Items map[string]int `yaml:"items"`
}

// ActionDocument is a single environment command.
type ActionDocument struct {
	Action       string            `yaml:"action"`
	Target       string            `yaml:"target"`
	Args         map[string]string `yaml:"args"`
	TimeoutTicks int               `yaml:"timeout_ticks"`
}

// Parse decodes and validates a quest document.
func Parse(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuest, err)
	}
	// The schema validator works on JSON values.
	j, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuest, err)
	}
	var generic any
	if err := json.Unmarshal(j, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuest, err)
	}
	if err := documentSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuest, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuest, err)
	}

	seen := make(map[int]string, len(doc.Steps))
	for _, s := range doc.Steps {
		if prev, ok := seen[s.Progress]; ok {
			return nil, fmt.Errorf("%w: steps %q and %q share progress %d", ErrInvalidQuest, prev, s.Name, s.Progress)
		}
		seen[s.Progress] = s.Name
	}
	return &doc, nil
}

// Compile builds a runnable quest. opts are applied to every command task
// the steps create.
func (d *Document) Compile(opts ...task.CommandOption) *Quest {
	q := &Quest{
		Name:            d.Name,
		ProgressKey:     d.ProgressKey,
		CompletionValue: d.CompletionValue,
		Steps:           make(map[int]*Step, len(d.Steps)),
	}
	for _, sd := range d.Steps {
		q.Steps[sd.Progress] = d.compileStep(sd, opts)
	}
	return q
}

func (d *Document) compileStep(sd StepDocument, opts []task.CommandOption) *Step {
	step := &Step{
		Name:        sd.Name,
		Progress:    sd.Progress,
		Priority:    task.ParsePriority(sd.Priority),
		RequireIdle: sd.RequireIdle,
	}
	if len(sd.Requires.Items) > 0 {
		items := sd.Requires.Items
		step.Requires = func(tc Context) bool { return task.HasItems(tc, items) }
	}
	if len(sd.DoneWhen.Items) > 0 {
		items := sd.DoneWhen.Items
		step.Done = func(tc Context) bool { return task.HasItems(tc, items) }
	}

	actions := sd.Actions
	act := activity.Medium
	if sd.Activity != "" {
		act = activity.Parse(sd.Activity)
	}
	step.Build = func(Context) []task.Task {
		tasks := make([]task.Task, 0, len(actions))
		for _, a := range actions {
			cmdOpts := append([]task.CommandOption{task.WithActivity(act), task.WithTimeout(a.TimeoutTicks)}, opts...)
			desc := a.Action
			if a.Target != "" {
				desc += " " + a.Target
			}
			tasks = append(tasks, task.NewCommand(desc, step.Priority, task.Command{
				Action: a.Action,
				Target: a.Target,
				Args:   a.Args,
			}, cmdOpts...))
		}
		return tasks
	}
	return step
}

// Loader reads quest documents from a directory.
type Loader struct {
	fs      afero.Fs
	baseDir string
}

// NewLoader creates a loader over fs.
func NewLoader(fs afero.Fs, baseDir string) *Loader {
	return &Loader{fs: fs, baseDir: baseDir}
}

// NewOsLoader creates a loader over the real filesystem.
func NewOsLoader(baseDir string) *Loader {
	return NewLoader(afero.NewOsFs(), baseDir)
}

// LoadAll loads every .yaml/.yml file under the base directory. A missing
// directory yields no quests.
func (l *Loader) LoadAll() ([]*Document, error) {
	exists, err := afero.DirExists(l.fs, l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("check quest directory: %w", err)
	}
	if !exists {
		return []*Document{}, nil
	}

	var docs []*Document
	err = afero.Walk(l.fs, l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isQuestFile(info.Name()) {
			return nil
		}
		doc, err := l.LoadFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk quest directory: %w", err)
	}
	return docs, nil
}

// LoadFile loads and validates a single document.
func (l *Loader) LoadFile(path string) (*Document, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open quest: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read quest: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Find returns the document named name.
func Find(docs []*Document, name string) (*Document, bool) {
	for _, d := range docs {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return nil, false
}

func isQuestFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
