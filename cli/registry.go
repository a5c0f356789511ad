package cli

import (
	"strings"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-errors"
)

// Command is anything that contributes a kong command. CLIHandler returns a
// value with a Run method; kong fills its flags and arguments.
type Command interface {
	CLIHandler() any
	CLIOptions() Config
}

// Config places a command in the CLI tree. Path holds the command words,
// e.g. ["nodes", "list"]; an empty Path falls back to Name.
type Config struct {
	Name        string
	Path        []string
	Description string
	Group       string
	Aliases     []string
	Hidden      bool
	// Groups describe intermediate path segments, matched by name.
	Groups []GroupConfig
}

type GroupConfig struct {
	Name        string
	Description string
}

func (c Config) path() []string {
	if len(c.Path) > 0 {
		return append([]string{}, c.Path...)
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		return []string{name}
	}
	return nil
}

// Registry collects commands and turns them into kong options.
type Registry struct {
	mu          sync.RWMutex
	commands    []Command
	initialized bool
	options     []kong.Option
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) RegisterCommand(cmd Command) error {
	if cmd == nil {
		return errors.New("command cannot be nil", errors.CategoryBadInput).
			WithTextCode("NIL_COMMAND")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return errors.New("cannot register commands after registry has been initialized", errors.CategoryConflict).
			WithTextCode("REGISTRY_ALREADY_INITIALIZED")
	}
	r.commands = append(r.commands, cmd)
	return nil
}

// Initialize builds the command tree. Every failing command is reported;
// the registry is initialized either way.
func (r *Registry) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return errors.New("registry already initialized", errors.CategoryConflict).
			WithTextCode("REGISTRY_ALREADY_INITIALIZED")
	}
	r.initialized = true

	root := newNode("")
	var errs error
	for _, cmd := range r.commands {
		opts := cmd.CLIOptions()
		handler := cmd.CLIHandler()
		if handler == nil {
			errs = errors.Join(errs, errors.New("cli command has no handler", errors.CategoryBadInput).
				WithTextCode("CLI_HANDLER_MISSING").
				WithMetadata(map[string]any{"path": strings.Join(opts.path(), " ")}))
			continue
		}
		if err := root.insert(opts.path(), opts, handler); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	options, err := buildOptions(root)
	if err != nil {
		errs = errors.Join(errs, errors.Wrap(err, errors.CategoryInternal, "cli model could not be built").
			WithTextCode("CLI_MODEL_FAILED"))
	}
	r.options = options
	return errs
}

// Options returns the kong options for kong.New.
func (r *Registry) Options() ([]kong.Option, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.initialized {
		return nil, errors.New("registry not initialized", errors.CategoryConflict).
			WithTextCode("REGISTRY_NOT_INITIALIZED")
	}

	options := make([]kong.Option, len(r.options))
	copy(options, r.options)
	return options, nil
}
