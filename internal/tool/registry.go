package tool

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrSealed is returned when registering into a sealed registry.
var ErrSealed = errors.New("tool registry is sealed")

// Registry maps tool names to tools. It is filled once at startup and then
// sealed; lookups after that see an immutable table.
type Registry struct {
	tools  map[string]Tool
	sealed bool
	mu     sync.RWMutex
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool),
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %s: %w", tool.Name(), ErrSealed)
	}

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	r.tools[name] = tool
	return nil
}

// Unregister removes a tool. It is only allowed before Seal.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("unregister %s: %w", name, ErrSealed)
	}
	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("tool %s not found", name)
	}

	delete(r.tools, name)
	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", name)
	}

	return tool, nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name() < tools[j].Name()
	})
	return tools
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	tools := r.List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

// Catalog renders one line per tool for the system prompt, e.g.
//
//   - get_weather: Get current weather for a city. Parameters: {"city": "city name"}
func (r *Registry) Catalog() string {
	var b strings.Builder
	for _, t := range r.List() {
		fmt.Fprintf(&b, "- %s: %s. Parameters: %s\n",
			t.Name(), strings.TrimSuffix(t.Description(), "."), ParameterSummary(t.Parameters()))
	}
	return strings.TrimRight(b.String(), "\n")
}

// GetToolBestPractices collects best practices from all registered tools
func (r *Registry) GetToolBestPractices() string {
	var practices []string
	for _, t := range r.List() {
		if bp := t.BestPractices(); bp != "" {
			practices = append(practices, bp)
		}
	}

	if len(practices) == 0 {
		return ""
	}

	return "# Tool Usage Best Practices\n\n" + strings.Join(practices, "\n\n")
}

// ParameterSummary renders a JSON-schema object as {"name": "description"}
// in property-name order. Properties without a description fall back to
// their JSON type.
func ParameterSummary(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return "{}"
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		hint := "value"
		if prop, ok := props[name].(map[string]any); ok {
			if desc, ok := prop["description"].(string); ok && desc != "" {
				hint = desc
			} else if typ, ok := prop["type"].(string); ok && typ != "" {
				hint = typ
			}
		}
		parts = append(parts, fmt.Sprintf("%q: %q", name, hint))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
