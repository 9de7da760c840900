package envapply

import "fmt"

// Kind distinguishes environment actions.
type Kind string

const (
	KindNone        Kind = "none"
	KindPrependPath Kind = "prepend_path"
	KindSetVariable Kind = "set_variable"
)

// Action is one declared environment change. Applying an action twice has
// the same effect as applying it once.
type Action struct {
	Kind  Kind   `json:"kind"`
	Dir   string `json:"dir,omitempty"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// PrependPath puts dir at the front of the user PATH.
func PrependPath(dir string) Action {
	return Action{Kind: KindPrependPath, Dir: dir}
}

// SetVariable sets a user environment variable.
func SetVariable(name, value string) Action {
	return Action{Kind: KindSetVariable, Name: name, Value: value}
}

// NoAction is a placeholder for tools that need no environment change.
func NoAction() Action {
	return Action{Kind: KindNone}
}

func (a Action) String() string {
	switch a.Kind {
	case KindPrependPath:
		return fmt.Sprintf("PATH += %s", a.Dir)
	case KindSetVariable:
		return fmt.Sprintf("%s = %s", a.Name, a.Value)
	default:
		return "no-op"
	}
}
