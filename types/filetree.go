package types

import "time"

const (
	NodeKindFile      = "file"
	NodeKindDirectory = "directory"
)

// FileNode is one node of a shared directory tree. The tree is serializable
// and content-free: file bodies are only ever transferred on demand through
// the owner.
type FileNode struct {
	Name     string      `json:"name" mapstructure:"name"`
	Path     string      `json:"path" mapstructure:"path"`
	Kind     string      `json:"kind" mapstructure:"kind"`
	Children []*FileNode `json:"children,omitempty" mapstructure:"children"`
}

// SharedFolder is the one live published tree of a room together with its
// publisher. Republishing replaces the whole value.
type SharedFolder struct {
	Tree     *FileNode `json:"tree"`
	RootPath string    `json:"rootPath"`
	SharedBy string    `json:"sharedBy"`
	SharedAt time.Time `json:"sharedAt"`
}
