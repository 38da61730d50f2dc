package model

// MenuItem is a row of menu_items. Only two levels are meaningful: top-level
// entries (ParentID nil) and their direct children.
type MenuItem struct {
	ID        int    `json:"id"`
	ParentID  *int   `json:"parent_id,omitempty"`
	Name      string `json:"name"`
	Icon      string `json:"icon,omitempty"`
	Path      string `json:"path,omitempty"`
	Section   string `json:"section"`
	SortOrder int    `json:"sort_order"`
	IsActive  bool   `json:"is_active"`
	// Permission is the gate. Empty means visible to every recognized principal.
	Permission string `json:"permission,omitempty"`
}

// MenuKind tags a menu node as navigable or as a heading.
type MenuKind string

const (
	// MenuKindLink is a node with a path. It may still carry children.
	MenuKindLink MenuKind = "link"
	// MenuKindGroup is a heading without a path; it only renders with children.
	MenuKindGroup MenuKind = "group"
)

// MenuNode is a menu entry with its kind resolved and its children attached.
type MenuNode struct {
	MenuItem
	Kind     MenuKind   `json:"kind"`
	Children []MenuNode `json:"children,omitempty"`
}

// MenuSection is a labelled top-level grouping of menu nodes.
type MenuSection struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Items []MenuNode `json:"items"`
}

// MenuSectionLabels is the fixed display order of known sections.
var MenuSectionLabels = []struct {
	Key   string
	Label string
}{
	{"main", "Main"},
	{"self_service", "Self Service"},
	{"people", "People"},
	{"finance", "Finance"},
	{"talent", "Talent"},
	{"administration", "Administration"},
}
