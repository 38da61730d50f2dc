package authz

import (
	"sort"
	"strings"

	"github.com/stemsi/hris-authz/internal/model"
)

// BuildMenuTree assembles flat menu rows into the two-level tree. Rows whose
// parent is missing or is itself a child are dropped: deeper nesting is never
// evaluated. Kinds are assigned here, from the presence of a path.
func BuildMenuTree(items []model.MenuItem) []model.MenuNode {
	tops := make(map[int]int)
	var roots []model.MenuNode
	for _, it := range items {
		if it.ParentID != nil {
			continue
		}
		tops[it.ID] = len(roots)
		roots = append(roots, newMenuNode(it))
	}
	for _, it := range items {
		if it.ParentID == nil {
			continue
		}
		idx, ok := tops[*it.ParentID]
		if !ok {
			continue
		}
		roots[idx].Children = append(roots[idx].Children, newMenuNode(it))
	}
	sortMenu(roots)
	return roots
}

func newMenuNode(it model.MenuItem) model.MenuNode {
	kind := model.MenuKindGroup
	if strings.TrimSpace(it.Path) != "" {
		kind = model.MenuKindLink
	}
	return model.MenuNode{MenuItem: it, Kind: kind}
}

// FilterMenu prunes tree for a principal holding set. Only active entries are
// considered. A child survives when its gate passes. A top-level entry survives
// when its gate passes and it is a link or keeps at least one child. The input
// is not modified and the output is ordered, so filtering twice with the same
// set returns the same tree.
func FilterMenu(tree []model.MenuNode, set PermissionSet) []model.MenuNode {
	out := make([]model.MenuNode, 0, len(tree))
	for _, node := range tree {
		if !node.IsActive || !gatePasses(node.MenuItem, set) {
			continue
		}

		var children []model.MenuNode
		for _, child := range node.Children {
			if !child.IsActive || !gatePasses(child.MenuItem, set) {
				continue
			}
			child.Children = nil
			children = append(children, child)
		}

		switch node.Kind {
		case model.MenuKindLink:
		case model.MenuKindGroup:
			if len(children) == 0 {
				continue
			}
		default:
			if strings.TrimSpace(node.Path) == "" && len(children) == 0 {
				continue
			}
		}

		node.Children = children
		out = append(out, node)
	}
	sortMenu(out)
	return out
}

func gatePasses(it model.MenuItem, set PermissionSet) bool {
	return Authorize(set, it.Permission).Allowed
}

// MenuSections groups a tree by section. Known sections come first in their
// fixed order; unknown tags follow in lexical order, labelled by the raw tag.
func MenuSections(tree []model.MenuNode) []model.MenuSection {
	bySection := make(map[string][]model.MenuNode)
	for _, node := range tree {
		bySection[node.Section] = append(bySection[node.Section], node)
	}

	sections := make([]model.MenuSection, 0, len(bySection))
	for _, s := range model.MenuSectionLabels {
		if items, ok := bySection[s.Key]; ok {
			sections = append(sections, model.MenuSection{Key: s.Key, Label: s.Label, Items: items})
			delete(bySection, s.Key)
		}
	}

	unknown := make([]string, 0, len(bySection))
	for key := range bySection {
		unknown = append(unknown, key)
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		sections = append(sections, model.MenuSection{Key: key, Label: key, Items: bySection[key]})
	}
	return sections
}

// FilterForPrincipal filters tree with set and groups the result by section.
func FilterForPrincipal(tree []model.MenuNode, set PermissionSet) []model.MenuSection {
	return MenuSections(FilterMenu(tree, set))
}

func sectionRank(section string) int {
	for i, s := range model.MenuSectionLabels {
		if s.Key == section {
			return i
		}
	}
	return len(model.MenuSectionLabels)
}

func sortMenu(nodes []model.MenuNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if ra, rb := sectionRank(a.Section), sectionRank(b.Section); ra != rb {
			return ra < rb
		}
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		return lessMenuItem(a.MenuItem, b.MenuItem)
	})
	for i := range nodes {
		children := nodes[i].Children
		sort.SliceStable(children, func(x, y int) bool {
			return lessMenuItem(children[x].MenuItem, children[y].MenuItem)
		})
	}
}

func lessMenuItem(a, b model.MenuItem) bool {
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	return a.ID < b.ID
}

// Pruning reasons reported by PrunedEntries.
const (
	PruneInactive     = "inactive"
	PruneMissing      = "missing permission"
	PruneParentHidden = "parent hidden"
	PruneEmptyGroup   = "group without visible children"
)

// PrunedEntry is a menu entry FilterMenu removed, with the first reason that
// applied.
type PrunedEntry struct {
	ID         int
	Name       string
	ParentID   *int
	Reason     string
	Permission string
}

// PrunedEntries lists what FilterMenu removes from tree for set. Children of
// a hidden parent are reported once each with PruneParentHidden.
func PrunedEntries(tree []model.MenuNode, set PermissionSet) []PrunedEntry {
	var out []PrunedEntry
	prune := func(it model.MenuItem, reason string) {
		out = append(out, PrunedEntry{ID: it.ID, Name: it.Name, ParentID: it.ParentID, Reason: reason, Permission: it.Permission})
	}

	for _, node := range tree {
		parentReason := ""
		switch {
		case !node.IsActive:
			parentReason = PruneInactive
		case !gatePasses(node.MenuItem, set):
			parentReason = PruneMissing
		}

		visible := 0
		for _, child := range node.Children {
			switch {
			case parentReason != "":
				prune(child.MenuItem, PruneParentHidden)
			case !child.IsActive:
				prune(child.MenuItem, PruneInactive)
			case !gatePasses(child.MenuItem, set):
				prune(child.MenuItem, PruneMissing)
			default:
				visible++
			}
		}

		if parentReason == "" && node.Kind != model.MenuKindLink && visible == 0 {
			parentReason = PruneEmptyGroup
		}
		if parentReason != "" {
			prune(node.MenuItem, parentReason)
		}
	}
	return out
}
