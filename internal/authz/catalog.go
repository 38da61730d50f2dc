package authz

import (
	"sort"

	"github.com/stemsi/hris-authz/internal/model"
)

// SortCatalog returns a copy of records ordered by sort_order, then name.
func SortCatalog(records []model.PermissionRecord) []model.PermissionRecord {
	out := make([]model.PermissionRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return lessRecord(out[i], out[j])
	})
	return out
}

// GroupCatalog groups records by group name. Groups are ordered by their
// lowest member sort_order, then name; ungrouped permissions form a trailing
// group with an empty name. Members are ordered like SortCatalog.
func GroupCatalog(records []model.PermissionRecord) []model.PermissionGroup {
	index := make(map[string]int)
	var groups []model.PermissionGroup
	for _, rec := range SortCatalog(records) {
		i, ok := index[rec.GroupName]
		if !ok {
			i = len(groups)
			index[rec.GroupName] = i
			groups = append(groups, model.PermissionGroup{
				Name:      rec.GroupName,
				Icon:      rec.GroupIcon,
				SortOrder: rec.SortOrder,
			})
		}
		g := &groups[i]
		if g.Icon == "" {
			g.Icon = rec.GroupIcon
		}
		g.Permissions = append(g.Permissions, rec)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if (a.Name == "") != (b.Name == "") {
			return b.Name == ""
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.Name < b.Name
	})
	return groups
}

func lessRecord(a, b model.PermissionRecord) bool {
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	return a.Name < b.Name
}
