// Package catalog flattens the CMS's two-level category tree and decides
// whether the destination's copy is stale.
package catalog

import (
	"html"
	"reflect"
	"sort"

	"github.com/vuldin/socrev-cms/internal/provider/wordpress"
	"github.com/vuldin/socrev-cms/pkg/models"
)

// uncategorizedName is WordPress's synthetic default root, never mirrored.
const uncategorizedName = "Uncategorized"

func convert(c wordpress.Category) models.Category {
	return models.Category{
		Name:   html.UnescapeString(c.Name),
		ID:     c.ID,
		Parent: c.Parent,
		Slug:   c.Slug,
	}
}

// Tree builds the destination category snapshot: root categories carrying
// their children, entity-decoded names, "Uncategorized" dropped, children
// sorted by id for deterministic comparison.
func Tree(cats []wordpress.Category) []models.Category {
	var parents, subs []models.Category
	for _, c := range cats {
		mc := convert(c)
		if c.Parent == 0 {
			parents = append(parents, mc)
		} else {
			subs = append(subs, mc)
		}
	}

	out := make([]models.Category, 0, len(parents))
	for _, p := range parents {
		if p.Name == uncategorizedName {
			continue
		}
		for _, s := range subs {
			if s.Parent == p.ID {
				p.Children = append(p.Children, s)
			}
		}
		sort.Slice(p.Children, func(i, j int) bool { return p.Children[i].ID < p.Children[j].ID })
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Flatten returns every category as a flat record, entity-decoded, with
// "Uncategorized" dropped, sorted by id. Used for per-post attachment.
func Flatten(cats []wordpress.Category) []models.Category {
	out := make([]models.Category, 0, len(cats))
	for _, c := range cats {
		mc := convert(c)
		if mc.Name == uncategorizedName {
			continue
		}
		out = append(out, mc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// normalize projects categories onto the compared fields and sorts every
// level by id, so field order and array order never affect equality.
func normalize(cats []models.Category) []models.Category {
	if len(cats) == 0 {
		return nil
	}
	out := make([]models.Category, len(cats))
	for i, c := range cats {
		n := models.Category{
			Name:   c.Name,
			ID:     c.ID,
			Parent: c.Parent,
			Slug:   c.Slug,
		}
		n.Children = normalize(c.Children)
		out[i] = n
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Equal reports deep structural equality of two category sets, ignoring
// ordering at every level.
func Equal(a, b []models.Category) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// ShouldUpdate reports whether the destination's category snapshot is stale.
func ShouldUpdate(dbCats, cmsCats []models.Category) bool {
	return !Equal(dbCats, cmsCats)
}

// Closure resolves a post's category ids against the flat category list and
// includes each category's root parent when it is not already present. Every
// category appears at most once and ids unknown to the CMS are skipped.
func Closure(ids []int, cats []models.Category) []models.Category {
	byID := make(map[int]models.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	var out []models.Category
	seen := make(map[int]bool)
	for _, id := range ids {
		c, ok := byID[id]
		if !ok || seen[c.ID] {
			continue
		}
		out = append(out, c)
		seen[c.ID] = true
		if c.Parent != 0 && !seen[c.Parent] {
			if p, ok := byID[c.Parent]; ok {
				out = append(out, p)
				seen[p.ID] = true
			}
		}
	}
	return out
}
