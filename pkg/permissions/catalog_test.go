package permissions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogSlugsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range All() {
		assert.False(t, seen[p.Slug], "duplicate slug %s", p.Slug)
		seen[p.Slug] = true
	}
}

func TestCatalogSlugConvention(t *testing.T) {
	for _, p := range All() {
		parts := strings.Split(p.Slug, ".")
		assert.Len(t, parts, 2, "slug %s must be <group>.<action>", p.Slug)
		assert.NotEmpty(t, p.Group)
	}
}

func TestByGroup(t *testing.T) {
	projectPerms := ByGroup(GroupProjects)
	assert.Len(t, projectPerms, 6)
	for _, p := range projectPerms {
		assert.Equal(t, GroupProjects, p.Group)
	}
}

func TestGroupsCoverCatalog(t *testing.T) {
	total := 0
	for _, g := range Groups() {
		total += len(ByGroup(g))
	}
	assert.Equal(t, len(All()), total)
}

func TestExists(t *testing.T) {
	assert.True(t, Exists(ProjectsManageMembers))
	assert.True(t, Exists(TasksAssign))
	assert.False(t, Exists("projects.destroy"))
}
