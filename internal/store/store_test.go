package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
)

// buildFilter compiles an access filter allowing exactly the given
// (department, classification) pairs.
func buildFilter(t *testing.T, pairs ...access.Pair) *access.Filter {
	t.Helper()

	classifications := map[string]map[string][]string{}
	seen := map[string]struct{}{}
	var memberships []access.Membership
	for _, p := range pairs {
		if classifications[p.Classification] == nil {
			classifications[p.Classification] = map[string][]string{}
		}
		classifications[p.Classification][p.Department] = []string{"reader"}
		if _, ok := seen[p.Department]; !ok {
			seen[p.Department] = struct{}{}
			memberships = append(memberships, access.Membership{Department: p.Department, Role: "reader"})
		}
	}

	data, err := yaml.Marshal(map[string]any{"classifications": classifications})
	require.NoError(t, err)
	matrix, err := access.ParseMatrix(data)
	require.NoError(t, err)

	return access.Compile(access.UserContext{UserID: "test", Memberships: memberships}, matrix)
}

// emptyFilter compiles a filter that denies everything.
func emptyFilter(t *testing.T) *access.Filter {
	t.Helper()
	matrix, err := access.ParseMatrix([]byte("classifications:\n  public:\n    engineering: [reader]\n"))
	require.NoError(t, err)
	return access.Compile(access.UserContext{UserID: "nobody"}, matrix)
}
