// Package access implements fail-closed RBAC filtering for retrieval.
//
// A static access matrix maps classification -> department -> allowed
// roles. A user's (department, role) memberships are compiled against
// the matrix into a set of allowed (department, classification) pairs
// that the search stores push down as a hard filter. Anything the
// matrix does not explicitly grant is denied.
package access

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
)

// Matrix is an immutable access matrix snapshot. Reloading produces a
// new Matrix; an in-flight query keeps the snapshot it started with.
type Matrix struct {
	// grants[classification][department] is the set of roles allowed
	// to read documents with that classification in that department.
	grants map[string]map[string]map[string]struct{}
}

// matrixFile is the YAML shape of an access matrix definition.
type matrixFile struct {
	Classifications map[string]map[string][]string `yaml:"classifications"`
}

// LoadMatrix reads an access matrix from a YAML file.
func LoadMatrix(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sentinelerrors.New(sentinelerrors.ErrCodeAccessMatrixInvalid,
			fmt.Sprintf("failed to read access matrix %s", path), err)
	}
	return ParseMatrix(data)
}

// ParseMatrix parses an access matrix from YAML bytes.
func ParseMatrix(data []byte) (*Matrix, error) {
	var file matrixFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, sentinelerrors.New(sentinelerrors.ErrCodeAccessMatrixInvalid,
			"failed to parse access matrix", err)
	}
	if len(file.Classifications) == 0 {
		return nil, sentinelerrors.New(sentinelerrors.ErrCodeAccessMatrixInvalid,
			"access matrix defines no classifications", nil)
	}

	grants := make(map[string]map[string]map[string]struct{}, len(file.Classifications))
	for classification, departments := range file.Classifications {
		classification = normalize(classification)
		if classification == "" {
			return nil, sentinelerrors.New(sentinelerrors.ErrCodeAccessMatrixInvalid,
				"access matrix contains an empty classification label", nil)
		}

		grants[classification] = make(map[string]map[string]struct{}, len(departments))
		for department, roles := range departments {
			department = normalize(department)
			if department == "" {
				return nil, sentinelerrors.New(sentinelerrors.ErrCodeAccessMatrixInvalid,
					fmt.Sprintf("classification %q contains an empty department name", classification), nil)
			}

			roleSet := make(map[string]struct{}, len(roles))
			for _, role := range roles {
				role = normalize(role)
				if role != "" {
					roleSet[role] = struct{}{}
				}
			}
			grants[classification][department] = roleSet
		}
	}

	return &Matrix{grants: grants}, nil
}

// Classifications returns the classification labels the matrix defines.
func (m *Matrix) Classifications() []string {
	labels := make([]string, 0, len(m.grants))
	for c := range m.grants {
		labels = append(labels, c)
	}
	return labels
}

// allows reports whether a role grants read access to documents with the
// given classification in the given department. Unknown classifications
// and departments deny.
func (m *Matrix) allows(classification, department, role string) bool {
	departments, ok := m.grants[classification]
	if !ok {
		return false
	}
	roles, ok := departments[department]
	if !ok {
		return false
	}
	_, ok = roles[role]
	return ok
}

// normalize canonicalizes matrix labels for case-insensitive matching.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
