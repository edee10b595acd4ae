package access

import "sort"

// Membership is one (department, role) pair held by a principal.
type Membership struct {
	Department string
	Role       string
}

// UserContext is the set of memberships of the requesting principal.
type UserContext struct {
	UserID      string
	Memberships []Membership
}

// Pair is one allowed (department, classification) combination.
type Pair struct {
	Department     string
	Classification string
}

// Filter is a compiled set of allowed (department, classification)
// pairs. The empty filter is valid and denies everything.
type Filter struct {
	allowed map[Pair]struct{}
}

// Compile derives the access filter for a user from the matrix. For
// every classification in the matrix and every membership the user
// holds, the (department, classification) pair is granted when the
// membership's role appears under that classification and department.
// The result is the union across all memberships. Compilation is pure:
// it reads nothing but its arguments and identical inputs always yield
// an identical filter.
func Compile(user UserContext, matrix *Matrix) *Filter {
	f := &Filter{allowed: make(map[Pair]struct{})}
	if matrix == nil {
		return f
	}

	for classification := range matrix.grants {
		for _, m := range user.Memberships {
			department := normalize(m.Department)
			role := normalize(m.Role)
			if department == "" || role == "" {
				continue
			}
			if matrix.allows(classification, department, role) {
				f.allowed[Pair{Department: department, Classification: classification}] = struct{}{}
			}
		}
	}

	return f
}

// Allows reports whether the filter grants the (department,
// classification) pair. Unknown pairs deny.
func (f *Filter) Allows(department, classification string) bool {
	if f == nil {
		return false
	}
	_, ok := f.allowed[Pair{Department: normalize(department), Classification: normalize(classification)}]
	return ok
}

// IsEmpty reports whether the filter denies everything. Callers must
// short-circuit to an empty result set without touching any store.
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.allowed) == 0
}

// Pairs returns the allowed pairs sorted by department then
// classification, so filter pushdown produces deterministic store
// queries.
func (f *Filter) Pairs() []Pair {
	if f == nil {
		return nil
	}
	pairs := make([]Pair, 0, len(f.allowed))
	for p := range f.allowed {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Department != pairs[j].Department {
			return pairs[i].Department < pairs[j].Department
		}
		return pairs[i].Classification < pairs[j].Classification
	})
	return pairs
}
