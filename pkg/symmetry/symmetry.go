// Package symmetry expands an orientation into the set of orientations that
// are equivalent under a point-group symmetry.
package symmetry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"sirt3d/internal/models"
)

// ErrInvalidLabel is returned for labels that do not name a supported point group.
var ErrInvalidLabel = errors.New("invalid symmetry label")

// MaxOrder bounds n in "cn" and "dn".
const MaxOrder = 360

// Group is a point group. The set of implementations is closed: Cyclic and Dihedral.
type Group interface {
	// Label returns the canonical lower-case label, e.g. "c4".
	Label() string

	// Order returns the number of equivalent orientations produced per input.
	Order() int

	// Expand returns the equivalents of o in a fixed order. The first element
	// is always o itself.
	Expand(o models.Orientation) []models.Orientation

	group()
}

// Cyclic is the n-fold rotation group about the z axis.
type Cyclic struct {
	N int
}

// Dihedral is the n-fold group about z combined with a 2-fold axis along x.
type Dihedral struct {
	N int
}

func (Cyclic) group()   {}
func (Dihedral) group() {}

// Label implements Group.
func (c Cyclic) Label() string { return fmt.Sprintf("c%d", c.N) }

// Order implements Group.
func (c Cyclic) Order() int { return c.N }

// Expand implements Group. Equivalents are (phi + 360k/n, theta, psi).
func (c Cyclic) Expand(o models.Orientation) []models.Orientation {
	out := make([]models.Orientation, 0, c.N)
	out = append(out, o)
	for k := 1; k < c.N; k++ {
		out = append(out, models.Orientation{
			Phi:   normalize(o.Phi + 360.0*float64(k)/float64(c.N)),
			Theta: o.Theta,
			Psi:   o.Psi,
		})
	}
	return out
}

// Label implements Group.
func (d Dihedral) Label() string { return fmt.Sprintf("d%d", d.N) }

// Order implements Group.
func (d Dihedral) Order() int { return 2 * d.N }

// Expand implements Group. The n cyclic equivalents come first, followed by
// their images under the 2-fold about x: Rz(psi)Ry(theta)Rz(phi)Rx(180)Rz(a)
// equals Rz(psi)Ry(theta+180)Rz(180-phi+a).
func (d Dihedral) Expand(o models.Orientation) []models.Orientation {
	out := Cyclic{N: d.N}.Expand(o)
	for k := 0; k < d.N; k++ {
		out = append(out, models.Orientation{
			Phi:   normalize(180.0 - o.Phi + 360.0*float64(k)/float64(d.N)),
			Theta: normalize(o.Theta + 180.0),
			Psi:   o.Psi,
		})
	}
	return out
}

// Parse resolves a label such as "c1", "C4" or "d2".
func Parse(label string) (Group, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	if len(l) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}

	n, err := strconv.Atoi(l[1:])
	if err != nil || n < 1 || l[1] == '+' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	if n > MaxOrder {
		return nil, fmt.Errorf("%w: %q exceeds order %d", ErrInvalidLabel, label, MaxOrder)
	}

	switch l[0] {
	case 'c':
		return Cyclic{N: n}, nil
	case 'd':
		return Dihedral{N: n}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
}

// Expand resolves label and expands o under the resulting group.
func Expand(o models.Orientation, label string) ([]models.Orientation, error) {
	g, err := Parse(label)
	if err != nil {
		return nil, err
	}
	return g.Expand(o), nil
}

// normalize maps an angle in degrees into [0, 360).
func normalize(a float64) float64 {
	a = math.Mod(a, 360.0)
	if a < 0 {
		a += 360.0
	}
	return a
}
