package pulses

import "fmt"

// Z0 is the characteristic impedance of the transmission line, in ohms.
const Z0 = 50.0

// twoSqrtZ0 is 2*sqrt(Z0), the power-wave normalization.
const twoSqrtZ0 = 14.142135623730950488016887242097

// ToIncRef converts an IV set to incident/reflected waves:
// Inc=(V+Z0*I)/2, Ref=(V-Z0*I)/2.
func ToIncRef[S Sample](s *Set[S]) (*Set[S], error) {
	return combine(s, BasisIV, BasisIncRef, S(Z0), S(2))
}

// ToIV converts incident/reflected waves back to voltage and current:
// V=Inc+Ref, I=(Inc-Ref)/Z0.
func ToIV[S Sample](s *Set[S]) (*Set[S], error) {
	if err := expectBasis(s, BasisIncRef, "ToIV"); err != nil {
		return nil, err
	}
	out := s.like(BasisIV)
	z := S(Z0)
	for i := 0; i < s.nb; i++ {
		inc, ref := s.data[Channel1][i], s.data[Channel2][i]
		v, c := out.data[Channel1][i], out.data[Channel2][i]
		for k := range inc {
			v[k] = inc[k] + ref[k]
			c[k] = (inc[k] - ref[k]) / z
		}
	}
	return out, nil
}

// ToAB converts an IV set to power waves a=(V+Z0*I)/(2*sqrt(Z0)),
// b=(V-Z0*I)/(2*sqrt(Z0)).
func ToAB[S Sample](s *Set[S]) (*Set[S], error) {
	return combine(s, BasisIV, BasisAB, S(Z0), S(twoSqrtZ0))
}

// FromAB converts power waves back to voltage and current.
func FromAB[S Sample](s *Set[S]) (*Set[S], error) {
	if err := expectBasis(s, BasisAB, "FromAB"); err != nil {
		return nil, err
	}
	out := s.like(BasisIV)
	z := S(Z0)
	// V = sqrt(Z0)*(a+b), I = (a-b)/sqrt(Z0)
	half := S(twoSqrtZ0 / 2)
	for i := 0; i < s.nb; i++ {
		a, b := s.data[Channel1][i], s.data[Channel2][i]
		v, c := out.data[Channel1][i], out.data[Channel2][i]
		for k := range a {
			v[k] = half * (a[k] + b[k])
			c[k] = half * (a[k] - b[k]) / z
		}
	}
	return out, nil
}

// combine computes ch1=(V+z*I)/d and ch2=(V-z*I)/d from an IV set.
func combine[S Sample](s *Set[S], from, to Basis, z, d S) (*Set[S], error) {
	if err := expectBasis(s, from, "to "+to.String()); err != nil {
		return nil, err
	}
	out := s.like(to)
	for i := 0; i < s.nb; i++ {
		v, c := s.data[Channel1][i], s.data[Channel2][i]
		p, m := out.data[Channel1][i], out.data[Channel2][i]
		for k := range v {
			p[k] = (v[k] + z*c[k]) / d
			m[k] = (v[k] - z*c[k]) / d
		}
	}
	return out, nil
}

func expectBasis[S Sample](s *Set[S], want Basis, op string) error {
	if s.basis != want {
		return fmt.Errorf("%w: %s needs %s, got %s", ErrBasis, op, want, s.basis)
	}
	return nil
}
