package matrix

// Stack composes transforms in call order, the way a CSS transform list reads:
// NewStack().Translate(10, 0).RotateY(30) moves first in the outer frame and
// then rotates inside it.
type Stack struct {
	m Matrix
}

// NewStack starts from the identity.
func NewStack() Stack {
	return Stack{m: Identity()}
}

// Apply appends an arbitrary transform.
func (s Stack) Apply(m Matrix) Stack {
	return Stack{m: Multiply(s.m, m)}
}

func (s Stack) Translate(x, y float64) Stack {
	return s.Apply(Translate(x, y))
}

func (s Stack) Translate3d(x, y, z float64) Stack {
	return s.Apply(Translate3d(x, y, z))
}

func (s Stack) RotateY(deg float64) Stack {
	return s.Apply(RotateY(deg))
}

func (s Stack) Perspective(d float64) Stack {
	return s.Apply(Perspective(d))
}

// Matrix returns the composed transform.
func (s Stack) Matrix() Matrix {
	return s.m
}

func (s Stack) String() string {
	return s.m.String()
}
