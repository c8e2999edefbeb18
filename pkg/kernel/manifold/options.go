package manifold

// DefaultSegments is the number of sides of a cylinder.
const DefaultSegments = 32

// Option configures a Kernel.
type Option func(*Kernel)

// WithSegments sets the number of cylinder sides. Values below 8 are
// raised to 8.
func WithSegments(n int) Option {
	return func(k *Kernel) {
		if n < 8 {
			n = 8
		}
		k.segments = n
	}
}
