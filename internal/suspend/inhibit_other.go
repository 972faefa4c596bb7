//go:build !linux && !darwin

package suspend

func newSystemInhibitor() Inhibitor {
	return unsupportedInhibitor{}
}
