//go:build !unix

package proclock

func probe(int) Liveness {
	return LivenessUnknown
}
