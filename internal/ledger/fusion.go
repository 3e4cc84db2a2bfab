package ledger

// AverageFloats fuses two float vectors elementwise. Entries present in only
// one vector are kept as they are.
func AverageFloats(own, peer []float64) []float64 {
	n := len(own)
	if len(peer) > n {
		n = len(peer)
	}
	out := make([]float64, n)
	for i := range out {
		switch {
		case i < len(own) && i < len(peer):
			out[i] = (own[i] + peer[i]) / 2
		case i < len(own):
			out[i] = own[i]
		default:
			out[i] = peer[i]
		}
	}
	return out
}
