package api

type Limits struct {
	// ListLimit stands for a number of invoices a user is allowed to request at once.
	ListLimit int
}

const defaultListLimit = 100

func (lim Limits) listLimit(requested int) int {
	max := lim.ListLimit
	if max <= 0 {
		max = defaultListLimit
	}
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}
