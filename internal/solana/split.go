package solana

// SplitEven divides total base units across n recipients: each receives
// total/n and the integer remainder is credited entirely to the first
// recipient, so the allocations always sum to total exactly.
func SplitEven(total uint64, n int) []uint64 {
	if n <= 0 {
		return nil
	}

	share := total / uint64(n)
	remainder := total % uint64(n)

	allocations := make([]uint64, n)
	for i := range allocations {
		allocations[i] = share
	}
	allocations[0] += remainder

	return allocations
}
