package utilities

func Map[T any, U any](arr []T, fn func(T) U) []U {
	mapped := make([]U, len(arr))
	for i, x := range arr {
		mapped[i] = fn(x)
	}

	return mapped
}

// Chunk splits arr into consecutive groups of at most size elements.
func Chunk[T any](arr []T, size int) [][]T {
	if size <= 0 {
		size = len(arr)
	}
	var chunks [][]T
	for start := 0; start < len(arr); start += size {
		end := min(start+size, len(arr))
		chunks = append(chunks, arr[start:end])
	}
	return chunks
}
