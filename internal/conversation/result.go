package conversation

// Result is one item of a batch: either Value or the Err that prevented it.
type Result[T any] struct {
	Value T
	Err   error
}

func ok[T any](v T) Result[T] { return Result[T]{Value: v} }

func fail[T any](err error) Result[T] { return Result[T]{Err: err} }

// CollectOK keeps the successful values in order. skip, if not nil, is called
// for every failed item.
func CollectOK[T any](results []Result[T], skip func(index int, err error)) []T {
	out := make([]T, 0, len(results))
	for i, r := range results {
		if r.Err != nil {
			if skip != nil {
				skip(i, r.Err)
			}
			continue
		}
		out = append(out, r.Value)
	}
	return out
}

// FirstError returns every value, or the first failure.
func FirstError[T any](results []Result[T]) ([]T, error) {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		out = append(out, r.Value)
	}
	return out, nil
}
