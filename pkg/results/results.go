// Package results carries the success/failure envelope returned by application services.
package results

// OperationResult holds either a Success or a Failure, never both.
// A Failure is a domain outcome (bad input, wrong state) and is distinct from
// the error return, which is reserved for infrastructure problems.
type OperationResult[S any, F any] struct {
	Success *S
	Failure *F
}

func SuccessResult[S any, F any](s S) OperationResult[S, F] {
	return OperationResult[S, F]{Success: &s}
}

func FailureResult[S any, F any](f F) OperationResult[S, F] {
	return OperationResult[S, F]{Failure: &f}
}

func (r OperationResult[S, F]) IsSuccess() bool { return r.Success != nil }

func (r OperationResult[S, F]) IsFailure() bool { return r.Failure != nil }
