package application

import "context"

// UseCase is the shape every application entry point takes, so orchestrators can depend on
// collaborators without naming their concrete types.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}
