package scheduler

import (
	"context"
)

type Job interface{ Run(ctx context.Context) error }

type FuncJob func(ctx context.Context) error

func (f FuncJob) Run(ctx context.Context) error { return f(ctx) }
