package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/koinonia/internal/dagger"
)

// corePackages make up the streaming pipeline. They build without cgo so the
// sqlite driver stays an outer storage concern.
var corePackages = []string{
	"./pkg/sse/...",
	"./pkg/stream/...",
	"./pkg/chat/...",
	"./pkg/storage/inmemory/...",
}

// Check vets the module, verifies go.mod and go.sum are tidy and builds the
// streaming core with CGO_ENABLED=0.
//
// +check
func (k *Koinonia) Check(ctx context.Context) (string, error) {
	steps := []struct {
		name string
		hint string
		ctr  *dagger.Container
	}{
		{
			name: "go vet",
			hint: "fix the reported issues",
			ctr:  k.goContainer().WithExec([]string{"go", "vet", "./..."}),
		},
		{
			name: "go mod tidy",
			hint: "run 'go mod tidy' and commit the changes",
			ctr:  k.goContainer().WithExec([]string{"go", "mod", "tidy", "-diff"}),
		},
		{
			name: "cgo-free core",
			hint: "keep cgo dependencies out of the streaming packages",
			ctr: k.goContainer().
				WithEnvVariable("CGO_ENABLED", "0").
				WithExec(append([]string{"go", "build"}, corePackages...)),
		},
	}

	for _, step := range steps {
		_, err := step.ctr.Sync(ctx)

		var e *dagger.ExecError
		if errors.As(err, &e) {
			return "", fmt.Errorf("%s failed: %s\n\n%s%s", step.name, step.hint, e.Stdout, e.Stderr)
		} else if err != nil {
			return "", fmt.Errorf("%s: %w", step.name, err)
		}
	}

	return "vet, tidy and cgo-free core checks passed", nil
}
