package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/koinonia/internal/dagger"
)

// Build and return directory of go binaries
func (k *Koinonia) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// the sqlite driver needs cgo, so only the host-native targets are built
	gooses := []string{"linux"}
	goarches := []string{"amd64"}

	outputs := dag.Directory()

	for _, goos := range gooses {
		for _, goarch := range goarches {
			path := fmt.Sprintf("%s/%s/", goos, goarch)

			build := k.goContainer().
				WithEnvVariable("GOOS", goos).
				WithEnvVariable("GOARCH", goarch).
				WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/koinonia"})

			outputs = outputs.WithDirectory(path, build.Directory(path))
		}
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (k *Koinonia) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/koinonia/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/koinonia/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/koinonia/pkg/utils.Buildtime=%s'", buildtime),
	}

	return k.Build(ctx, strings.Join(ldflags, " "))
}
