package main

import (
	"os"

	koinoniacmder "github.com/papercomputeco/koinonia/cmd/koinonia"
)

func main() {
	cmd := koinoniacmder.NewKoinoniaCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
