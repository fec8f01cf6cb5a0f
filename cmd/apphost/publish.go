package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/artpar/apphost/internal/core/compose"
	"github.com/artpar/apphost/internal/core/manifest"
	"github.com/artpar/apphost/internal/core/topology"
)

// Publishers render the topology instead of running it.
const (
	PublisherManifest = "manifest"
	PublisherCompose  = "compose"
)

// publish renders topo with the named publisher. The result goes to
// outputPath, or to stdout when outputPath is empty.
func publish(topo *topology.Topology, publisher, outputPath string, stdout io.Writer) error {
	var (
		data []byte
		err  error
	)

	switch publisher {
	case PublisherManifest:
		data, err = manifest.Marshal(topo)
	case PublisherCompose:
		data, err = compose.Marshal(topo)
	default:
		return fmt.Errorf("unknown publisher %q (want %s or %s)", publisher, PublisherManifest, PublisherCompose)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", publisher, err)
	}

	if outputPath == "" {
		_, err = stdout.Write(data)
		return err
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	return nil
}
