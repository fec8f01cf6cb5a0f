package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/artpar/apphost/internal/core/manifest"
	"github.com/artpar/apphost/internal/core/topology"
)

func cicd(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := declareTopology().Build()
	require.NoError(t, err)
	return topo
}

func TestPublish_ManifestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "manifest.json")

	require.NoError(t, publish(cicd(t), PublisherManifest, path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var m manifest.Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, manifest.SchemaURL, m.Schema)

	res, ok := m.Resources["cicd"]
	require.True(t, ok)
	assert.Equal(t, manifest.ResourceTypeContainer, res.Type)
	assert.Equal(t, "cicd:latest", res.Image)
	assert.Equal(t, "http://0.0.0.0:8085", res.Env["ASPNETCORE_URLS"])
	assert.Equal(t, 8085, res.Bindings["http"].Port)
	assert.Equal(t, 8085, res.Bindings["http"].TargetPort)
}

func TestPublish_ComposeToStdout(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, publish(cicd(t), PublisherCompose, "", &out))

	var doc struct {
		Services map[string]struct {
			Image       string            `yaml:"image"`
			Environment map[string]string `yaml:"environment"`
		} `yaml:"services"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))

	svc, ok := doc.Services["cicd"]
	require.True(t, ok)
	assert.Equal(t, "cicd", svc.Image)
	assert.Equal(t, "http://0.0.0.0:8085", svc.Environment["ASPNETCORE_URLS"])
}

func TestPublish_UnknownPublisher(t *testing.T) {
	err := publish(cicd(t), "helm", "", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown publisher")
}
