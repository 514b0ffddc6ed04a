package batch

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/harvestlabs/cropscout/internal/upload"
)

// CollectDir walks a directory tree and returns every file carrying an
// accepted image extension.
func CollectDir(dir string) ([]Target, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: stat %s", dir)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("batch: %s is not a directory", dir)
	}

	var targets []Target
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && upload.Allowed(d.Name()) {
			targets = append(targets, Target{Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "batch: walk %s", dir)
	}
	return targets, nil
}

// ReadFileList reads image paths from a text file, one per line.
// Missing files are skipped with a warning rather than failing the run.
func ReadFileList(path string) ([]Target, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	var targets []Target
	for _, line := range lines {
		if _, err := os.Stat(line); err != nil {
			zap.L().Warn("file not found, skipping", zap.String("path", line))
			continue
		}
		targets = append(targets, Target{Path: line})
	}
	return targets, nil
}

// ReadURLList reads image URLs from a text file, one per line; lines not
// starting with http are ignored.
func ReadURLList(path string) ([]Target, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	var targets []Target
	for _, line := range lines {
		if strings.HasPrefix(line, "http") {
			targets = append(targets, Target{URL: line})
		}
	}
	return targets, nil
}

// Manifest is a YAML description of a batch run.
type Manifest struct {
	Images []Target `yaml:"images"`
}

// ReadManifest loads targets from a YAML manifest file.
func ReadManifest(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "batch: parse manifest %s", path)
	}

	for i, t := range m.Images {
		if t.Path == "" && t.URL == "" {
			return nil, eris.Errorf("batch: manifest image %d has neither path nor url", i)
		}
	}
	return m.Images, nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "batch: read %s", path)
	}
	return lines, nil
}
