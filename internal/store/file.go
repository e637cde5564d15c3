package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/shotline/internal/storyboard"
)

// WriteProject writes a project to a YAML file. The file is replaced
// atomically so watchers never see a half-written snapshot.
func WriteProject(p storyboard.Project, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadProject reads a project from a YAML file and normalizes it.
func ReadProject(path string) (storyboard.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storyboard.Project{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return storyboard.Project{}, err
	}

	var p storyboard.Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return storyboard.Project{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return storyboard.Normalize(p), nil
}

// FileStore keeps one YAML file per project in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

func (s *FileStore) Load(_ context.Context, id string) (storyboard.Project, error) {
	if err := checkID(id); err != nil {
		return storyboard.Project{}, err
	}
	return ReadProject(s.path(id))
}

func (s *FileStore) Save(_ context.Context, p storyboard.Project) error {
	if err := checkID(p.ID); err != nil {
		return err
	}
	return WriteProject(p, s.path(p.ID))
}

func (s *FileStore) List(_ context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var out []Summary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".yaml" {
			continue
		}
		p, err := ReadProject(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
