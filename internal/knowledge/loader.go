package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadDir reads every .md, .yaml and .yml file under dir into store.
//
// A YAML file holds one document or a list of documents. A markdown file is
// one document; an optional front matter block supplies id, title, tags and
// source, and the first "# " heading is the title otherwise.
func LoadDir(ctx context.Context, store Store, dir string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loaded := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var docs []Document
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown":
			doc, err := readMarkdown(path)
			if err != nil {
				return err
			}
			docs = []Document{doc}
		case ".yaml", ".yml":
			docs, err = readYAML(path)
			if err != nil {
				return err
			}
		default:
			return nil
		}

		if err := store.Add(ctx, docs...); err != nil {
			return fmt.Errorf("failed to index %s: %w", path, err)
		}
		loaded += len(docs)
		logger.Debug("Loaded knowledge file", zap.String("path", path), zap.Int("documents", len(docs)))
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("failed to load knowledge base from %s: %w", dir, err)
	}
	logger.Info("Knowledge base loaded", zap.String("dir", dir), zap.Int("documents", loaded))
	return loaded, nil
}

func readYAML(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []Document
	if err := yaml.Unmarshal(data, &list); err != nil {
		var one Document
		if err2 := yaml.Unmarshal(data, &one); err2 != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		list = []Document{one}
	}

	out := list[:0]
	for _, d := range list {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		if d.Source == "" {
			d.Source = filepath.Base(path)
		}
		out = append(out, d)
	}
	return out, nil
}

func readMarkdown(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	var doc Document
	body := data
	if front, rest, ok := splitFrontMatter(data); ok {
		if err := yaml.Unmarshal(front, &doc); err != nil {
			return Document{}, fmt.Errorf("failed to parse front matter in %s: %w", path, err)
		}
		body = rest
	}

	content := strings.TrimSpace(string(body))
	if doc.Title == "" {
		doc.Title, content = headingTitle(content)
	}
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if doc.ID == "" {
		doc.ID = Slug(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	if doc.Source == "" {
		doc.Source = filepath.Base(path)
	}
	doc.Content = content
	return doc, nil
}

func splitFrontMatter(data []byte) (front, rest []byte, ok bool) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		return nil, data, false
	}
	after := data[bytes.IndexByte(data, '\n')+1:]
	end := bytes.Index(after, []byte("\n---"))
	if end < 0 {
		return nil, data, false
	}
	front = after[:end]
	rest = after[end+4:]
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = nil
	}
	return front, rest, true
}

func headingTitle(content string) (string, string) {
	first, rest, _ := strings.Cut(content, "\n")
	if strings.HasPrefix(first, "# ") {
		return strings.TrimSpace(first[2:]), strings.TrimSpace(rest)
	}
	return "", content
}
