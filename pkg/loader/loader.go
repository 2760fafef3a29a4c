package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mberat/sonoreport/internal/models"
)

type LoaderConfig struct {
	AllowedExtensions []string
}

type Loader struct {
	config LoaderConfig
}

func NewWithConfig(config LoaderConfig) *Loader {
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".txt", ".md", ".html", ".htm"}
	}

	return &Loader{config: config}
}

func New() *Loader {
	return NewWithConfig(LoaderConfig{})
}

// Load reads all guideline documents under dir. A missing or unreadable
// directory is a configuration error, not a retrieval error.
func (l *Loader) Load(dir string) ([]models.GuidelineDocument, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("guideline directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return l.loadOne(dir)
	}

	var documents []models.GuidelineDocument
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !l.shouldProcessFile(path) {
			return nil
		}

		doc, err := l.readDocument(path)
		if err != nil {
			return err
		}
		documents = append(documents, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(documents) == 0 {
		return nil, fmt.Errorf("no guideline documents found in %s", dir)
	}

	return documents, nil
}

func (l *Loader) loadOne(path string) ([]models.GuidelineDocument, error) {
	if !l.shouldProcessFile(path) {
		return nil, fmt.Errorf("unsupported guideline file type: %s", path)
	}
	doc, err := l.readDocument(path)
	if err != nil {
		return nil, err
	}
	return []models.GuidelineDocument{doc}, nil
}

func (l *Loader) shouldProcessFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range l.config.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (l *Loader) readDocument(path string) (models.GuidelineDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.GuidelineDocument{}, fmt.Errorf("reading %s: %w", path, err)
	}

	content := string(data)
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		content, title, err = extractHTML(content, title)
		if err != nil {
			return models.GuidelineDocument{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	return models.GuidelineDocument{
		ID:      hashPath(path),
		Path:    path,
		Title:   title,
		Content: content,
	}, nil
}

// extractHTML reduces an HTML guideline page to its main textual content.
func extractHTML(html, fallbackTitle string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}

	title := strings.TrimSpace(doc.Find("title").Text())
	if title == "" {
		title = fallbackTitle
	}

	doc.Find("script, style, nav, footer").Remove()

	selectors := []string{"main", "article", ".content", "#content"}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}

	content = strings.Join(strings.Fields(content), " ")

	return strings.TrimSpace(content), title, nil
}

func hashPath(path string) string {
	h := sha1.Sum([]byte(path))
	return hex.EncodeToString(h[:8])
}
