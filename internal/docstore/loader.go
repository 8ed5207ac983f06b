package docstore

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"gopkg.in/yaml.v3"
)

// LoadFile extracts plain text from a document on disk. Supported types:
// .txt, .md/.markdown (front matter stripped), .html/.htm (readable content
// extracted), .pdf.
func LoadFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".md", ".markdown":
		return loadMarkdown(path)
	case ".html", ".htm":
		return loadHTML(path)
	case ".pdf":
		return loadPDF(path)
	default:
		return "", fmt.Errorf("unsupported file type: %s", path)
	}
}

// frontMatter is the YAML block between the leading --- markers of a
// markdown document.
type frontMatter struct {
	Title string `yaml:"title"`
}

func loadMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(data)
	if !strings.HasPrefix(content, "---") {
		return content, nil
	}
	rest := content[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content, nil
	}

	var meta frontMatter
	_ = yaml.Unmarshal([]byte(rest[:end]), &meta)

	body := strings.TrimSpace(rest[end+4:])
	if meta.Title != "" {
		return meta.Title + "\n\n" + body, nil
	}
	return body, nil
}

func loadHTML(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	pageURL := &url.URL{Scheme: "file", Path: path}
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		// Not article-shaped; strip tags instead.
		return stripHTMLTags(string(data)), nil
	}

	text := strings.TrimSpace(article.TextContent)
	if article.Title != "" {
		text = article.Title + "\n\n" + text
	}
	return text, nil
}

func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

var (
	reScript = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle  = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reTags   = regexp.MustCompile(`<[^>]+>`)
	reSpaces = regexp.MustCompile(`[ \t]+`)
	reBlank  = regexp.MustCompile(`\n{3,}`)
)

func stripHTMLTags(text string) string {
	text = reScript.ReplaceAllString(text, "")
	text = reStyle.ReplaceAllString(text, "")
	text = reTags.ReplaceAllString(text, " ")
	text = reSpaces.ReplaceAllString(text, " ")
	text = reBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
