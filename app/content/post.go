// Package content loads the site content: blog posts from Markdown files and the profile shown
// on the homepage.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrPostNotFound is returned when no post matches the slug.
var ErrPostNotFound = errors.New("post not found")

const wordsPerMinute = 200

// Author is a post author.
type Author struct {
	Name    string `yaml:"name"`
	Picture string `yaml:"picture"`
}

// Post is a single blog post. Content is set only by Library.Get.
type Post struct {
	Slug        string
	Title       string
	Excerpt     string
	Date        time.Time
	Author      Author
	CoverImage  string
	OGImage     string
	Tags        []string
	ReadingTime int // minutes
	Content     template.HTML
}

// frontMatter is the YAML header of a post file.
type frontMatter struct {
	Title      string   `yaml:"title"`
	Excerpt    string   `yaml:"excerpt"`
	Date       string   `yaml:"date"`
	Author     Author   `yaml:"author"`
	CoverImage string   `yaml:"coverImage"`
	Tags       []string `yaml:"tags"`
	Draft      bool     `yaml:"draft"`
	OGImage    struct {
		URL string `yaml:"url"`
	} `yaml:"ogImage"`
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"}

var frontMatterDelim = []byte("---")

// parsePost parses a post file into metadata and the Markdown body.
// Returns draft=true for posts marked as drafts.
func parsePost(fileName string, data []byte) (post Post, body []byte, draft bool, err error) {
	fm, body, err := splitFrontMatter(data)
	if err != nil {
		return Post{}, nil, false, fmt.Errorf("post %s: %w", fileName, err)
	}

	var meta frontMatter
	if len(fm) > 0 {
		if err := yaml.Unmarshal(fm, &meta); err != nil {
			return Post{}, nil, false, fmt.Errorf("post %s: parse front matter: %w", fileName, err)
		}
	}

	post = Post{
		Slug:        slugFromFile(fileName),
		Title:       strings.TrimSpace(meta.Title),
		Excerpt:     strings.TrimSpace(meta.Excerpt),
		Author:      meta.Author,
		CoverImage:  meta.CoverImage,
		OGImage:     meta.OGImage.URL,
		Tags:        meta.Tags,
		ReadingTime: readingTime(body),
	}
	if post.Title == "" {
		post.Title = post.Slug
	}
	if post.OGImage == "" {
		post.OGImage = post.CoverImage
	}
	if meta.Date != "" {
		if post.Date, err = parseDate(meta.Date); err != nil {
			return Post{}, nil, false, fmt.Errorf("post %s: %w", fileName, err)
		}
	}
	return post, body, meta.Draft, nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from the body.
// Files without front matter return the whole content as body.
func splitFrontMatter(data []byte) (fm, body []byte, err error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	trimmed := bytes.TrimLeft(data, "\r\n")
	if !bytes.HasPrefix(trimmed, frontMatterDelim) {
		return nil, data, nil
	}

	rest := trimmed[len(frontMatterDelim):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return nil, data, nil // "---" followed by text is a thematic break, not front matter
	}
	rest = rest[nl+1:]

	for offset := 0; offset < len(rest); {
		end := bytes.IndexByte(rest[offset:], '\n')
		line := rest[offset:]
		if end >= 0 {
			line = rest[offset : offset+end]
		}
		if bytes.Equal(bytes.TrimRight(line, " \r"), frontMatterDelim) {
			if end < 0 {
				return rest[:offset], nil, nil
			}
			return rest[:offset], rest[offset+end+1:], nil
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return nil, nil, errors.New("front matter is not closed")
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func slugFromFile(fileName string) string {
	return strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
}

// readingTime estimates minutes to read the body, at least one.
func readingTime(body []byte) int {
	words := len(strings.Fields(string(body)))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
