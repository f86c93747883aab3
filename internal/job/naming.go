package job

import (
	"path/filepath"
	"strconv"
	"strings"

	"musicforge/internal/media"
	"musicforge/internal/settings"
	"musicforge/internal/textutil"
)

// templateValues are the placeholders available to metadata templates.
func templateValues(file media.FileInfo, s settings.Settings, index int) map[string]string {
	stem := file.Stem()
	values := map[string]string{
		"stem":    stem,
		"ext":     s.Extension(),
		"index":   strconv.Itoa(index),
		"name":    filepath.Base(file.Path),
		"pretty":  textutil.PrettyTitle(stem),
		"size_mb": strconv.FormatFloat(file.SizeMB(), 'f', 1, 64),
	}
	if file.Duration > 0 {
		values["duration_s"] = strconv.FormatFloat(file.Duration, 'f', 1, 64)
	} else {
		values["duration_s"] = ""
	}
	return values
}

// Tags resolves the metadata templates for one file.
func Tags(file media.FileInfo, s settings.Settings, index int) []settings.Tag {
	values := templateValues(file, s, index)
	tags := s.Metadata.Tags()
	for i := range tags {
		tags[i].Value = textutil.Expand(tags[i].Value, values)
	}
	return tags
}

// OutputPath renders the filename template for file. The directory is the
// configured output directory, or the source directory when none is set.
func OutputPath(file media.FileInfo, s settings.Settings, index int) string {
	values := templateValues(file, s, index)
	stem := values["stem"]
	ext := values["ext"]

	artist := ""
	if s.Metadata.Artist != "" {
		artist = textutil.Expand(s.Metadata.Artist, values)
	}
	title := stem
	if s.Metadata.Title != "" {
		title = textutil.Expand(s.Metadata.Title, values)
	}
	nameValues := map[string]string{
		"stem":   stem,
		"ext":    ext,
		"index":  values["index"],
		"artist": artist,
		"title":  title,
		"pretty": values["pretty"],
	}

	template := s.FilenameTemplate
	if strings.TrimSpace(template) == "" {
		template = settings.DefaultFilenameTemplate
	}
	name := textutil.SanitizeFileName(textutil.Expand(template, nameValues))
	if name == "" || name == "."+ext {
		name = textutil.SanitizeFileName(stem) + "." + ext
	}
	if !strings.EqualFold(filepath.Ext(name), "."+ext) {
		name += "." + ext
	}

	dir := strings.TrimSpace(s.OutputDir)
	if dir == "" {
		dir = filepath.Dir(file.Path)
	}
	return filepath.Join(dir, name)
}
