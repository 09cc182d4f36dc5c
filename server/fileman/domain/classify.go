package domain

import "strings"

var extensionCategories = map[string]Category{
	"pdf":  CategoryDocument,
	"doc":  CategoryDocument,
	"docx": CategoryDocument,
	"txt":  CategoryDocument,
	"xls":  CategoryDocument,
	"xlsx": CategoryDocument,
	"csv":  CategoryDocument,
	"ppt":  CategoryDocument,
	"pptx": CategoryDocument,
	"rtf":  CategoryDocument,

	"jpg":  CategoryImage,
	"jpeg": CategoryImage,
	"png":  CategoryImage,
	"gif":  CategoryImage,
	"bmp":  CategoryImage,
	"svg":  CategoryImage,
	"webp": CategoryImage,

	"mp4":  CategoryVideo,
	"avi":  CategoryVideo,
	"mov":  CategoryVideo,
	"mkv":  CategoryVideo,
	"webm": CategoryVideo,

	"mp3":  CategoryAudio,
	"wav":  CategoryAudio,
	"ogg":  CategoryAudio,
	"flac": CategoryAudio,
}

// Classify derives the lower-cased extension (text after the last dot) and
// its category. A name without a dot has no extension; an unknown extension
// is kept but classified as other.
func Classify(fileName string) (Category, string) {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 {
		return CategoryOther, ""
	}
	ext := strings.ToLower(fileName[idx+1:])
	if c, ok := extensionCategories[ext]; ok {
		return c, ext
	}
	return CategoryOther, ext
}

// BaseName strips ".<extension>" from name when present.
func BaseName(name, extension string) string {
	if extension == "" {
		return name
	}
	suffix := "." + extension
	if len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}

// JoinName builds "<base>.<extension>", or just base when there is no extension.
func JoinName(base, extension string) string {
	if extension == "" {
		return base
	}
	return base + "." + extension
}
