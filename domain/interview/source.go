package interview

import (
	"path"
	"strings"
	"unicode/utf8"

	pkgerrors "mindmap-backend/pkg/errors"
	"mindmap-backend/pkg/utils"
)

// SourceType says where the project material came from
type SourceType string

const (
	SourceTypeText  SourceType = "text"
	SourceTypeFile  SourceType = "file"
	SourceTypeURL   SourceType = "url"
	SourceTypeMixed SourceType = "mixed"
)

// MaxContentLength bounds the project instructions
const MaxContentLength = 50000

// Prompt context limits, in characters
const (
	ClarifyContextLimit       = 3000
	ReformulateContextLimit   = 2000
	GenerateContextLimit      = 4000
	ClarificationContextLimit = 2000
)

// DefaultMapTitle names maps built without an attached file
const DefaultMapTitle = "Plan Estratégico MORETURISMO"

// AcceptedExtensions lists the attachment types the planner accepts
var AcceptedExtensions = []string{
	"pdf", "doc", "docx", "pptx", "txt",
	"jpg", "jpeg", "png",
	"mp4", "mov", "avi",
	"mp3", "wav", "m4a",
}

// ProjectSource is the material a map is generated from
type ProjectSource struct {
	Type     SourceType `json:"type" validate:"omitempty,oneof=text file url mixed"`
	Content  string     `json:"content"`
	FileInfo string     `json:"fileInfo,omitempty"`
}

// Validate requires instructions or an attachment, bounds the content and
// checks the attachment extension.
func (s ProjectSource) Validate() error {
	if err := utils.ValidateStruct(s); err != nil {
		return err
	}
	if strings.TrimSpace(s.Content) == "" && strings.TrimSpace(s.FileInfo) == "" {
		return pkgerrors.NewValidationError("content or fileInfo is required")
	}
	if utf8.RuneCountInString(s.Content) > MaxContentLength {
		return pkgerrors.NewValidationError("content is too long").
			WithDetail("max", MaxContentLength)
	}
	if s.FileInfo != "" && !IsAcceptedFile(s.FileInfo) {
		return pkgerrors.NewValidationError("unsupported file type").
			WithDetail("fileInfo", s.FileInfo).
			WithDetail("accepted", AcceptedExtensions)
	}
	return nil
}

// Normalized fills in the source type when omitted
func (s ProjectSource) Normalized() ProjectSource {
	s.Content = strings.TrimSpace(s.Content)
	s.FileInfo = strings.TrimSpace(s.FileInfo)
	if s.Type == "" {
		switch {
		case s.FileInfo != "" && s.Content != "":
			s.Type = SourceTypeMixed
		case s.FileInfo != "":
			s.Type = SourceTypeFile
		default:
			s.Type = SourceTypeText
		}
	}
	return s
}

// Title is "Plan: <file name>" for sources with an attachment
func (s ProjectSource) Title() string {
	if s.FileInfo == "" {
		return DefaultMapTitle
	}
	name, _, _ := strings.Cut(path.Base(strings.ReplaceAll(s.FileInfo, "\\", "/")), ".")
	if name == "" {
		return DefaultMapTitle
	}
	return "Plan: " + name
}

// Context returns the text the generator reasons about
func (s ProjectSource) Context() string {
	if s.FileInfo == "" {
		return s.Content
	}
	if s.Content == "" {
		return "Archivo adjunto: " + s.FileInfo
	}
	return s.Content + "\n\nArchivo adjunto: " + s.FileInfo
}

// IsAcceptedFile checks the extension of name against AcceptedExtensions
func IsAcceptedFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	for _, a := range AcceptedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most limit runes
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
