package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/DuyAnh662/Fileshare/internal/model"
)

var (
	ErrTitleRequired    = errors.New("title is required")
	ErrTitleTooLong     = errors.New("title is too long (max 200 characters)")
	ErrDescriptionLong  = errors.New("description is too long (max 2000 characters)")
	ErrInvalidFileType  = errors.New("unsupported file type")
	ErrInvalidDriveLink = errors.New("Invalid Google Drive link format")
)

var driveLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https://drive\.google\.com/file/d/[\w-]+`),
	regexp.MustCompile(`^https://drive\.google\.com/open\?id=[\w-]+`),
	regexp.MustCompile(`^https://docs\.google\.com/document/d/[\w-]+`),
	regexp.MustCompile(`^https://docs\.google\.com/spreadsheets/d/[\w-]+`),
	regexp.MustCompile(`^https://drive\.google\.com/drive/folders/[\w-]+`),
}

var driveIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/file/d/([\w-]+)`),
	regexp.MustCompile(`/folders/([\w-]+)`),
	regexp.MustCompile(`\?id=([\w-]+)`),
	regexp.MustCompile(`/d/([\w-]+)`),
}

// ValidateTitle validates a submission title
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)

	if trimmed == "" {
		return ErrTitleRequired
	}

	if utf8.RuneCountInString(trimmed) > 200 {
		return ErrTitleTooLong
	}

	return nil
}

func ValidateDescription(description string) error {
	if utf8.RuneCountInString(strings.TrimSpace(description)) > 2000 {
		return ErrDescriptionLong
	}
	return nil
}

func ValidateFileType(fileType string) error {
	switch fileType {
	case model.FileTypeDocument, model.FileTypeImage, model.FileTypeVideo,
		model.FileTypeAudio, model.FileTypeArchive, model.FileTypeOther:
		return nil
	}
	return ErrInvalidFileType
}

// ValidateDriveLink accepts Drive file, folder and open links plus Docs and
// Sheets documents.
func ValidateDriveLink(link string) error {
	link = strings.TrimSpace(link)
	for _, p := range driveLinkPatterns {
		if p.MatchString(link) {
			return nil
		}
	}
	return ErrInvalidDriveLink
}

// DriveID extracts the file or folder id from a Drive link, or "" if none.
func DriveID(link string) string {
	for _, p := range driveIDPatterns {
		if m := p.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return ""
}
