package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDriveLink(t *testing.T) {
	valid := []string{
		"https://drive.google.com/file/d/1AbC-_xyz/view?usp=sharing",
		"https://drive.google.com/open?id=1AbC",
		"https://docs.google.com/document/d/1AbC/edit",
		"https://docs.google.com/spreadsheets/d/1AbC/edit",
		"https://drive.google.com/drive/folders/1AbC",
		"  https://drive.google.com/file/d/1AbC  ",
	}
	for _, link := range valid {
		assert.NoError(t, ValidateDriveLink(link), link)
	}

	invalid := []string{
		"",
		"http://drive.google.com/file/d/1AbC",
		"https://drive.google.com/file/d/",
		"https://evil.example/drive.google.com/file/d/1AbC",
		"https://docs.google.com/presentation/d/1AbC",
	}
	for _, link := range invalid {
		assert.ErrorIs(t, ValidateDriveLink(link), ErrInvalidDriveLink, link)
	}
}

func TestDriveID(t *testing.T) {
	assert.Equal(t, "1AbC-_x", DriveID("https://drive.google.com/file/d/1AbC-_x/view"))
	assert.Equal(t, "F1", DriveID("https://drive.google.com/drive/folders/F1"))
	assert.Equal(t, "Q9", DriveID("https://drive.google.com/open?id=Q9"))
	assert.Equal(t, "D7", DriveID("https://docs.google.com/document/d/D7/edit"))
	assert.Equal(t, "", DriveID("https://example.com"))
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Lecture notes"))
	assert.ErrorIs(t, ValidateTitle("   "), ErrTitleRequired)
	assert.ErrorIs(t, ValidateTitle(strings.Repeat("x", 201)), ErrTitleTooLong)
	assert.NoError(t, ValidateTitle(strings.Repeat("é", 200)))
}

func TestValidateFileType(t *testing.T) {
	assert.NoError(t, ValidateFileType("document"))
	assert.ErrorIs(t, ValidateFileType("exe"), ErrInvalidFileType)
	assert.NoError(t, ValidateDescription(""))
	assert.ErrorIs(t, ValidateDescription(strings.Repeat("d", 2001)), ErrDescriptionLong)
}
