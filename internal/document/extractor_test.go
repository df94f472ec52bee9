package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		docType     DocumentType
		expected    string
		source      string
		formatValid bool
	}{
		{
			name:        "aadhaar with spaces",
			text:        aadhaarText,
			docType:     Aadhaar,
			expected:    "123456789012",
			source:      SourcePrimary,
			formatValid: true,
		},
		{
			name:        "pan number",
			text:        "Permanent Account Number\nABCDE1234F",
			docType:     PAN,
			expected:    "ABCDE1234F",
			source:      SourcePrimary,
			formatValid: true,
		},
		{
			name:        "pan from lowercase label",
			text:        "pan no: abcde1234f",
			docType:     PAN,
			expected:    "ABCDE1234F",
			source:      SourceAlternative,
			formatValid: true,
		},
		{
			name:        "passport from label",
			text:        "Passport No. k1234567",
			docType:     Passport,
			expected:    "K1234567",
			source:      SourceAlternative,
			formatValid: true,
		},
		{
			name:        "aadhaar with OCR noise found but malformed",
			text:        "Aadhaar No: 1234 5678 90I2",
			docType:     Aadhaar,
			expected:    "1234567890I2",
			source:      SourceAlternative,
			formatValid: false,
		},
		{
			name:        "pan with letter O for zero",
			text:        "PAN: ABCDE12O4F",
			docType:     PAN,
			expected:    "ABCDE12O4F",
			source:      SourceAlternative,
			formatValid: false,
		},
		{
			name:        "virtual id skipped for labelled aadhaar",
			text:        "VID: 9134 5678 9012 3456\nAadhaar No: 1234 5678 9012",
			docType:     Aadhaar,
			expected:    "123456789012",
			source:      SourcePrimary,
			formatValid: true,
		},
		{
			name:        "driving licence with space",
			text:        "DL No: MH14 20110012345",
			docType:     DrivingLicense,
			expected:    "MH1420110012345",
			source:      SourcePrimary,
			formatValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			num := ExtractNumber(tt.text, tt.docType)
			require.NotNil(t, num)
			assert.Equal(t, tt.expected, num.Value)
			assert.Equal(t, tt.source, num.Source)
			assert.Equal(t, tt.formatValid, num.FormatValid)
		})
	}
}

func TestExtractNumberMissing(t *testing.T) {
	assert.Nil(t, ExtractNumber("Income Tax Department", PAN))
	assert.Nil(t, ExtractNumber(aadhaarText, Unknown))
	assert.Nil(t, ExtractNumber("VID: 9134 5678 9012 3456", Aadhaar))
}

func TestPrimaryIndexGrouped(t *testing.T) {
	sig, ok := Lookup(Aadhaar)
	require.True(t, ok)

	assert.False(t, sig.MatchPrimary("9134 5678 9012 3456"))
	assert.False(t, sig.MatchPrimary("Ref 77 1234 5678 9012"))
	assert.True(t, sig.MatchPrimary("1234 5678 9012\nDOB 01/01/1995"))

	text := "VID 9134 5678 9012 3456 / 1234 5678 9012"
	loc := sig.PrimaryIndex(text)
	require.NotNil(t, loc)
	assert.Equal(t, "1234 5678 9012", text[loc[0]:loc[1]])

	pan, ok := Lookup(PAN)
	require.True(t, ok)
	assert.True(t, pan.MatchPrimary("ABCDE1234F 01/01/1990"))
}

func TestValidateFormat(t *testing.T) {
	valid := map[DocumentType]string{
		PAN:            "ABCDE1234F",
		Aadhaar:        "123456789012",
		Passport:       "K1234567",
		DrivingLicense: "MH1420110012345",
	}

	for docType, number := range valid {
		t.Run(string(docType), func(t *testing.T) {
			assert.True(t, ValidateFormat(docType, number))
			assert.False(t, ValidateFormat(docType, number[:len(number)-1]), "one character short")
		})
	}

	assert.True(t, ValidateFormat(Aadhaar, "1234 5678 9012"))
	assert.True(t, ValidateFormat(DrivingLicense, "MH14-20110012345"))
	assert.False(t, ValidateFormat(PAN, "ABCD12345F"))
	assert.False(t, ValidateFormat(Unknown, "ABCDE1234F"))
}

func TestNormalizeNumber(t *testing.T) {
	assert.Equal(t, "MH1420110012345", NormalizeNumber(" mh14-2011 0012345\n"))
}
