package content

import "testing"

func TestTitleIDString(t *testing.T) {
	// Cache directories and listings use uppercase hex.
	cases := []struct {
		id   TitleID
		want string
	}{
		{0x0100000000010000, "0100000000010000"},
		{0x0100AAAA00000000, "0100AAAA00000000"},
		{0x01000000000FFFF0, "01000000000FFFF0"},
		{0, "0000000000000000"},
	}
	for _, tc := range cases {
		if got := tc.id.String(); got != tc.want {
			t.Errorf("TitleID(%#x).String() = %q, want %q", uint64(tc.id), got, tc.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	cases := []struct {
		category Category
		want     string
	}{
		{CategoryHtmlDocument, "html_document"},
		{CategoryLegalInformation, "legal_information"},
		{CategoryData, "data"},
		{Category(9), "unknown(9)"},
	}
	for _, tc := range cases {
		if got := tc.category.String(); got != tc.want {
			t.Errorf("Category(%d).String() = %q, want %q", uint32(tc.category), got, tc.want)
		}
	}
}
