package tui

// palette holds the ANSI-256 style tokens for one theme.
type palette struct {
	Foreground string
	Muted      string
	Accent     string
	Border     string
	Header     string
	Footer     string
	Selected   string
	Error      string
	Success    string
	Own        string
	Other      string
}

var themes = map[Theme]palette{
	ThemeDefault: {
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Border:     "240",
		Header:     "111",
		Footer:     "110",
		Selected:   "75",
		Error:      "203",
		Success:    "41",
		Own:        "81",
		Other:      "147",
	},
	ThemeHighContrast: {
		Foreground: "15",
		Muted:      "250",
		Accent:     "51",
		Border:     "255",
		Header:     "27",
		Footer:     "25",
		Selected:   "51",
		Error:      "196",
		Success:    "46",
		Own:        "51",
		Other:      "226",
	},
}

func themePalette(theme Theme) palette {
	if p, ok := themes[theme]; ok {
		return p
	}
	return themes[ThemeDefault]
}
