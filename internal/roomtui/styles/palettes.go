package styles

// DefaultTheme is the baseline dark palette.
var DefaultTheme = Theme{
	Name:          "default",
	BorderStyle:   "rounded",
	SenderPalette: append([]string(nil), SenderColorPalette...),
	Base: BaseColors{
		Background: "234",
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Border:     "240",
	},
	Message: MessageColors{
		Own:     "81",
		Other:   "147",
		System:  "214",
		Pending: "243",
	},
	Status: StatusColors{
		Open:       "41",
		Connecting: "220",
		Closed:     "243",
		Error:      "203",
	},
	Chrome: ChromeColors{
		Header: "111",
		Footer: "110",
		Input:  "75",
	},
}

// HighContrastTheme favors legibility on low-quality terminals.
var HighContrastTheme = Theme{
	Name:          "high-contrast",
	BorderStyle:   "sharp",
	SenderPalette: []string{"51", "87", "123", "159", "195", "225", "219", "213"},
	Base: BaseColors{
		Background: "16",
		Foreground: "231",
		Muted:      "250",
		Accent:     "51",
		Border:     "231",
	},
	Message: MessageColors{
		Own:     "87",
		Other:   "225",
		System:  "229",
		Pending: "250",
	},
	Status: StatusColors{
		Open:       "46",
		Connecting: "226",
		Closed:     "244",
		Error:      "196",
	},
	Chrome: ChromeColors{
		Header: "117",
		Footer: "159",
		Input:  "231",
	},
}
