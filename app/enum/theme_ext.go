package enum

// Toggle returns the other of the two themes, an unset theme becomes dark.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// IsDark reports whether the theme is dark.
func (t Theme) IsDark() bool {
	return t == ThemeDark
}

// IsValid reports whether the theme is one of the known values, false for unset.
func (t Theme) IsValid() bool {
	return t == ThemeDark || t == ThemeLight
}
