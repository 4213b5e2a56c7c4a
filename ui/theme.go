package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// CustomTheme defines the custom font theme for the application.
type CustomTheme struct {
	fyne.Theme
	medium fyne.Resource
	bold   fyne.Resource
}

// NewCustomTheme creates a new instance of the custom theme. Nil fonts fall
// back to the default theme's.
func NewCustomTheme(mediumFont, boldFont fyne.Resource) fyne.Theme {
	return &CustomTheme{Theme: theme.DefaultTheme(), medium: mediumFont, bold: boldFont}
}

// Font returns the font for the given style.
func (t *CustomTheme) Font(style fyne.TextStyle) fyne.Resource {
	if style.Bold && t.bold != nil {
		return t.bold
	}
	if !style.Bold && !style.Monospace && t.medium != nil {
		return t.medium
	}
	return t.Theme.Font(style)
}

// Color keeps the dark palette whatever the system variant.
func (t *CustomTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	if name == theme.ColorNameBackground {
		return BackgroundColor
	}
	return t.Theme.Color(name, theme.VariantDark)
}
